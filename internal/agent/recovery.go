package agent

import "fmt"

// ActionKind names the recovery strategies.
type ActionKind string

const (
	ActionRetryWithPrompt   ActionKind = "retry_with_prompt"
	ActionSummarizeAndPrune ActionKind = "summarize_and_prune"
	ActionAskUser           ActionKind = "ask_user"
	ActionDowngradeModel    ActionKind = "downgrade_model"
	ActionAbort             ActionKind = "abort"
)

// RecoveryAction is the engine's decision. Detail carries the corrective
// prompt for retries and the question for ask-user actions.
type RecoveryAction struct {
	Kind   ActionKind
	Detail string
}

const retryJSONPromptFormat = "上一轮输出的 JSON 格式错误: %s。" +
	"调用工具时你必须只输出一个合法的 JSON 对象，不能输出代码、Markdown 或其它文字。" +
	`格式必须为: {"tool": "工具名", "args": {...}}。` +
	`例如: {"tool": "echo", "args": {"text": "hi"}}。请只输出这一行 JSON。`

// RecoveryEngine is a pure mapping from error kind to recovery action.
type RecoveryEngine struct{}

// Handle decides how the loop should react to err.
func (RecoveryEngine) Handle(err *Error) RecoveryAction {
	switch err.Kind {
	case ErrJSONParse:
		return RecoveryAction{
			Kind:   ActionRetryWithPrompt,
			Detail: fmt.Sprintf(retryJSONPromptFormat, err.Detail),
		}
	case ErrContextWindowExceeded:
		return RecoveryAction{Kind: ActionSummarizeAndPrune}
	case ErrHallucinatedTool:
		return RecoveryAction{
			Kind:   ActionAskUser,
			Detail: fmt.Sprintf("模型试图调用不存在的工具 '%s'，是否需要安装或跳过？", err.Detail),
		}
	case ErrToolTimeout:
		return RecoveryAction{Kind: ActionAskUser, Detail: "工具执行超时，是否重试？"}
	case ErrToolExecutionFailed:
		return RecoveryAction{
			Kind:   ActionAskUser,
			Detail: fmt.Sprintf("工具执行失败: %s", err.Detail),
		}
	case ErrNetworkTimeout:
		return RecoveryAction{Kind: ActionRetryWithPrompt, Detail: "网络请求超时，请重试。"}
	case ErrLLM:
		return RecoveryAction{Kind: ActionDowngradeModel}
	default:
		return RecoveryAction{Kind: ActionAbort}
	}
}
