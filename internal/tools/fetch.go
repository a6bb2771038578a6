package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const fetchUserAgent = "Mozilla/5.0 (compatible; strand/1.0)"

// FetchTool retrieves URL content from an allowlisted set of domains,
// converting HTML responses to plain text.
type FetchTool struct {
	client         *http.Client
	allowedDomains map[string]bool
	maxResultChars int
}

func NewFetchTool(allowedDomains []string, timeout time.Duration, maxResultChars int) *FetchTool {
	allowed := make(map[string]bool, len(allowedDomains))
	for _, d := range allowedDomains {
		allowed[strings.ToLower(d)] = true
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxResultChars <= 0 {
		maxResultChars = 20000
	}
	return &FetchTool{
		client:         &http.Client{Timeout: timeout},
		allowedDomains: allowed,
		maxResultChars: maxResultChars,
	}
}

func (t *FetchTool) Name() string { return "fetch" }

func (t *FetchTool) Description() string {
	return `Fetch URL content from allowlisted domains; HTML is converted to text. Args: {"url": "https://..."}`
}

func (t *FetchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "description": "Full http(s) URL; the host must be in the domain allowlist."}
		},
		"required": ["url"]
	}`)
}

// extractDomain returns the lowercased host of a http(s) URL, without port.
func extractDomain(rawURL string) (string, bool) {
	u := strings.TrimSpace(rawURL)
	switch {
	case strings.HasPrefix(u, "https://"):
		u = u[len("https://"):]
	case strings.HasPrefix(u, "http://"):
		u = u[len("http://"):]
	default:
		return "", false
	}
	host := strings.SplitN(u, "/", 2)[0]
	host = strings.SplitN(host, ":", 2)[0]
	if host == "" {
		return "", false
	}
	return strings.ToLower(host), true
}

func (t *FetchTool) checkAllowed(rawURL string) error {
	domain, ok := extractDomain(rawURL)
	if !ok {
		return fmt.Errorf("invalid or missing URL")
	}
	if !t.allowedDomains[domain] {
		return fmt.Errorf("domain not in allowlist: %s", domain)
	}
	return nil
}

func (t *FetchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	rawURL := strings.TrimSpace(stringArg(args, "url"))
	if rawURL == "" {
		return "", fmt.Errorf("missing url")
	}
	if err := t.checkAllowed(rawURL); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", fetchUserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	text := string(body)
	if looksLikeHTML(text) {
		text = htmlToText(text)
	}
	if runes := []rune(text); len(runes) > t.maxResultChars {
		text = string(runes[:t.maxResultChars]) + "\n...[truncated]"
	}
	return text, nil
}

// looksLikeHTML applies a cheap heuristic before committing to a full parse.
func looksLikeHTML(body string) bool {
	trimmed := strings.TrimSpace(body)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "<!") || strings.HasPrefix(lower, "<html") {
		return true
	}
	if len(trimmed) > 20 && strings.Contains(trimmed, "<") {
		for _, marker := range []string{"</", "<meta", "<head", "<title"} {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// htmlToText extracts visible text, skipping script and style elements and
// collapsing whitespace runs.
func htmlToText(src string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseWhitespace(b.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" || tag == "noscript" {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if tag := string(name); tag == "script" || tag == "style" || tag == "noscript" {
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
				b.WriteByte(' ')
			}
		}
	}
}

func collapseWhitespace(s string) string {
	var b strings.Builder
	lastSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		if r == '\n' {
			b.WriteByte('\n')
			lastSpace = true
			continue
		}
		b.WriteRune(r)
		lastSpace = false
	}
	return strings.TrimSpace(b.String())
}
