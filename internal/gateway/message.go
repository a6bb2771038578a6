// Package gateway is the hub: it accepts spoke connections over NDJSON
// TCP and WebSocket, routes frames to sessions, and streams agent events
// back to whichever clients a session has attached.
package gateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/strandhq/strand/pkg/models"
)

const envelopeSchema = `{
	"type": "object",
	"required": ["id", "message", "timestamp"],
	"properties": {
		"id": {"type": "string", "minLength": 1},
		"session_id": {"type": "string"},
		"timestamp": {"type": "integer"},
		"message": {
			"type": "object",
			"required": ["type"],
			"properties": {"type": {"type": "string", "minLength": 1}}
		}
	}
}`

const authFrameSchema = `{
	"type": "object",
	"required": ["client_info"],
	"properties": {
		"token": {"type": "string"},
		"client_info": {
			"type": "object",
			"required": ["client_id", "platform"],
			"properties": {
				"client_id": {"type": "string", "minLength": 1},
				"platform": {"type": "string", "enum": ["web", "tui", "whatsapp", "lark", "api", "other"]}
			}
		}
	}
}`

const userMessageFrameSchema = `{
	"type": "object",
	"required": ["content"],
	"properties": {
		"content": {"type": "string", "minLength": 1},
		"assistant_id": {"type": "string"},
		"model": {"type": "string"}
	}
}`

const cancelFrameSchema = `{
	"type": "object",
	"properties": {"request_id": {"type": "string"}}
}`

const getHistoryFrameSchema = `{
	"type": "object",
	"properties": {"limit": {"type": "integer", "minimum": 0}}
}`

const pingFrameSchema = `{
	"type": "object",
	"required": ["timestamp"],
	"properties": {"timestamp": {"type": "integer"}}
}`

const submitTaskFrameSchema = `{
	"type": "object",
	"required": ["instruction"],
	"properties": {
		"instruction": {"type": "string", "minLength": 1},
		"priority": {"type": "string", "enum": ["low", "normal", "high", "urgent"]}
	}
}`

const getTaskStatusFrameSchema = `{
	"type": "object",
	"required": ["task_id"],
	"properties": {"task_id": {"type": "string", "minLength": 1}}
}`

type frameSchemaRegistry struct {
	once     sync.Once
	initErr  error
	envelope *jsonschema.Schema
	kinds    map[models.FrameKind]*jsonschema.Schema
}

var frameSchemas frameSchemaRegistry

func initFrameSchemas() error {
	frameSchemas.once.Do(func() {
		envelope, err := jsonschema.CompileString("gateway_envelope", envelopeSchema)
		if err != nil {
			frameSchemas.initErr = err
			return
		}
		frameSchemas.envelope = envelope

		kinds := map[models.FrameKind]string{
			models.KindAuth:          authFrameSchema,
			models.KindUserMessage:   userMessageFrameSchema,
			models.KindCancel:        cancelFrameSchema,
			models.KindGetHistory:    getHistoryFrameSchema,
			models.KindPing:          pingFrameSchema,
			models.KindSubmitTask:    submitTaskFrameSchema,
			models.KindGetTaskStatus: getTaskStatusFrameSchema,
		}

		frameSchemas.kinds = make(map[models.FrameKind]*jsonschema.Schema, len(kinds))
		for kind, schema := range kinds {
			compiled, err := jsonschema.CompileString("gateway_frame_"+string(kind), schema)
			if err != nil {
				frameSchemas.initErr = err
				return
			}
			frameSchemas.kinds[kind] = compiled
		}
	})
	return frameSchemas.initErr
}

// DecodeInbound parses one wire line into an envelope, validating the
// envelope shape and the per-kind frame fields. Outbound-only kinds pass
// envelope validation and are rejected later by the dispatcher.
func DecodeInbound(raw []byte) (models.GatewayMessage, error) {
	var msg models.GatewayMessage
	if err := initFrameSchemas(); err != nil {
		return msg, err
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return msg, err
	}
	if err := frameSchemas.envelope.Validate(payload); err != nil {
		return msg, err
	}

	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, err
	}
	if schema := frameSchemas.kinds[msg.Message.Type]; schema != nil {
		frame, ok := payload["message"].(map[string]any)
		if !ok {
			return msg, fmt.Errorf("message is not an object")
		}
		if err := schema.Validate(frame); err != nil {
			return msg, fmt.Errorf("%s frame: %w", msg.Message.Type, err)
		}
	}
	return msg, nil
}

// EncodeMessage renders an envelope as one NDJSON line without the
// trailing newline.
func EncodeMessage(msg models.GatewayMessage) ([]byte, error) {
	return json.Marshal(msg)
}
