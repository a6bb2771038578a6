package models

// SpokeType identifies the transport channel a client connects through.
type SpokeType string

const (
	SpokeWeb      SpokeType = "web"
	SpokeTUI      SpokeType = "tui"
	SpokeWhatsApp SpokeType = "whatsapp"
	SpokeLark     SpokeType = "lark"
	SpokeAPI      SpokeType = "api"
	SpokeOther    SpokeType = "other"
)

// ClientInfo describes one connected client endpoint.
type ClientInfo struct {
	ClientID   string    `json:"client_id"`
	Platform   SpokeType `json:"platform"`
	Version    string    `json:"version,omitempty"`
	DeviceName string    `json:"device_name,omitempty"`
}

// SessionStatus is the observable state of a session.
type SessionStatus string

const (
	SessionIdle         SessionStatus = "idle"
	SessionProcessing   SessionStatus = "processing"
	SessionWaitingInput SessionStatus = "waiting_input"
	SessionDisconnected SessionStatus = "disconnected"
)

// HistoryMessage is one entry of a history reply on the wire.
type HistoryMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp int64  `json:"timestamp"`
}
