package gateway

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/strandhq/strand/internal/llm"
	"github.com/strandhq/strand/pkg/models"
)

type wsTestClient struct {
	t    *testing.T
	conn *websocket.Conn
}

func dialWS(t *testing.T, hub *Hub) *wsTestClient {
	t.Helper()
	srv := httptest.NewServer(hub.WSHandler())
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsTestClient{t: t, conn: conn}
}

func (c *wsTestClient) send(frame models.Frame) {
	c.t.Helper()
	if err := c.conn.WriteJSON(models.NewGatewayMessage("", frame)); err != nil {
		c.t.Fatalf("ws write: %v", err)
	}
}

func (c *wsTestClient) read() models.GatewayMessage {
	c.t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg models.GatewayMessage
	if err := c.conn.ReadJSON(&msg); err != nil {
		c.t.Fatalf("ws read: %v", err)
	}
	return msg
}

func (c *wsTestClient) readUntil(kind models.FrameKind) models.GatewayMessage {
	c.t.Helper()
	for i := 0; i < 100; i++ {
		msg := c.read()
		if msg.Message.Type == kind {
			return msg
		}
	}
	c.t.Fatalf("no %s frame seen", kind)
	return models.GatewayMessage{}
}

func TestWebSocketAuthAndTurn(t *testing.T) {
	hub, _, _ := startTestHub(t, llm.NewMockClient("websocket says hi"))
	client := dialWS(t, hub)

	client.send(models.Frame{
		Type: models.KindAuth,
		ClientInfo: &models.ClientInfo{
			ClientID: "alice",
			Platform: models.SpokeWeb,
		},
	})
	authResult := client.readUntil(models.KindAuthResult)
	if authResult.Message.Success == nil || !*authResult.Message.Success {
		t.Fatalf("auth_result = %+v", authResult.Message)
	}

	client.send(models.Frame{Type: models.KindUserMessage, Content: "hello"})
	end := client.readUntil(models.KindResponseEnd)
	if end.Message.FullContent != "websocket says hi" {
		t.Errorf("FullContent = %q", end.Message.FullContent)
	}
}

func TestWebSocketPingFrame(t *testing.T) {
	hub, _, _ := startTestHub(t, llm.NewMockClient("hi"))
	client := dialWS(t, hub)

	client.send(models.Frame{Type: models.KindPing, Timestamp: 12345})
	pong := client.readUntil(models.KindPong)
	if pong.Message.Timestamp != 12345 {
		t.Errorf("pong timestamp = %d", pong.Message.Timestamp)
	}
}

func TestWebSocketSharesSessionWithTCP(t *testing.T) {
	hub, _, addr := startTestHub(t, llm.NewMockClient("hi"))

	tcp := dialHub(t, addr)
	tcpSession := tcp.auth("alice")

	ws := dialWS(t, hub)
	ws.send(models.Frame{
		Type: models.KindAuth,
		ClientInfo: &models.ClientInfo{
			ClientID: "alice",
			Platform: models.SpokeWeb,
		},
	})
	authResult := ws.readUntil(models.KindAuthResult)
	if authResult.Message.SessionID != tcpSession {
		t.Errorf("ws session = %q, tcp session = %q", authResult.Message.SessionID, tcpSession)
	}
}
