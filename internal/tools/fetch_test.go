package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestExtractDomain(t *testing.T) {
	cases := []struct {
		url  string
		want string
		ok   bool
	}{
		{"https://en.wikipedia.org/wiki/Go", "en.wikipedia.org", true},
		{"http://Example.COM:8080/path", "example.com", true},
		{"ftp://example.com", "", false},
		{"not a url", "", false},
		{"https://", "", false},
	}
	for _, c := range cases {
		got, ok := extractDomain(c.url)
		if got != c.want || ok != c.ok {
			t.Fatalf("extractDomain(%q) = %q, %v", c.url, got, ok)
		}
	}
}

func TestFetchRejectsUnlistedDomain(t *testing.T) {
	tool := NewFetchTool([]string{"allowed.example"}, time.Second, 1000)
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"url":"https://evil.example/x"}`))
	if err == nil || !strings.Contains(err.Error(), "not in allowlist") {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchPlainTextAndTruncation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(strings.Repeat("plain body text ", 100)))
	}))
	defer srv.Close()

	host, _ := extractDomain(srv.URL)
	tool := NewFetchTool([]string{host}, 5*time.Second, 50)
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"url":"`+srv.URL+`"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(out, "...[truncated]") {
		t.Fatalf("long body not truncated: %q", out)
	}
}

func TestFetchConvertsHTML(t *testing.T) {
	page := `<!DOCTYPE html><html><head><title>T</title><style>body{}</style></head>` +
		`<body><script>var x=1;</script><p>visible paragraph</p></body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	host, _ := extractDomain(srv.URL)
	tool := NewFetchTool([]string{host}, 5*time.Second, 10000)
	out, err := tool.Execute(context.Background(), json.RawMessage(`{"url":"`+srv.URL+`"}`))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "visible paragraph") {
		t.Fatalf("text lost: %q", out)
	}
	if strings.Contains(out, "var x=1") || strings.Contains(out, "body{}") {
		t.Fatalf("script/style leaked: %q", out)
	}
}

func TestFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	host, _ := extractDomain(srv.URL)
	tool := NewFetchTool([]string{host}, 5*time.Second, 1000)
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"url":"`+srv.URL+`"}`))
	if err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("err = %v", err)
	}
}

func TestLooksLikeHTML(t *testing.T) {
	if !looksLikeHTML("<!DOCTYPE html><html></html>") {
		t.Fatal("doctype not detected")
	}
	if !looksLikeHTML("some longer text with <meta charset> markers inside it") {
		t.Fatal("embedded markup not detected")
	}
	if looksLikeHTML("plain text, 1 < 2 is true") {
		t.Fatal("plain text misdetected")
	}
}
