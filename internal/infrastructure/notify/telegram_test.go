package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"stock-monitor/internal/domain/alert"
)

func TestTelegramClient_Send(t *testing.T) {
	t.Run("missing_config", func(t *testing.T) {
		c := NewTelegramClient("", 0)
		err := c.Send(context.Background(), "title", "body")
		if err == nil || err.Error() != "telegram token or chat_id missing" {
			t.Error("expected missing config error")
		}
	})

	t.Run("success", func(t *testing.T) {
		var gotPath string
		var gotBody map[string]interface{}
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(`{"ok":true}`))
		}))
		defer ts.Close()

		c := NewTelegramClient("tok", 123)
		c.baseURL = ts.URL
		if err := c.Send(context.Background(), "觸發提醒", "進入建倉區間"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gotPath != "/bottok/sendMessage" {
			t.Errorf("unexpected path %s", gotPath)
		}
		text, _ := gotBody["text"].(string)
		if !strings.Contains(text, "觸發提醒") || !strings.Contains(text, "進入建倉區間") {
			t.Errorf("message should contain title and body, got %q", text)
		}
	})

	t.Run("api_error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":false,"description":"chat not found"}`))
		}))
		defer ts.Close()

		c := NewTelegramClient("tok", 123)
		c.baseURL = ts.URL
		err := c.Send(context.Background(), "t", "b")
		if err == nil || !strings.Contains(err.Error(), "chat not found") {
			t.Errorf("expected api error, got %v", err)
		}
	})

	t.Run("server_error", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"bad"}`))
		}))
		defer ts.Close()

		c := NewTelegramClient("tok", 123)
		c.baseURL = ts.URL
		if err := c.Send(context.Background(), "t", "b"); err == nil {
			t.Error("expected error for 400 status")
		}
	})

	t.Run("channel", func(t *testing.T) {
		if NewTelegramClient("tok", 1).Channel() != alert.ChannelTelegram {
			t.Error("unexpected channel")
		}
	})
}
