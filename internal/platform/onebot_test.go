package platform

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"chatsummary/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(ClientConfig{APIBase: srv.URL, Logger: testLogger()})
}

func TestFetchHistory_DecodesMessages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_group_msg_history" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
		if payload["reverseOrder"] != true {
			t.Error("expected reverseOrder=true")
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"retcode": 0,
			"data": map[string]any{
				"messages": []map[string]any{
					{
						"message_id":  2,
						"message_seq": 2,
						"time":        1700000001,
						"sender":      map[string]any{"user_id": 42, "nickname": "阿明"},
						"message": []map[string]any{
							{"type": "text", "data": map[string]any{"text": "hello"}},
						},
					},
				},
			},
		})
	})

	msgs, err := client.FetchHistory(context.Background(), 100, 0, 100, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Seq != 2 || msgs[0].Sender.Nickname != "阿明" {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}
	if msgs[0].Parts[0].Type != domain.PartText || msgs[0].Parts[0].Data.Text != "hello" {
		t.Fatalf("unexpected part: %+v", msgs[0].Parts[0])
	}
}

func TestFetchHistory_FailedRetcode(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"status": "failed", "retcode": 1400})
	})

	_, err := client.FetchHistory(context.Background(), 100, 0, 100, true)
	if err == nil {
		t.Fatal("expected error for failed retcode")
	}
	var re *domain.RetrievalError
	if !errors.As(err, &re) {
		t.Fatalf("expected RetrievalError, got %T: %v", err, err)
	}
	if re.GroupID != 100 {
		t.Fatalf("expected group 100 in error, got %d", re.GroupID)
	}
}

func TestFetchHistory_ServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	if _, err := client.FetchHistory(context.Background(), 1, 0, 100, true); err == nil {
		t.Fatal("expected error for HTTP 500")
	}
}

func TestLoginInfo(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/get_login_info" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "ok", "retcode": 0,
			"data": map[string]any{"user_id": 99},
		})
	})

	id, err := client.LoginInfo(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 99 {
		t.Fatalf("expected 99, got %d", id)
	}
}

func TestSendGroupMessage(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/send_group_msg" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(map[string]any{"status": "ok", "retcode": 0})
	})

	parts := []domain.MessagePart{domain.TextPart("hi")}
	if err := client.SendGroupMessage(context.Background(), 7, parts); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got["group_id"].(float64) != 7 {
		t.Fatalf("expected group_id 7, got %v", got["group_id"])
	}
}
