package answer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Slideboard/internal/core"
)

func TestAnswer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			t.Errorf("Authorization: got %q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "tiny" || len(req.Messages) != 1 || req.Messages[0].Content != "Explain in simple words gravity" {
			t.Errorf("request: %+v", req)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Things fall down.\n"}}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(srv.URL+"/v1/", "tiny", "secret", time.Second)
	got, err := c.Answer(context.Background(), "Explain in simple words gravity")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got != "Things fall down." {
		t.Errorf("answer: got %q", got)
	}
}

func TestAnswerFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"api error", http.StatusTooManyRequests, `{"error":{"type":"rate_limit","message":"slow down"}}`, "rate_limit: slow down"},
		{"plain error", http.StatusInternalServerError, "boom", "boom"},
		{"no choices", http.StatusOK, `{"choices":[]}`, "empty completion"},
		{"bad json", http.StatusOK, `{"choices":`, "parse response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, "m", "", time.Second).Answer(context.Background(), "q")
			if !errors.Is(err, core.ErrTransport) {
				t.Fatalf("got %v, want ErrTransport", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestAnswerHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := NewClient(srv.URL, "m", "", 5*time.Second).Answer(ctx, "q"); !errors.Is(err, core.ErrTransport) {
		t.Errorf("got %v, want ErrTransport", err)
	}
}
