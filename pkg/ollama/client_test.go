package ollama

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient(t *testing.T) {
	if _, err := NewClient("http://localhost:11434/api/chat"); err != nil {
		t.Errorf("Expected valid URL to be accepted: %v", err)
	}
	if _, err := NewClient("localhost"); err == nil {
		t.Error("Expected error for URL without scheme")
	}
}

func TestSimpleQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"model":   req["model"],
			"message": map[string]any{"role": "assistant", "content": `{"caption":"Sunset Pier"}`},
			"done":    true,
		})
	}))
	defer srv.Close()

	c, err := NewClient(srv.URL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	img := base64.StdEncoding.EncodeToString([]byte("fake"))
	got, err := c.SimpleQuery(context.Background(), "llava", "caption this", img)
	if err != nil {
		t.Fatalf("SimpleQuery failed: %v", err)
	}
	if got != `{"caption":"Sunset Pier"}` {
		t.Errorf("Unexpected reply %q", got)
	}
}

func TestSimpleQueryBadImage(t *testing.T) {
	c, err := NewClient(DefaultURL)
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := c.SimpleQuery(context.Background(), "llava", "p", "%%%not-base64"); err == nil {
		t.Error("Expected error for invalid base64")
	}
}
