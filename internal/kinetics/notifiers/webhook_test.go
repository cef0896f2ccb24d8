package notifiers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/daniacca/genekin/internal/kinetics"
)

func TestWebhookNotifier(t *testing.T) {
	var (
		gotBody   []byte
		gotHeader http.Header
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier("test-webhook", server.URL, WithHeader("Authorization", "Bearer token"))

	if notifier.ID() != "test-webhook" {
		t.Errorf("Expected ID 'test-webhook', got '%s'", notifier.ID())
	}
	if notifier.Type() != "webhook" {
		t.Errorf("Expected type 'webhook', got '%s'", notifier.Type())
	}

	event := kinetics.NotificationEvent{RunID: "run-1", Type: kinetics.EventTermination, Polymerase: "rnapol", Gene: "geneA"}
	if err := notifier.Notify(context.Background(), event); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if gotHeader.Get("Content-Type") != "application/json" {
		t.Errorf("Unexpected content type %q", gotHeader.Get("Content-Type"))
	}
	if gotHeader.Get("Authorization") != "Bearer token" {
		t.Errorf("Expected custom header, got %q", gotHeader.Get("Authorization"))
	}
	if gotHeader.Get("X-Genekin-Event") != "termination" {
		t.Errorf("Expected event type header, got %q", gotHeader.Get("X-Genekin-Event"))
	}
	var decoded kinetics.NotificationEvent
	if err := json.Unmarshal(gotBody, &decoded); err != nil {
		t.Fatalf("Body is not JSON: %v", err)
	}
	if decoded.Gene != "geneA" || decoded.RunID != "run-1" {
		t.Errorf("Unexpected body %+v", decoded)
	}

	if err := notifier.Close(); err != nil {
		t.Errorf("Close should not return error: %v", err)
	}
}

func TestWebhookNotifier_Non2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer server.Close()

	notifier := NewWebhookNotifier("hook", server.URL, WithTimeout(time.Second))
	err := notifier.Notify(context.Background(), kinetics.NotificationEvent{})
	if err == nil {
		t.Fatal("Expected error for 502 response")
	}
	if !strings.Contains(err.Error(), "502: upstream down") {
		t.Errorf("Expected status and body in error, got %v", err)
	}
}
