package oracle_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/cloudcrafter/console/internal/console/oracle"
)

func TestRecognizePassesAttributesVerbatim(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"messages": [{"content": "Which region?"}, {"content": "Pick one."}],
			"sessionState": {
				"sessionAttributes": {"ui_payload": "{}", "phase": "collect"},
				"intent": {"name": "CreateInfraIntent"},
				"dialogAction": {"slotToElicit": "region"}
			}
		}`))
	}))
	defer srv.Close()

	c := oracle.NewHTTP(oracle.Config{BaseURL: srv.URL, BotID: "bot", BotAliasID: "alias"})
	res, err := c.Recognize(context.Background(), oracle.TurnRequest{
		SessionID:         "sess-1",
		Text:              "Launch EC2 Instance",
		SessionAttributes: map[string]string{"carry": "me"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sent, _ := captured["sessionAttributes"].(map[string]any)
	if sent["carry"] != "me" {
		t.Errorf("outbound attributes not passed through: %v", captured)
	}
	if captured["sessionId"] != "sess-1" || captured["text"] != "Launch EC2 Instance" {
		t.Errorf("request fields wrong: %v", captured)
	}

	wantAttrs := map[string]string{"ui_payload": "{}", "phase": "collect"}
	if !reflect.DeepEqual(res.SessionAttributes, wantAttrs) {
		t.Errorf("inbound attributes: got %v", res.SessionAttributes)
	}
	if !reflect.DeepEqual(res.Messages, []string{"Which region?", "Pick one."}) {
		t.Errorf("messages: got %v", res.Messages)
	}
	if res.IntentName != "CreateInfraIntent" || res.SlotToElicit != "region" {
		t.Errorf("intent/slot: got %q/%q", res.IntentName, res.SlotToElicit)
	}
}

func TestRecognizeEmptyAttributeBagInReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"messages": [{"content": "hi"}], "sessionState": {}}`))
	}))
	defer srv.Close()

	c := oracle.NewHTTP(oracle.Config{BaseURL: srv.URL})
	res, err := c.Recognize(context.Background(), oracle.TurnRequest{SessionID: "s", Text: "hi"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.SessionAttributes == nil || len(res.SessionAttributes) != 0 {
		t.Errorf("expected empty non-nil bag, got %#v", res.SessionAttributes)
	}
}

func TestRecognizeServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := oracle.NewHTTP(oracle.Config{BaseURL: srv.URL})
	_, err := c.Recognize(context.Background(), oracle.TurnRequest{SessionID: "s", Text: "hi"})
	if !errors.Is(err, oracle.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRecognizeTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := oracle.NewHTTP(oracle.Config{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := c.Recognize(context.Background(), oracle.TurnRequest{SessionID: "s", Text: "hi"})
	if !errors.Is(err, oracle.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRecognizeMalformedBodyIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := oracle.NewHTTP(oracle.Config{BaseURL: srv.URL})
	_, err := c.Recognize(context.Background(), oracle.TurnRequest{SessionID: "s", Text: "hi"})
	if !errors.Is(err, oracle.ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}
