package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hisho-bot/hisho/internal/auth"
)

func TestClientInvoke(t *testing.T) {
	var gotReq invokeRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != invocationsPath {
			t.Errorf("path = %q, want %q", r.URL.Path, invocationsPath)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		json.NewEncoder(w).Encode(invokeResponse{Result: `{"type":"text","message":"ok"}`, Status: "success"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	creds := &auth.GoogleCredentials{AccessToken: "at", RefreshToken: "rt"}
	result, err := c.Invoke(context.Background(), "今日の予定は？", "U1", creds)
	if err != nil {
		t.Fatal(err)
	}

	if result != `{"type":"text","message":"ok"}` {
		t.Errorf("result = %q", result)
	}
	if gotReq.Prompt != "今日の予定は？" || gotReq.UserID != "U1" {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.GoogleCredentials == nil || gotReq.GoogleCredentials.AccessToken != "at" {
		t.Errorf("credentials not forwarded: %+v", gotReq.GoogleCredentials)
	}
}

func TestClientInvokeOmitsNilCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		if _, present := raw["google_credentials"]; present {
			t.Error("nil credentials serialized into the request")
		}
		json.NewEncoder(w).Encode(invokeResponse{Result: "ok"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Invoke(context.Background(), "hi", "U1", nil); err != nil {
		t.Fatal(err)
	}
}

func TestClientInvokeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.Invoke(context.Background(), "hi", "U1", nil); err == nil {
		t.Fatal("Invoke succeeded against a 500 response")
	}
}

func TestClientTrimsTrailingSlash(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != invocationsPath {
			t.Errorf("path = %q, want %q", r.URL.Path, invocationsPath)
		}
		json.NewEncoder(w).Encode(invokeResponse{Result: "ok"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/")
	if _, err := c.Invoke(context.Background(), "hi", "U1", nil); err != nil {
		t.Fatal(err)
	}
}
