package messenger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestSendText(t *testing.T) {
	var gotPath, gotToken string
	var gotReq sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.URL.Query().Get("access_token")
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(`{"message_id":"mid.1"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "page-token", 100)
	if err := c.SendText(context.Background(), "900100", "Dạ em gửi báo giá ngay ạ"); err != nil {
		t.Fatal(err)
	}

	if gotPath != "/me/messages" {
		t.Errorf("path = %q", gotPath)
	}
	if gotToken != "page-token" {
		t.Errorf("token = %q", gotToken)
	}
	if gotReq.Recipient.ID != "900100" || gotReq.Message.Text != "Dạ em gửi báo giá ngay ạ" {
		t.Errorf("request = %+v", gotReq)
	}
	if gotReq.MessagingType != "RESPONSE" {
		t.Errorf("messaging_type = %q", gotReq.MessagingType)
	}
}

func TestSendText_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"Invalid OAuth token"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad", 100)
	if err := c.SendText(context.Background(), "900100", "hi"); err == nil {
		t.Fatal("expected error on 400")
	}
}

func TestSendText_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	// 10 rps, burst 1: three sends need at least ~200ms
	c := New(srv.URL, "t", 10)
	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := c.SendText(context.Background(), "900100", "x"); err != nil {
			t.Fatal(err)
		}
	}
	if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
		t.Errorf("three sends took %s, limiter not applied", elapsed)
	}
}

func TestSendText_CancelWhileWaiting(t *testing.T) {
	c := New("http://127.0.0.1:1", "t", 0.001)
	// burn the burst token
	c.limiter.Allow()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.SendText(ctx, "900100", "x"); err == nil {
		t.Fatal("expected context error while rate-limited")
	}
}
