package crm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nextlevelbuilder/leadflow/internal/engine"
	"github.com/nextlevelbuilder/leadflow/internal/queue"
)

func testLead() *engine.LeadRecord {
	return &engine.LeadRecord{
		FullName:    "FB User 900100",
		Phone:       "0987654321",
		PlatformUID: "900100",
		Topic:       "bat_dong_san",
		LeadSource:  "facebook_chatbot",
		SourcePage:  "Luxury Realty",
		Channel:     "facebook",
		Score:       100,
	}
}

func TestPush_Success(t *testing.T) {
	var gotAuth string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"deal_id": "D-42"})
	}))
	defer srv.Close()

	retry := queue.NewMemory()
	d := New(srv.URL, "secret", 2*time.Second, retry)

	if !d.Push(context.Background(), testLead()) {
		t.Fatal("Push returned false on 201")
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("auth header = %q", gotAuth)
	}
	var sent engine.LeadRecord
	if err := json.Unmarshal(gotBody, &sent); err != nil {
		t.Fatal(err)
	}
	if sent.Phone != "0987654321" || sent.PlatformUID != "900100" {
		t.Errorf("payload = %+v", sent)
	}
	if retry.Len() != 0 {
		t.Errorf("retry queue has %d entries after success", retry.Len())
	}
}

func TestPush_ServerErrorEnqueuesRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	}))
	defer srv.Close()

	retry := queue.NewMemory()
	d := New(srv.URL, "secret", 2*time.Second, retry)

	if d.Push(context.Background(), testLead()) {
		t.Fatal("Push returned true on 502")
	}
	entries := retry.Entries()
	if len(entries) != 1 {
		t.Fatalf("retry queue entries = %d, want exactly 1", len(entries))
	}
	var stored engine.LeadRecord
	if err := json.Unmarshal(entries[0], &stored); err != nil {
		t.Fatalf("retry entry not a lead record: %v", err)
	}
	if stored.PlatformUID != "900100" || stored.Score != 100 {
		t.Errorf("stored lead = %+v", stored)
	}
}

func TestPush_TransportFailureEnqueuesRetry(t *testing.T) {
	retry := queue.NewMemory()
	// nothing listens here
	d := New("http://127.0.0.1:1", "secret", 500*time.Millisecond, retry)

	if d.Push(context.Background(), testLead()) {
		t.Fatal("Push returned true with no server")
	}
	if retry.Len() != 1 {
		t.Errorf("retry queue entries = %d, want 1", retry.Len())
	}
}

func TestPushRaw_ReplaysSerializedEntry(t *testing.T) {
	var got engine.LeadRecord
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	retry := queue.NewMemory()
	d := New(srv.URL, "secret", 2*time.Second, retry)

	raw, _ := json.Marshal(testLead())
	if !d.PushRaw(context.Background(), raw) {
		t.Fatal("PushRaw returned false on 200")
	}
	if got.PlatformUID != "900100" {
		t.Errorf("replayed lead = %+v", got)
	}
}

func TestPushRaw_FailureReEnqueues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	retry := queue.NewMemory()
	d := New(srv.URL, "secret", 2*time.Second, retry)

	raw, _ := json.Marshal(testLead())
	if d.PushRaw(context.Background(), raw) {
		t.Fatal("PushRaw returned true on 503")
	}
	if retry.Len() != 1 {
		t.Errorf("entry not re-enqueued, len = %d", retry.Len())
	}
}
