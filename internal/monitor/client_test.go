package monitor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync/atomic"
	"testing"
	"time"
)

func TestClient_MonitoredAddresses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Path != "/v0/webhooks/wh-1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("api-key"); got != "key-1" {
			t.Errorf("unexpected api key: %s", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(webhookState{
			WebhookID:        "wh-1",
			AccountAddresses: []string{"addr1", "addr2"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "wh-1")
	ctx := context.Background()

	addrs, err := client.MonitoredAddresses(ctx)
	if err != nil {
		t.Fatalf("MonitoredAddresses: %v", err)
	}
	if len(addrs) != 2 || addrs[0] != "addr1" || addrs[1] != "addr2" {
		t.Errorf("unexpected addresses: %v", addrs)
	}
}

func TestClient_AddAddresses(t *testing.T) {
	var putBody webhookState
	var puts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(webhookState{AccountAddresses: []string{"addr1"}})
		case http.MethodPut:
			puts.Add(1)
			if err := json.NewDecoder(r.Body).Decode(&putBody); err != nil {
				t.Fatalf("decode PUT body: %v", err)
			}
			json.NewEncoder(w).Encode(webhookState{})
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "wh-1")
	ctx := context.Background()

	if err := client.AddAddresses(ctx, []string{"addr2", "addr1", "addr2"}); err != nil {
		t.Fatalf("AddAddresses: %v", err)
	}

	if puts.Load() != 1 {
		t.Fatalf("expected 1 PUT, got %d", puts.Load())
	}
	got := append([]string(nil), putBody.AccountAddresses...)
	sort.Strings(got)
	if len(got) != 2 || got[0] != "addr1" || got[1] != "addr2" {
		t.Errorf("unexpected submitted addresses: %v", got)
	}
}

func TestClient_AddAddresses_NoOpWhenAlreadyMonitored(t *testing.T) {
	var puts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(webhookState{AccountAddresses: []string{"addr1", "addr2"}})
		case http.MethodPut:
			puts.Add(1)
			json.NewEncoder(w).Encode(webhookState{})
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "wh-1")
	ctx := context.Background()

	if err := client.AddAddresses(ctx, []string{"addr1"}); err != nil {
		t.Fatalf("AddAddresses: %v", err)
	}
	if puts.Load() != 0 {
		t.Errorf("expected no PUT for already-monitored address, got %d", puts.Load())
	}
}

func TestClient_RemoveAddresses(t *testing.T) {
	var putBody webhookState

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(webhookState{AccountAddresses: []string{"addr1", "addr2", "addr3"}})
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&putBody)
			json.NewEncoder(w).Encode(webhookState{})
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "wh-1")
	ctx := context.Background()

	if err := client.RemoveAddresses(ctx, []string{"addr2"}); err != nil {
		t.Fatalf("RemoveAddresses: %v", err)
	}
	if len(putBody.AccountAddresses) != 2 {
		t.Fatalf("expected 2 remaining addresses, got %v", putBody.AccountAddresses)
	}
	for _, a := range putBody.AccountAddresses {
		if a == "addr2" {
			t.Error("removed address still submitted")
		}
	}
}

func TestClient_Retry(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count := attempts.Add(1)
		if count < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(webhookState{AccountAddresses: []string{"addr1"}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "wh-1",
		WithMaxRetries(3),
		WithRetryDelay(10*time.Millisecond),
	)
	ctx := context.Background()

	addrs, err := client.MonitoredAddresses(ctx)
	if err != nil {
		t.Fatalf("MonitoredAddresses: %v", err)
	}
	if len(addrs) != 1 {
		t.Errorf("unexpected addresses: %v", addrs)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewClient(server.URL, "key-1", "wh-1")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.MonitoredAddresses(ctx)
	if err == nil {
		t.Fatal("expected error from cancelled context")
	}
}
