package rail

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTransfer_OK(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("method = %s, want POST", r.Method)
		}
		if r.URL.Path != "/api/transfers" {
			t.Fatalf("path = %s, want /api/transfers", r.URL.Path)
		}

		var req transferRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if req.To != "alice" || req.Amount != 95 {
			t.Fatalf("unexpected request: %+v", req)
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer ts.Close()

	client := NewClient(ts.URL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := client.Transfer(ctx, "alice", 95); err != nil {
		t.Fatalf("Transfer error: %v", err)
	}
}

func TestTransfer_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "amount too small", status: http.StatusUnprocessableEntity, want: ErrAmountTooSmall},
		{name: "recipient missing", status: http.StatusNotFound, want: ErrRecipientRejected},
		{name: "recipient forbidden", status: http.StatusForbidden, want: ErrRecipientRejected},
		{name: "server error", status: http.StatusBadGateway, want: ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer ts.Close()

			err := NewClient(ts.URL).Transfer(context.Background(), "alice", 1)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Transfer error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestTransfer_Unreachable(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close()

	err := NewClient(url).Transfer(context.Background(), "alice", 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Transfer error = %v, want ErrUnavailable", err)
	}
}

func TestTransfer_NotConfigured(t *testing.T) {
	var c *Client
	if err := c.Transfer(context.Background(), "alice", 1); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Transfer error = %v, want ErrUnavailable", err)
	}
}

func TestNewClient_AddsScheme(t *testing.T) {
	c := NewClient("rail:8081/")
	if c.baseURL != "http://rail:8081" {
		t.Fatalf("baseURL = %q, want http://rail:8081", c.baseURL)
	}
}
