package httputil

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/json" {
			t.Errorf("Accept = %q, want application/json", r.Header.Get("Accept"))
		}
		w.Write([]byte(`{"name":"ok","count":3}`))
	}))
	defer srv.Close()

	var v payload
	if err := GetJSON(context.Background(), srv.Client(), srv.URL, &v); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if v.Name != "ok" || v.Count != 3 {
		t.Errorf("decoded %+v", v)
	}
}

func TestGetJSONStatusHandling(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		wantRetryable bool
	}{
		{"ServerErrorIsRetryable", http.StatusInternalServerError, true},
		{"BadGatewayIsRetryable", http.StatusBadGateway, true},
		{"NotFoundIsPermanent", http.StatusNotFound, false},
		{"TooManyRequestsIsPermanent", http.StatusTooManyRequests, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			var v payload
			err := GetJSON(context.Background(), srv.Client(), srv.URL, &v)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := isRetryable(err); got != tt.wantRetryable {
				t.Errorf("retryable = %v, want %v", got, tt.wantRetryable)
			}
		})
	}
}

func TestGetJSONDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":`))
	}))
	defer srv.Close()

	var v payload
	err := GetJSON(context.Background(), srv.Client(), srv.URL, &v)
	if err == nil {
		t.Fatal("expected decode error")
	}
	if isRetryable(err) {
		t.Error("malformed JSON is permanent, not retryable")
	}
}

func TestGetJSONTransportError(t *testing.T) {
	var v payload
	err := GetJSON(context.Background(), http.DefaultClient, "http://127.0.0.1:1/none", &v)
	if err == nil {
		t.Fatal("expected transport error")
	}
	if !isRetryable(err) {
		t.Error("transport failures should be retryable")
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("SucceedsAfterTransientFailures", func(t *testing.T) {
		var calls atomic.Int32
		err := Retry(ctx, 3, time.Millisecond, func() error {
			if calls.Add(1) < 3 {
				return &RetryableError{Err: errors.New("transient")}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("Retry: %v", err)
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("StopsOnPermanentError", func(t *testing.T) {
		var calls atomic.Int32
		permanent := errors.New("permanent")
		err := Retry(ctx, 3, time.Millisecond, func() error {
			calls.Add(1)
			return permanent
		})
		if !errors.Is(err, permanent) {
			t.Errorf("err = %v, want permanent", err)
		}
		if calls.Load() != 1 {
			t.Errorf("calls = %d, want 1", calls.Load())
		}
	})

	t.Run("ExhaustsAttempts", func(t *testing.T) {
		var calls atomic.Int32
		err := Retry(ctx, 3, time.Millisecond, func() error {
			calls.Add(1)
			return &RetryableError{Err: errors.New("always")}
		})
		if err == nil {
			t.Fatal("expected error after exhausting attempts")
		}
		if calls.Load() != 3 {
			t.Errorf("calls = %d, want 3", calls.Load())
		}
	})

	t.Run("RespectsCancellation", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		err := Retry(cancelled, 3, time.Minute, func() error {
			return &RetryableError{Err: errors.New("transient")}
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}
