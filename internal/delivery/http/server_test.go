package http

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestServe(t *testing.T) {
	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- Serve(ctx, "127.0.0.1:0", http.NotFoundHandler(), nil) }()

		time.Sleep(50 * time.Millisecond)
		cancel()

		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve() error = %v, want nil", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Serve() did not return after cancel")
		}
	})

	t.Run("reports listen errors", func(t *testing.T) {
		err := Serve(context.Background(), "256.0.0.1:bad", http.NotFoundHandler(), nil)
		if err == nil {
			t.Error("Serve() error = nil, want listen error")
		}
	})
}
