// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Downtown Montclair Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"
)

func startServer(t *testing.T, ready ReadinessChecker) *Server {
	t.Helper()
	server := NewServer("127.0.0.1:0", ready, nil)
	if _, err := server.Start(); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})
	return server
}

func get(t *testing.T, server *Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get("http://" + server.Addr() + path)
	if err != nil {
		t.Fatalf("failed to GET %s: %v", path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	return resp.StatusCode, string(body)
}

func TestServer_Metrics(t *testing.T) {
	server := startServer(t, func() bool { return true })
	server.Metrics().RecordOperation("login", StatusSuccess, 10*time.Millisecond)

	status, body := get(t, server, "/metrics")
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}
	for _, want := range []string{"# HELP", "downtown_auth_operations_total", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestServer_Liveness(t *testing.T) {
	server := startServer(t, func() bool { return false })

	status, body := get(t, server, "/healthz/liveness")
	if status != http.StatusOK {
		t.Errorf("expected status 200, got %d", status)
	}
	if strings.TrimSpace(body) != "ok" {
		t.Errorf("expected body 'ok', got %q", body)
	}
}

func TestServer_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		ready      ReadinessChecker
		wantStatus int
		wantBody   string
	}{
		{"ready", func() bool { return true }, http.StatusOK, "ok"},
		{"not ready", func() bool { return false }, http.StatusServiceUnavailable, "not ready"},
		{"nil checker defaults to ready", nil, http.StatusOK, "ok"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := startServer(t, tt.ready)
			status, body := get(t, server, "/healthz/readiness")
			if status != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, status)
			}
			if strings.TrimSpace(body) != tt.wantBody {
				t.Errorf("expected body %q, got %q", tt.wantBody, body)
			}
		})
	}
}

func TestServer_DoubleStartFails(t *testing.T) {
	server := startServer(t, nil)
	if _, err := server.Start(); err == nil {
		t.Error("expected error on double start, got nil")
	}
}

func TestServer_StopWithoutStart(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	if err := server.Stop(context.Background()); err != nil {
		t.Errorf("stop without start should not error: %v", err)
	}
	if server.Addr() != "" {
		t.Errorf("expected empty addr before start, got %q", server.Addr())
	}
}

func TestServer_ErrorChannelReportsServeErrors(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := server.Start()
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	_ = server.listener.Close()

	select {
	case serveErr := <-errCh:
		if serveErr == nil {
			t.Error("expected an error after closing the listener")
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for serve error")
	}
	_ = server.Stop(context.Background())
}

func TestServer_ErrorChannelClosesOnShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, nil)
	errCh, err := server.Start()
	if err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	if err := server.Stop(context.Background()); err != nil {
		t.Fatalf("failed to stop server: %v", err)
	}

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			t.Errorf("unexpected error on normal shutdown: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Error("timeout waiting for error channel to close")
	}
}
