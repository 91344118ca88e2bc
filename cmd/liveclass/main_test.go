package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/hadikhanhk786/live-class/internal/config"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find free port: %v", err)
	}
	defer func() { _ = l.Close() }()
	return l.Addr().(*net.TCPAddr).Port
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = freePort(t)
	cfg.Storage.Path = filepath.Join(t.TempDir(), "app.db")
	return cfg
}

func TestApplicationStartStop(t *testing.T) {
	cfg := testConfig(t)

	app, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("NewApplication failed: %v", err)
	}
	if err := app.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/health", cfg.HTTP.Port))
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if health.Status != "healthy" {
		t.Errorf("status = %q, want healthy", health.Status)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestApplicationServesRESTAndWebSocket(t *testing.T) {
	cfg := testConfig(t)

	app, err := NewApplication(cfg)
	if err != nil {
		t.Fatalf("NewApplication failed: %v", err)
	}
	if err := app.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = app.Stop(ctx)
	}()

	base := fmt.Sprintf("http://127.0.0.1:%d", cfg.HTTP.Port)

	resp, err := http.Post(base+"/api/classes", "application/json",
		jsonBody(t, map[string]string{"name": "math"}))
	if err != nil {
		t.Fatalf("create class failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create class status = %d, want 201", resp.StatusCode)
	}

	resp, err = http.Get(base + "/api/classes")
	if err != nil {
		t.Fatalf("list classes failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var list struct {
		Classes []struct {
			Name string `json:"name"`
		} `json:"classes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		t.Fatalf("failed to decode class list: %v", err)
	}
	if len(list.Classes) != 1 || list.Classes[0].Name != "math" {
		t.Errorf("unexpected class list: %+v", list.Classes)
	}
}

func TestNewApplicationRejectsUnknownBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Backend = "dynamo"

	if _, err := NewApplication(cfg); err == nil {
		t.Error("unknown backend should fail")
	}
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal body: %v", err)
	}
	return bytes.NewReader(data)
}
