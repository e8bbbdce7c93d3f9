package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestServer(fs *fakeStore, deps Deps) *HTTPServer {
	return NewHTTPServer(newTestService(fs, deps), "*", nil, false)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(&fakeStore{}, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}

	if ok, exists := response["ok"]; !exists || ok != true {
		t.Errorf("expected ok=true, got %v", ok)
	}
}

func TestReadyEndpoint_Success(t *testing.T) {
	server := newTestServer(&fakeStore{
		pingFn: func(context.Context) error { return nil },
	}, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if status := response["status"]; status != "ready" {
		t.Errorf("expected status=ready, got %v", status)
	}
}

func TestReadyEndpoint_DatabaseFailure(t *testing.T) {
	server := newTestServer(&fakeStore{
		pingFn: func(context.Context) error { return errors.New("connection refused") },
	}, Deps{})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()

	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}

	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if status := response["status"]; status != "not_ready" {
		t.Errorf("expected status=not_ready, got %v", status)
	}
}

type fakeSessions struct {
	err error
}

func (f *fakeSessions) Ping(ctx context.Context) error { return f.err }

func TestReadyEndpoint_RedisChecked(t *testing.T) {
	server := newTestServer(&fakeStore{
		pingFn: func(context.Context) error { return nil },
	}, Deps{Sessions: &fakeSessions{}})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	checks, _ := response["checks"].(map[string]any)
	redis, _ := checks["redis"].(map[string]any)
	if redis["status"] != "ok" {
		t.Errorf("expected redis check ok, got %v", checks["redis"])
	}
}

func TestReadyEndpoint_RedisFailure(t *testing.T) {
	server := newTestServer(&fakeStore{
		pingFn: func(context.Context) error { return nil },
	}, Deps{Sessions: &fakeSessions{err: errors.New("connection refused")}})

	req := httptest.NewRequest(http.MethodGet, "/api/ready", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if status := response["status"]; status != "not_ready" {
		t.Errorf("expected status=not_ready, got %v", status)
	}
	checks, _ := response["checks"].(map[string]any)
	redis, _ := checks["redis"].(map[string]any)
	if redis["status"] != "error" {
		t.Errorf("expected redis check error, got %v", checks["redis"])
	}
}
