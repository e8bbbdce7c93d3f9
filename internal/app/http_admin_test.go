package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"peraturan/api/internal/gate"
	"peraturan/api/internal/store"
	"peraturan/api/internal/verify"
)

func adminDeps(extra Deps) Deps {
	extra.Gate = gate.New("svc-key", nil)
	return extra
}

func adminReq(method, path string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("X-Admin-Key", "svc-key")
	return req
}

func TestVerifyEndpointReturnsVerdict(t *testing.T) {
	fv := &fakeVerifier{verdict: verify.Verdict{
		Decision:   verify.DecisionAccept,
		Confidence: 0.92,
		Reasoning:  "usulan sesuai sumber",
	}}
	server := newTestServer(&fakeStore{}, adminDeps(Deps{Verifier: fv}))

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, adminReq(http.MethodPost, "/api/admin/suggestions/42/verify"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(fv.calls) != 1 || fv.calls[0] != 42 {
		t.Errorf("verifier calls = %v", fv.calls)
	}

	var verdict verify.Verdict
	if err := json.Unmarshal(rr.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("parse verdict: %v", err)
	}
	if verdict.Decision != verify.DecisionAccept || verdict.Confidence != 0.92 {
		t.Errorf("verdict = %+v", verdict)
	}
}

func TestVerifySuggestionBodyRoute(t *testing.T) {
	fv := &fakeVerifier{verdict: verify.Verdict{
		Decision:   verify.DecisionAccept,
		Confidence: 0.88,
		Reasoning:  "usulan sesuai sumber",
	}}
	server := newTestServer(&fakeStore{}, adminDeps(Deps{Verifier: fv}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/verify-suggestion",
		strings.NewReader(`{"suggestion_id": 42}`))
	req.Header.Set("X-Admin-Key", "svc-key")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if len(fv.calls) != 1 || fv.calls[0] != 42 {
		t.Errorf("verifier calls = %v", fv.calls)
	}

	var verdict verify.Verdict
	if err := json.Unmarshal(rr.Body.Bytes(), &verdict); err != nil {
		t.Fatalf("parse verdict: %v", err)
	}
	if verdict.Decision != verify.DecisionAccept || verdict.Confidence != 0.88 {
		t.Errorf("verdict = %+v", verdict)
	}
}

func TestVerifySuggestionBodyRouteRejectsBadID(t *testing.T) {
	fv := &fakeVerifier{}
	server := newTestServer(&fakeStore{}, adminDeps(Deps{Verifier: fv}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/verify-suggestion",
		strings.NewReader(`{"suggestion_id": 0}`))
	req.Header.Set("X-Admin-Key", "svc-key")
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if len(fv.calls) != 0 {
		t.Errorf("verifier calls = %v, want none", fv.calls)
	}
}

func TestVerifyEndpointUpstreamFailure(t *testing.T) {
	fv := &fakeVerifier{err: fmt.Errorf("%w: timeout", verify.ErrUpstream)}
	server := newTestServer(&fakeStore{}, adminDeps(Deps{Verifier: fv}))

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, adminReq(http.MethodPost, "/api/admin/suggestions/42/verify"))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if response["code"] != "UPSTREAM_ERROR" {
		t.Errorf("code = %v", response["code"])
	}
}

func TestVerifyEndpointMissingSuggestion(t *testing.T) {
	fv := &fakeVerifier{err: fmt.Errorf("load suggestion 42: %w", sql.ErrNoRows)}
	server := newTestServer(&fakeStore{}, adminDeps(Deps{Verifier: fv}))

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, adminReq(http.MethodPost, "/api/admin/suggestions/42/verify"))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestExportEndpointStreamsPDF(t *testing.T) {
	server := newTestServer(&fakeStore{
		getWorkFn: func(ctx context.Context, id int64) (store.Work, error) {
			return store.Work{ID: id, Title: "UU 14/2008"}, nil
		},
	}, Deps{Exporter: &fakeExporter{}})

	req := httptest.NewRequest(http.MethodGet, "/api/laws/3/export", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rr.Header().Get("Content-Disposition"); got != `attachment; filename="peraturan.pdf"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if rr.Body.String() != "%PDF-1.4" {
		t.Errorf("body = %q", rr.Body.String())
	}
}

func TestUploadSourceEndpoint(t *testing.T) {
	fa := &fakeArchive{}
	fs := &fakeStore{
		getWorkFn: func(ctx context.Context, id int64) (store.Work, error) {
			return store.Work{ID: id, Title: "UU 14/2008"}, nil
		},
	}
	server := newTestServer(fs, adminDeps(Deps{Archive: fa}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/works/3/source",
		strings.NewReader("<html>naskah asli</html>"))
	req.Header.Set("X-Admin-Key", "svc-key")
	req.Header.Set("Content-Type", "text/html")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if fa.putWorkID != 3 || fa.putContentType != "text/html" {
		t.Errorf("archived workID=%d contentType=%q", fa.putWorkID, fa.putContentType)
	}
	if string(fa.putData) != "<html>naskah asli</html>" {
		t.Errorf("archived data = %q", fa.putData)
	}
}

func TestUploadSourceEndpointRejectsEmptyBody(t *testing.T) {
	fa := &fakeArchive{}
	server := newTestServer(&fakeStore{}, adminDeps(Deps{Archive: fa}))

	req := httptest.NewRequest(http.MethodPost, "/api/admin/works/3/source", strings.NewReader(""))
	req.Header.Set("X-Admin-Key", "svc-key")
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if fa.putWorkID != 0 {
		t.Errorf("archive written for workID=%d, want no write", fa.putWorkID)
	}
}

func TestScraperTriggerEndpoint(t *testing.T) {
	fs := &fakeStore{
		resetFailedFn:  func(ctx context.Context) (int, error) { return 2, nil },
		countPendingFn: func(ctx context.Context) (int, error) { return 7, nil },
	}
	server := newTestServer(fs, adminDeps(Deps{}))

	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, adminReq(http.MethodPost, "/api/admin/scraper/trigger"))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var result TriggerResult
	if err := json.Unmarshal(rr.Body.Bytes(), &result); err != nil {
		t.Fatalf("parse result: %v", err)
	}
	if result.ResetFailed != 2 || result.PendingJobs != 7 {
		t.Errorf("result = %+v", result)
	}
}
