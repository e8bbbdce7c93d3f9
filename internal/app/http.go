package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"peraturan/api/internal/archive"
	"peraturan/api/internal/auth"
	"peraturan/api/internal/search"
	"peraturan/api/internal/session"
	"peraturan/api/internal/store"
	"peraturan/api/internal/suggest"
	"peraturan/api/internal/verify"
)

// Crawled statutes are HTML or PDF files; anything beyond this is not a
// source document.
const maxSourceUploadBytes = 32 << 20

type HTTPServer struct {
	service           *Service
	corsOrigin        string
	suggestionOrigins map[string]struct{}
	trustedProxy      bool
}

func NewHTTPServer(service *Service, corsOrigin string, suggestionOrigins []string, trustedProxy bool) *HTTPServer {
	allowed := make(map[string]struct{}, len(suggestionOrigins))
	for _, origin := range suggestionOrigins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowed[origin] = struct{}{}
		}
	}
	return &HTTPServer{
		service:           service,
		corsOrigin:        corsOrigin,
		suggestionOrigins: allowed,
		trustedProxy:      trustedProxy,
	}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		if configured, err := s.service.PingSessions(ctx); configured {
			checks["redis"] = map[string]any{"status": "ok"}
			if err != nil {
				status = "not_ready"
				statusCode = http.StatusServiceUnavailable
				checks["redis"] = map[string]any{
					"status": "error",
					"error":  err.Error(),
				}
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		s.handleSearchWorks(w, r)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search/chunks" {
		s.handleSearchChunks(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/suggestions" {
		s.handleSubmitSuggestion(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/admin/login" {
		s.handleAdminLogin(w, r)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/admin/logout" {
		_ = s.service.AdminLogout(r.Context(), bearerToken(r))
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/admin/session" {
		admin, err := s.service.AdminFromToken(r.Context(), bearerToken(r))
		if err != nil {
			writeJSON(w, http.StatusOK, map[string]any{"authenticated": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"email":         admin.Email,
			"displayName":   admin.DisplayName,
		})
		return
	}

	parts := splitPath(r.URL.Path)

	// /api/laws...
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "laws" {
		s.handleLaws(w, r, parts[2:])
		return
	}

	// /api/admin/... (gated)
	if len(parts) >= 2 && parts[0] == "api" && parts[1] == "admin" {
		if !s.service.Authorize(r.Context(), adminKey(r), bearerToken(r)) {
			s.denyAdmin(w, r)
			return
		}
		s.handleAdmin(w, r, parts[2:])
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// denyAdmin fails closed: browsers get steered to the login page, API
// clients get a plain 401.
func (s *HTTPServer) denyAdmin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet && strings.Contains(r.Header.Get("Accept"), "text/html") {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}
	writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
}

func (s *HTTPServer) handleSearchWorks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "MISSING_QUERY", "Parameter q wajib diisi.", nil)
		return
	}
	resp := s.service.SearchWorks(search.WorkQuery{
		Text:       q,
		FilterType: strings.TrimSpace(query.Get("type")),
		Limit:      intParam(query.Get("limit"), 0),
		Offset:     intParam(query.Get("offset"), 0),
	})
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleSearchChunks(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := strings.TrimSpace(query.Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "MISSING_QUERY", "Parameter q wajib diisi.", nil)
		return
	}

	filter := map[string]string{}
	if workType := strings.TrimSpace(query.Get("type")); workType != "" {
		filter["type"] = workType
	}

	groups, err := s.service.SearchChunks(r.Context(), q, intParam(query.Get("limit"), 0), filter)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": groups,
		"total":   len(groups),
		"query":   q,
	})
}

func (s *HTTPServer) handleSubmitSuggestion(w http.ResponseWriter, r *http.Request) {
	if origin := r.Header.Get("Origin"); origin != "" && len(s.suggestionOrigins) > 0 {
		if _, ok := s.suggestionOrigins[origin]; !ok {
			writeError(w, http.StatusForbidden, "ORIGIN_NOT_ALLOWED", "Origin tidak diizinkan.", nil)
			return
		}
	}

	var input suggest.Input
	if err := decodeBody(r, &input); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	id, err := s.service.SubmitSuggestion(r.Context(), input, s.clientIP(r))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      id,
		"status":  store.SuggestionPending,
		"message": "Terima kasih, usulan Anda akan ditinjau.",
	})
}

func (s *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}

	admin, token, err := s.service.AdminLogin(r.Context(), body.Email, body.Password)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":       token,
		"email":       admin.Email,
		"displayName": admin.DisplayName,
	})
}

// handleLaws serves the public reading surface under /api/laws.
func (s *HTTPServer) handleLaws(w http.ResponseWriter, r *http.Request, rest []string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}

	// GET /api/laws
	if len(rest) == 0 {
		query := r.URL.Query()
		works, total, err := s.service.ListWorks(r.Context(), store.WorkFilter{
			WorkType: strings.TrimSpace(query.Get("type")),
			Year:     intParam(query.Get("year"), 0),
			Status:   strings.TrimSpace(query.Get("status")),
			Limit:    intParam(query.Get("limit"), 0),
			Offset:   intParam(query.Get("offset"), 0),
		})
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"results": works, "total": total})
		return
	}

	workID, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil || workID <= 0 {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "ID peraturan tidak valid.", nil)
		return
	}

	// GET /api/laws/{id}
	if len(rest) == 1 {
		work, nodes, err := s.service.GetWorkWithNodes(r.Context(), workID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"work": work, "nodes": nodes})
		return
	}

	if len(rest) == 2 {
		switch rest[1] {
		// GET /api/laws/{id}/history
		case "history":
			history, err := s.service.WorkHistory(r.Context(), workID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"commits": history})
			return

		// GET /api/laws/{id}/export
		case "export":
			result, err := s.service.ExportWork(r.Context(), workID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			w.Header().Set("Content-Type", result.MimeType)
			w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(result.Data)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// handleAdmin serves the gated back-office surface under /api/admin.
func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request, rest []string) {
	// POST /api/admin/verify-suggestion
	if r.Method == http.MethodPost && len(rest) == 1 && rest[0] == "verify-suggestion" {
		var body struct {
			SuggestionID int64 `json:"suggestion_id"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if body.SuggestionID <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "ID usulan tidak valid.", nil)
			return
		}
		verdict, err := s.service.VerifySuggestion(r.Context(), body.SuggestionID)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, verdict)
		return
	}

	// GET /api/admin/suggestions
	if r.Method == http.MethodGet && len(rest) == 1 && rest[0] == "suggestions" {
		query := r.URL.Query()
		items, err := s.service.ListSuggestions(r.Context(),
			strings.TrimSpace(query.Get("status")),
			intParam(query.Get("limit"), 0),
			intParam(query.Get("offset"), 0),
		)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"suggestions": items})
		return
	}

	if len(rest) == 3 && rest[0] == "suggestions" && r.Method == http.MethodPost {
		id, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "ID usulan tidak valid.", nil)
			return
		}

		switch rest[2] {
		// POST /api/admin/suggestions/{id}/verify
		case "verify":
			verdict, err := s.service.VerifySuggestion(r.Context(), id)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, verdict)
			return

		// POST /api/admin/suggestions/{id}/review
		case "review":
			var body struct {
				Approve  bool   `json:"approve"`
				Reviewer string `json:"reviewer"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if body.Reviewer == "" {
				if admin, err := s.service.AdminFromToken(r.Context(), bearerToken(r)); err == nil {
					body.Reviewer = admin.DisplayName
				}
			}
			sg, err := s.service.ReviewSuggestion(r.Context(), id, body.Approve, body.Reviewer)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, sg)
			return
		}
	}

	// GET /api/admin/scraper/status
	if r.Method == http.MethodGet && len(rest) == 2 && rest[0] == "scraper" && rest[1] == "status" {
		status, err := s.service.ScraperStatus(r.Context())
		if err != nil {
			st, code, message, details := mapError(err)
			writeError(w, st, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// POST /api/admin/scraper/trigger
	if r.Method == http.MethodPost && len(rest) == 2 && rest[0] == "scraper" && rest[1] == "trigger" {
		result, err := s.service.TriggerScraper(r.Context())
		if err != nil {
			st, code, message, details := mapError(err)
			writeError(w, st, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	// POST /api/admin/works/{id}/source
	if r.Method == http.MethodPost && len(rest) == 3 && rest[0] == "works" && rest[2] == "source" {
		workID, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil || workID <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "ID peraturan tidak valid.", nil)
			return
		}
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSourceUploadBytes))
		if err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "SOURCE_TOO_LARGE", "Dokumen sumber terlalu besar.", nil)
			return
		}
		if err := s.service.UploadSource(r.Context(), workID, r.Header.Get("Content-Type"), data); err != nil {
			st, code, message, details := mapError(err)
			writeError(w, st, code, message, details)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
		return
	}

	// GET /api/admin/works/{id}/source
	if r.Method == http.MethodGet && len(rest) == 3 && rest[0] == "works" && rest[2] == "source" {
		workID, err := strconv.ParseInt(rest[1], 10, 64)
		if err != nil || workID <= 0 {
			writeError(w, http.StatusBadRequest, "INVALID_ID", "ID peraturan tidak valid.", nil)
			return
		}
		data, contentType, err := s.service.GetSource(r.Context(), workID)
		if err != nil {
			st, code, message, details := mapError(err)
			writeError(w, st, code, message, details)
			return
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// clientIP resolves the submitter address. The forwarded header is only
// honored when the deployment declares a trusted proxy in front.
func (s *HTTPServer) clientIP(r *http.Request) string {
	if s.trustedProxy {
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
			if first != "" {
				return first
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func adminKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Admin-Key"))
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID, X-Admin-Key")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}

	var validationErr *suggest.Error
	if errors.As(err, &validationErr) {
		switch validationErr.Kind {
		case suggest.KindNotFound:
			return http.StatusNotFound, "NOT_FOUND", validationErr.Message, nil
		case suggest.KindConflict:
			return http.StatusConflict, "CONFLICT", validationErr.Message, nil
		case suggest.KindRateLimited:
			return http.StatusTooManyRequests, "RATE_LIMITED", validationErr.Message, nil
		default:
			return http.StatusBadRequest, "VALIDATION_ERROR", validationErr.Message, nil
		}
	}

	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, archive.ErrNotFound) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, verify.ErrUpstream) {
		return http.StatusBadGateway, "UPSTREAM_ERROR", "Layanan verifikasi sedang bermasalah.", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, session.ErrNoSession) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
