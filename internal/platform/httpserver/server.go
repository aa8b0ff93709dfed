package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	contributionengine "lexcontrib/contexts/lexeme-contribution/contribution-engine"
	"lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/entities"
	domainerrors "lexcontrib/contexts/lexeme-contribution/contribution-engine/domain/errors"
	contributionhttp "lexcontrib/contexts/lexeme-contribution/contribution-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "lexcontrib/internal/platform/httpserver/docs"
)

const maxBodyBytes = 1 << 20

type Server struct {
	mux          *http.ServeMux
	logger       *slog.Logger
	addr         string
	contribution contributionengine.Module
}

func New(contribution contributionengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:          http.NewServeMux(),
		logger:       logger,
		addr:         addr,
		contribution: contribution,
	}
	s.registerRoutes()
	return s
}

// Handler exposes the route table for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}

// apiRoutes maps "METHOD path" patterns to handlers. Every entry must have a
// matching operation in the swagger document served under /swagger/.
func (s *Server) apiRoutes() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		"POST /contributions/start":                        s.handleStartSession,
		"POST /contributions/end":                          s.handleEndSession,
		"GET /contributions/current":                       s.handleCurrentSession,
		"GET /contributions/languages":                     s.handleListLanguages,
		"GET /contributions/{session_id}/{kind}/{item_id}": s.handleGetItem,
		"PUT /contributions/{session_id}/{kind}/{item_id}": s.handleUpdateItem,
	}
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	for pattern, handler := range s.apiRoutes() {
		s.mux.HandleFunc(pattern, handler)
	}
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	contributor, ok := resolveContributor(w, r)
	if !ok {
		return
	}
	var req contributionhttp.StartSessionRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.contribution.Handler.StartSessionHandler(r.Context(), contributor, req)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	contributor, ok := resolveContributor(w, r)
	if !ok {
		return
	}
	resp, err := s.contribution.Handler.EndSessionHandler(r.Context(), contributor.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentSession(w http.ResponseWriter, r *http.Request) {
	contributor, ok := resolveContributor(w, r)
	if !ok {
		return
	}
	resp, err := s.contribution.Handler.CurrentSessionHandler(r.Context(), contributor.UserID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListLanguages(w http.ResponseWriter, r *http.Request) {
	resp, err := s.contribution.Handler.ListLanguagesHandler(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request) {
	contributor, ok := resolveContributor(w, r)
	if !ok {
		return
	}
	resp, err := s.contribution.Handler.GetItemHandler(
		r.Context(),
		contributor,
		r.PathValue("session_id"),
		r.PathValue("kind"),
		r.PathValue("item_id"),
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	contributor, ok := resolveContributor(w, r)
	if !ok {
		return
	}
	var req contributionhttp.UpdateItemRequest
	if !decodeBody(w, r, &req) {
		return
	}

	resp, err := s.contribution.Handler.UpdateItemHandler(
		r.Context(),
		contributor,
		r.PathValue("session_id"),
		r.PathValue("kind"),
		r.PathValue("item_id"),
		req,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// resolveContributor reads the caller identity set by the upstream gateway.
func resolveContributor(w http.ResponseWriter, r *http.Request) (entities.Contributor, bool) {
	userID := strings.TrimSpace(r.Header.Get("X-User-Id"))
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing_user", "X-User-Id header is required")
		return entities.Contributor{}, false
	}
	return entities.Contributor{
		UserID:          userID,
		ExternalUserID:  strings.TrimSpace(r.Header.Get("X-External-User-Id")),
		AccessToken:     bearerToken(r.Header.Get("Authorization")),
		DisplayLanguage: displayLanguage(r),
	}, true
}

func bearerToken(header string) string {
	value := strings.TrimSpace(header)
	if len(value) < 7 || !strings.EqualFold(value[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(value[7:])
}

func displayLanguage(r *http.Request) string {
	if value := strings.TrimSpace(r.Header.Get("X-Display-Language")); value != "" {
		return strings.ToLower(value)
	}
	accept := r.Header.Get("Accept-Language")
	if accept == "" {
		return ""
	}
	first := strings.TrimSpace(strings.Split(accept, ",")[0])
	first = strings.TrimSpace(strings.Split(first, ";")[0])
	if first == "*" {
		return ""
	}
	return strings.ToLower(strings.Split(first, "-")[0])
}

func decodeBody(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON")
		return false
	}
	return true
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, domainerrors.ErrPendingActivityConflict):
		writeError(w, http.StatusConflict, "pending_activity_conflict", err.Error())
	case errors.Is(err, domainerrors.ErrConcurrentSessionStart):
		writeError(w, http.StatusConflict, "concurrent_session_start", err.Error())
	case errors.Is(err, domainerrors.ErrLanguageNotFound):
		writeError(w, http.StatusNotFound, "language_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrActivityNotAvailable):
		writeError(w, http.StatusUnprocessableEntity, "activity_not_available", err.Error())
	case errors.Is(err, domainerrors.ErrCandidatesNotFound):
		writeError(w, http.StatusNotFound, "candidates_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrAllocationTimeout):
		writeError(w, http.StatusServiceUnavailable, "allocation_timeout", err.Error())
	case errors.Is(err, domainerrors.ErrStoreContention):
		writeError(w, http.StatusServiceUnavailable, "store_contention", err.Error())
	case errors.Is(err, domainerrors.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, domainerrors.ErrNoActiveSession):
		writeError(w, http.StatusNotFound, "no_active_session", err.Error())
	case errors.Is(err, domainerrors.ErrExternalWriteFailed):
		writeError(w, http.StatusBadGateway, "external_write_failed", domainerrors.ErrExternalWriteFailed.Error())
	case errors.Is(err, domainerrors.ErrExternalLookupFailed):
		writeError(w, http.StatusBadGateway, "external_lookup_failed", domainerrors.ErrExternalLookupFailed.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, contributionhttp.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
