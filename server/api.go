package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/borderwatch/alert-dashboard/server/auth"
	"github.com/borderwatch/alert-dashboard/server/backend"
	"github.com/borderwatch/alert-dashboard/server/dashboard"
	"github.com/borderwatch/alert-dashboard/server/filter"
)

const (
	refreshTimeout = 2 * time.Minute
	xlsxType       = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// apiError is the body of every error response.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServeHTTP routes requests to the API.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) initRouter() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	// Open auth routes
	apiRouter.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/confirm", s.handleConfirm).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/logout", s.handleLogout).Methods(http.MethodPost)
	apiRouter.HandleFunc("/auth/forgot", s.handleForgotPassword).Methods(http.MethodPost)

	// Everything else requires a session
	protected := apiRouter.NewRoute().Subrouter()
	protected.Use(s.sessions.Middleware)

	protected.HandleFunc("/auth/session", s.handleGetSession).Methods(http.MethodGet)
	protected.HandleFunc("/auth/password", s.handleChangePassword).Methods(http.MethodPost)
	protected.HandleFunc("/backends", s.handleListBackends).Methods(http.MethodGet)
	protected.HandleFunc("/alerts", s.handleGetAlerts).Methods(http.MethodGet)
	protected.HandleFunc("/alerts/refresh", s.handleRefresh).Methods(http.MethodPost)
	protected.HandleFunc("/alerts/export", s.handleExport).Methods(http.MethodGet)
	protected.HandleFunc("/filter", s.handleGetFilter).Methods(http.MethodGet)
	protected.HandleFunc("/filter", s.handlePutFilter).Methods(http.MethodPut)
	protected.Handle("/ws", s.hub).Methods(http.MethodGet)

	return router
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, message string) {
	if status >= http.StatusInternalServerError {
		s.logger.Warnw("API error", "status", status, "code", code, "message", message)
	}
	writeJSON(w, status, map[string]apiError{"error": {Code: code, Message: message}})
}

// writeAuthError maps authentication failures to responses the UI can show.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNoSession):
		s.writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.writeError(w, http.StatusUnauthorized, "invalid_credentials", auth.ErrInvalidCredentials.Error())
	case errors.Is(err, auth.ErrUserExists):
		s.writeError(w, http.StatusConflict, "user_exists", auth.ErrUserExists.Error())
	case errors.Is(err, auth.ErrNotConfirmed):
		s.writeError(w, http.StatusForbidden, "not_confirmed", auth.ErrNotConfirmed.Error())
	case errors.Is(err, auth.ErrChallengeRequired):
		s.writeError(w, http.StatusForbidden, "challenge_required", auth.ErrChallengeRequired.Error())
	case errors.Is(err, auth.ErrInvalidCode):
		s.writeError(w, http.StatusBadRequest, "invalid_code", auth.ErrInvalidCode.Error())
	case errors.Is(err, auth.ErrInvalidPassword):
		s.writeError(w, http.StatusBadRequest, "invalid_password", auth.ErrInvalidPassword.Error())
	default:
		s.logger.Errorw("Authentication provider error", "error", err.Error())
		s.writeError(w, http.StatusBadGateway, "provider_error", "authentication provider unavailable")
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "backends": s.registry.Count()})
}

// Auth

type confirmRequest struct {
	Username string `json:"username"`
	Code     string `json:"code"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type forgotPasswordRequest struct {
	Username string `json:"username"`
}

type sessionResponse struct {
	Username  string    `json:"username"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req auth.Registration
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" || req.Email == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "username, password and email are required")
		return
	}

	confirmed, err := s.sessions.Register(r.Context(), req)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]bool{"confirmed": confirmed})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Code == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "username and code are required")
		return
	}
	if err := s.sessions.ConfirmRegistration(r.Context(), req.Username, req.Code); err != nil {
		s.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil || req.Username == "" || req.Password == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "username and password are required")
		return
	}

	session, err := s.sessions.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}

	cfg := s.getConfiguration()
	auth.SetCookie(w, session, cfg.SessionTTL(), cfg.CookieSecure)
	writeJSON(w, http.StatusOK, sessionResponse{Username: session.Username, ExpiresAt: session.Tokens.ExpiresAt})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id := auth.SessionID(r)
	auth.ClearCookie(w)
	if id == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.sessions.SignOut(r.Context(), id); err != nil && !errors.Is(err, auth.ErrNoSession) {
		// The local session is gone either way.
		s.logger.Warnw("Sign out incomplete", "error", err.Error())
	}
	if err := s.store.KVDelete(r.Context(), filterKey(id)); err != nil {
		s.logger.Warnw("Failed to delete filter state", "error", err.Error())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.FromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{Username: session.Username, ExpiresAt: session.Tokens.ExpiresAt})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.OldPassword == "" || req.NewPassword == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "oldPassword and newPassword are required")
		return
	}

	session, _ := auth.FromContext(r.Context())
	if err := s.sessions.ChangePassword(r.Context(), session.ID, req.OldPassword, req.NewPassword); err != nil {
		s.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.Username == "" {
		s.writeError(w, http.StatusBadRequest, "bad_request", "username is required")
		return
	}

	destination, err := s.sessions.ForgotPassword(r.Context(), req.Username)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"destination": destination})
}

// Backends and alerts

func (s *Server) handleListBackends(w http.ResponseWriter, _ *http.Request) {
	backends := s.registry.List()
	statuses := make([]backend.Status, 0, len(backends))
	for _, b := range backends {
		statuses = append(statuses, b.GetStatus())
	}
	writeJSON(w, http.StatusOK, map[string]any{"backends": statuses})
}

// resolveBackend picks the backend named by the backend query parameter, or the first one.
func (s *Server) resolveBackend(w http.ResponseWriter, r *http.Request) (backend.Backend, bool) {
	id := r.URL.Query().Get("backend")
	b, ok := s.registry.Resolve(id)
	if !ok {
		if id == "" {
			s.writeError(w, http.StatusNotFound, "not_found", "no backends configured")
		} else {
			s.writeError(w, http.StatusNotFound, "not_found", fmt.Sprintf("backend %s not found", id))
		}
		return nil, false
	}
	return b, true
}

// buildView renders the dashboard for the request. Explicit filter query parameters win
// over the session's stored filter.
func (s *Server) buildView(w http.ResponseWriter, r *http.Request) (dashboard.View, bool) {
	b, ok := s.resolveBackend(w, r)
	if !ok {
		return dashboard.View{}, false
	}

	spec, fromQuery, err := filter.ParseQuery(r.URL.Query(), s.location)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return dashboard.View{}, false
	}
	if !fromQuery {
		session, _ := auth.FromContext(r.Context())
		if spec, err = s.loadFilter(r.Context(), session.ID); err != nil {
			s.writeError(w, http.StatusInternalServerError, "internal", "failed to load filter")
			return dashboard.View{}, false
		}
	}

	view := dashboard.Build(b.GetID(), b.GetName(), b.Snapshot(), spec, s.now(), dashboard.Options{
		Map:      s.getConfiguration().Map,
		Location: s.location,
	})
	return view, true
}

func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	view, ok := s.buildView(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	b, ok := s.resolveBackend(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()

	if err := b.Refresh(ctx); err != nil {
		if errors.Is(err, backend.ErrStoreUnavailable) {
			s.writeError(w, http.StatusBadGateway, "store_unavailable", err.Error())
			return
		}
		s.writeError(w, http.StatusInternalServerError, "refresh_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, b.GetStatus())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	view, ok := s.buildView(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := dashboard.ExportXLSX(&buf, view); err != nil {
		s.writeError(w, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}

	filename := fmt.Sprintf("alerts-%s.xlsx", s.now().In(s.location).Format(filter.DateLayout))
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// Filter state

type filterResponse struct {
	Filter  filter.Spec    `json:"filter"`
	Label   string         `json:"label"`
	Presets []presetOption `json:"presets"`
}

type presetOption struct {
	Value filter.Preset `json:"value"`
	Label string        `json:"label"`
}

func newFilterResponse(spec filter.Spec) filterResponse {
	options := make([]presetOption, 0, len(filter.Presets))
	for _, p := range filter.Presets {
		options = append(options, presetOption{Value: p, Label: p.Label()})
	}
	return filterResponse{Filter: spec, Label: spec.Label(), Presets: options}
}

func filterKey(sessionID string) string {
	return "filter_" + sessionID
}

// loadFilter returns the session's stored filter, or the default one.
func (s *Server) loadFilter(ctx context.Context, sessionID string) (filter.Spec, error) {
	data, err := s.store.KVGet(ctx, filterKey(sessionID))
	if err != nil {
		return filter.Spec{}, errors.Wrap(err, "failed to load filter")
	}
	if data == nil {
		return filter.Default(), nil
	}

	var spec filter.Spec
	if err := json.Unmarshal(data, &spec); err != nil {
		s.logger.Warnw("Discarding unreadable filter state", "sessionId", sessionID, "error", err.Error())
		return filter.Default(), nil
	}
	return spec, nil
}

func (s *Server) saveFilter(ctx context.Context, sessionID string, spec filter.Spec) error {
	data, err := json.Marshal(spec)
	if err != nil {
		return errors.Wrap(err, "failed to marshal filter")
	}
	ttl := s.getConfiguration().SessionTTL()
	return errors.Wrap(s.store.KVSetWithExpiry(ctx, filterKey(sessionID), data, ttl), "failed to save filter")
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	session, _ := auth.FromContext(r.Context())
	spec, err := s.loadFilter(r.Context(), session.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", "failed to load filter")
		return
	}
	writeJSON(w, http.StatusOK, newFilterResponse(spec))
}

func (s *Server) handlePutFilter(w http.ResponseWriter, r *http.Request) {
	var update filter.Update
	if err := decodeJSON(r, &update); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return
	}

	session, _ := auth.FromContext(r.Context())
	spec, err := s.loadFilter(r.Context(), session.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", "failed to load filter")
		return
	}

	spec, err = update.Apply(spec, s.location)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid_filter", err.Error())
		return
	}

	if err := s.saveFilter(r.Context(), session.ID, spec); err != nil {
		s.writeError(w, http.StatusInternalServerError, "internal", "failed to save filter")
		return
	}
	writeJSON(w, http.StatusOK, newFilterResponse(spec))
}
