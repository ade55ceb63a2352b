package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/conecta-labs/conecta-core/internal/core/domain"
	"github.com/conecta-labs/conecta-core/internal/core/ports/driving"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"invalid request body"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Returns the readiness status of the API (checks database and Redis connections)
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Failure      503  {object}  ErrorResponse  "A backing service is unreachable"
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	if s.redisClient != nil {
		if err := s.redisClient.Ping(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "redis unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

// Auth endpoints

// handleLogin godoc
// @Summary      User login
// @Description  Authenticate with email and password to receive a JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.LoginRequest  true  "Login credentials"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid credentials or account disabled"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /auth/login [post]
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.Authenticate(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidCredentials):
			writeError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, domain.ErrUnauthorized):
			writeError(w, http.StatusUnauthorized, "account disabled")
		default:
			writeError(w, http.StatusInternalServerError, "authentication failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRefresh godoc
// @Summary      Refresh token
// @Description  Exchange a refresh token for a new JWT token
// @Tags         Authentication
// @Accept       json
// @Produce      json
// @Param        request  body      domain.RefreshRequest  true  "Refresh token"
// @Success      200      {object}  domain.LoginResponse
// @Failure      400      {object}  ErrorResponse  "Invalid request body"
// @Failure      401      {object}  ErrorResponse  "Invalid refresh token"
// @Router       /auth/refresh [post]
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req domain.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.authService.RefreshToken(r.Context(), req)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleLogout godoc
// @Summary      Logout user
// @Description  Invalidate the current session token
// @Tags         Authentication
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  StatusResponse
// @Router       /auth/logout [post]
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	_ = s.authService.Logout(r.Context(), token)
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Setup endpoint (no auth required, one-time use)

// handleSetup godoc
// @Summary      Initial setup
// @Description  Create the initial admin user. This endpoint can only be called once when no users exist.
// @Tags         Setup
// @Accept       json
// @Produce      json
// @Param        request  body      driving.SetupRequest  true  "Admin user details"
// @Success      201      {object}  driving.SetupResponse
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      403      {object}  ErrorResponse  "Setup already complete"
// @Failure      500      {object}  ErrorResponse  "Setup failed"
// @Router       /setup [post]
func (s *Server) handleSetup(w http.ResponseWriter, r *http.Request) {
	var req driving.SetupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	resp, err := s.userService.Setup(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "email, password, and name are required")
		case errors.Is(err, domain.ErrForbidden):
			writeError(w, http.StatusForbidden, "setup already complete")
		default:
			writeError(w, http.StatusInternalServerError, "setup failed")
		}
		return
	}

	writeJSON(w, http.StatusCreated, resp)
}

// User endpoints

// handleGetMe godoc
// @Summary      Get current user
// @Description  Get the currently authenticated user's profile
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.UserSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "User not found"
// @Router       /me [get]
func (s *Server) handleGetMe(w http.ResponseWriter, r *http.Request) {
	authCtx := OperatorFrom(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := s.userService.Get(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}

	writeJSON(w, http.StatusOK, user.ToSummary())
}

// handleListUsers godoc
// @Summary      List all users
// @Description  Get a list of all users (admin only)
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.UserSummary
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /users [get]
func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.userService.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}

	summaries := make([]*domain.UserSummary, len(users))
	for i, u := range users {
		summaries[i] = u.ToSummary()
	}

	writeJSON(w, http.StatusOK, summaries)
}

// handleCreateUser godoc
// @Summary      Create user
// @Description  Create a new user (admin only). New accounts start inactive.
// @Tags         Users
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.CreateUserRequest  true  "User details"
// @Success      201      {object}  domain.UserSummary
// @Failure      400      {object}  ErrorResponse  "Invalid input"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      403      {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      409      {object}  ErrorResponse  "User already exists"
// @Failure      500      {object}  ErrorResponse  "Internal server error"
// @Router       /users [post]
func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req driving.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.userService.Create(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "user already exists")
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "invalid input")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create user")
		}
		return
	}

	writeJSON(w, http.StatusCreated, user.ToSummary())
}

// handleDeleteUser godoc
// @Summary      Delete user
// @Description  Delete a user by ID (admin only)
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse  "Missing user ID"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      404  {object}  ErrorResponse  "User not found"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /users/{id} [delete]
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	if err := s.userService.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete user")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleActivateUser godoc
// @Summary      Activate user
// @Description  Allow a user to log in (admin only)
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse  "Missing user ID"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      404  {object}  ErrorResponse  "User not found"
// @Router       /users/{id}/activate [post]
func (s *Server) handleActivateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	if err := s.userService.Activate(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to activate user")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "active"})
}

// handleDeactivateUser godoc
// @Summary      Deactivate user
// @Description  Block a user from logging in and invalidate their sessions (admin only)
// @Tags         Users
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "User ID"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse  "Missing user ID"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      404  {object}  ErrorResponse  "User not found"
// @Router       /users/{id}/deactivate [post]
func (s *Server) handleDeactivateUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing user id")
		return
	}

	if err := s.userService.Deactivate(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "user not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to deactivate user")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "inactive"})
}

// Connection endpoints

// handleListConnections godoc
// @Summary      List connections
// @Description  Get the authenticated user's connections, newest first
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Connection
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /connections [get]
func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	authCtx := OperatorFrom(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	connections, err := s.connectionService.List(r.Context(), authCtx.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list connections")
		return
	}

	if connections == nil {
		connections = []*domain.Connection{}
	}
	writeJSON(w, http.StatusOK, connections)
}

// handleListAllConnections godoc
// @Summary      List all connections
// @Description  Get every connection across all users (admin only)
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Connection
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      403  {object}  ErrorResponse  "Forbidden - admin only"
// @Failure      500  {object}  ErrorResponse  "Internal server error"
// @Router       /admin/connections [get]
func (s *Server) handleListAllConnections(w http.ResponseWriter, r *http.Request) {
	connections, err := s.connectionService.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list connections")
		return
	}

	if connections == nil {
		connections = []*domain.Connection{}
	}
	writeJSON(w, http.StatusOK, connections)
}

// handleCreateConnection godoc
// @Summary      Create connection
// @Description  Register a new WhatsApp connection. The response carries the QR code to scan; the scan window lasts 60 seconds.
// @Tags         Connections
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      driving.CreateConnectionRequest  true  "Connection name"
// @Success      201      {object}  domain.Connection
// @Failure      400      {object}  ErrorResponse  "Invalid connection name"
// @Failure      401      {object}  ErrorResponse  "Unauthorized"
// @Failure      409      {object}  ErrorResponse  "Name already in use"
// @Failure      502      {object}  ErrorResponse  "Provider unavailable"
// @Router       /connections [post]
func (s *Server) handleCreateConnection(w http.ResponseWriter, r *http.Request) {
	authCtx := OperatorFrom(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req driving.CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conn, err := s.connectionService.Create(r.Context(), authCtx.UserID, req)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr):
			writeError(w, http.StatusBadRequest, verr.Error())
		case errors.Is(err, domain.ErrAlreadyExists):
			writeError(w, http.StatusConflict, "connection name already in use")
		case errors.Is(err, domain.ErrProviderUnavailable):
			writeError(w, http.StatusBadGateway, "provider unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "failed to create connection")
		}
		return
	}

	writeJSON(w, http.StatusCreated, conn)
}

// handleGetConnection godoc
// @Summary      Get connection
// @Description  Get a connection by ID
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Connection ID"
// @Success      200  {object}  domain.Connection
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Connection not found"
// @Router       /connections/{id} [get]
func (s *Server) handleGetConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.loadOwnedConnection(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, conn)
}

// handleRefreshQR godoc
// @Summary      Refresh QR code
// @Description  Fetch a fresh QR code for an existing connection and restart the scan window
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Connection ID"
// @Success      200  {object}  domain.QRCode
// @Failure      400  {object}  ErrorResponse  "Connection already linked"
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Connection not found"
// @Failure      502  {object}  ErrorResponse  "Provider unavailable"
// @Router       /connections/{id}/qr [post]
func (s *Server) handleRefreshQR(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.loadOwnedConnection(w, r)
	if !ok {
		return
	}

	qr, err := s.connectionService.RequestQR(r.Context(), conn.ID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, "connection is already linked")
		case errors.Is(err, domain.ErrProviderUnavailable):
			writeError(w, http.StatusBadGateway, "provider unavailable")
		default:
			writeError(w, http.StatusInternalServerError, "failed to refresh QR code")
		}
		return
	}

	writeJSON(w, http.StatusOK, qr)
}

// handleConfirmLinked godoc
// @Summary      Confirm link
// @Description  Check whether the device has finished linking. The transition to connected is persisted the first time the full profile appears; safe to poll.
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Connection ID"
// @Success      200  {object}  domain.Connection
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Connection not found"
// @Router       /connections/{id}/linked [get]
func (s *Server) handleConfirmLinked(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.loadOwnedConnection(w, r)
	if !ok {
		return
	}

	updated, err := s.connectionService.ConfirmLinked(r.Context(), conn.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to confirm link")
		return
	}

	writeJSON(w, http.StatusOK, updated)
}

// handleCancelScan godoc
// @Summary      Cancel scan
// @Description  Abandon an in-progress QR scan; the connection returns to disconnected
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Connection ID"
// @Success      200  {object}  StatusResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Connection not found"
// @Router       /connections/{id}/cancel-scan [post]
func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.loadOwnedConnection(w, r)
	if !ok {
		return
	}

	if err := s.connectionService.CancelScan(r.Context(), conn.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to cancel scan")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// handleDisconnect godoc
// @Summary      Disconnect connection
// @Description  Unlink the device. The local state change succeeds even when the provider is unreachable.
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Connection ID"
// @Success      200  {object}  StatusResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Connection not found"
// @Router       /connections/{id}/disconnect [post]
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.loadOwnedConnection(w, r)
	if !ok {
		return
	}

	if err := s.connectionService.Disconnect(r.Context(), conn.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to disconnect")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// handleDeleteConnection godoc
// @Summary      Delete connection
// @Description  Remove the connection locally and best-effort on the provider
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Connection ID"
// @Success      200  {object}  StatusResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Failure      404  {object}  ErrorResponse  "Connection not found"
// @Router       /connections/{id} [delete]
func (s *Server) handleDeleteConnection(w http.ResponseWriter, r *http.Request) {
	conn, ok := s.loadOwnedConnection(w, r)
	if !ok {
		return
	}

	if err := s.connectionService.Delete(r.Context(), conn.ID); err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeError(w, http.StatusNotFound, "connection not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to delete connection")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Status check endpoints

// CheckStatusResponse reports on the background status checker
// @Description Background status checker state
type CheckStatusResponse struct {
	LastRun *string `json:"last_run,omitempty" example:"2025-01-15T10:30:00Z"`
}

// handleCheckConnections godoc
// @Summary      Check connections now
// @Description  Run a status reconciliation pass immediately. With force=true every connection is probed, not just the active ones.
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Param        force  query     bool  false  "Probe all connections"
// @Success      200    {object}  driving.ReconcileReport
// @Failure      401    {object}  ErrorResponse  "Unauthorized"
// @Failure      409    {object}  ErrorResponse  "A check is already running"
// @Router       /connections/check [post]
func (s *Server) handleCheckConnections(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	report, err := s.reconciler.CheckNow(r.Context(), force)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrCheckInProgress):
			writeError(w, http.StatusConflict, "a status check is already running")
		default:
			writeError(w, http.StatusInternalServerError, "status check failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// handleCheckStatus godoc
// @Summary      Get checker status
// @Description  Report when the background status checker last ran
// @Tags         Connections
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  CheckStatusResponse
// @Failure      401  {object}  ErrorResponse  "Unauthorized"
// @Router       /connections/check [get]
func (s *Server) handleCheckStatus(w http.ResponseWriter, r *http.Request) {
	resp := CheckStatusResponse{}
	if last := s.reconciler.LastRun(); !last.IsZero() {
		formatted := last.UTC().Format("2006-01-02T15:04:05Z07:00")
		resp.LastRun = &formatted
	}

	writeJSON(w, http.StatusOK, resp)
}

// Helper functions

// loadOwnedConnection resolves the {id} path parameter and enforces ownership.
// Admins may act on any connection; everyone else only on their own. A missing
// connection and a foreign one are indistinguishable to the caller.
func (s *Server) loadOwnedConnection(w http.ResponseWriter, r *http.Request) (*domain.Connection, bool) {
	authCtx := OperatorFrom(r.Context())
	if authCtx == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing connection id")
		return nil, false
	}

	conn, err := s.connectionService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "connection not found")
		} else {
			writeError(w, http.StatusInternalServerError, "failed to get connection")
		}
		return nil, false
	}

	if conn.OwnerID != authCtx.UserID && !authCtx.IsAdmin() {
		writeError(w, http.StatusNotFound, "connection not found")
		return nil, false
	}

	return conn, true
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
