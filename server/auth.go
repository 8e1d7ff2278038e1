package server

import (
	"net/http"
	"strings"

	"github.com/GoCodeAlone/taskboard/auth"
	"github.com/GoCodeAlone/taskboard/entity"
	"github.com/GoCodeAlone/taskboard/server/api"
)

// handleSignup registers a user.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req auth.SignupRequest
	if err := api.DecodeBody(r, &req); err != nil {
		api.WriteFault(w, s.logger, err)
		return
	}
	if _, err := s.auth.Signup(r.Context(), req); err != nil {
		api.WriteFault(w, s.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully."})
}

// handleLogin validates credentials and issues a JWT.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := api.DecodeBody(r, &req); err != nil {
		api.WriteFault(w, s.logger, err)
		return
	}
	token, err := s.auth.Login(r.Context(), req)
	if err != nil {
		api.WriteFault(w, s.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]string{"message": "Login successfully", "token": token})
}

// handleMe returns the currently authenticated user.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	u, err := s.auth.Me(r.Context(), id)
	if err != nil {
		api.WriteFault(w, s.logger, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"user": u})
}

// bearerToken extracts the credential from the Authorization header. Both
// "Bearer <token>" and a bare token are accepted.
func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return h
}

// authMiddleware enforces JWT authentication on wrapped handlers.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			api.WriteFault(w, s.logger, entity.ErrUnauthorized)
			return
		}
		id, err := s.issuer.Verify(token)
		if err != nil {
			s.logger.Debug("rejected credential", "err", err)
			api.WriteFault(w, s.logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithIdentity(r.Context(), id)))
	})
}
