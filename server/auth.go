package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/GoCodeAlone/planner/auth"
)

// signInRequest is the body accepted by POST /api/auth/signin.
type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// signUpRequest is the body accepted by POST /api/auth/signup.
type signUpRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

// sessionResponse is the body returned by a successful sign-in or sign-up.
type sessionResponse struct {
	Token string        `json:"token"`
	User  auth.Identity `json:"user"`
}

// writeAuthError maps provider errors to HTTP statuses.
func (s *Server) writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingFields), errors.Is(err, auth.ErrPasswordMismatch),
		errors.Is(err, auth.ErrAccountCreation):
		writeJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeJSONError(w, http.StatusUnauthorized, err.Error())
	default:
		s.logger.Error("auth request failed", slog.Any("err", err))
		writeJSONError(w, http.StatusInternalServerError, "could not establish session")
	}
}

// handleSignIn validates credentials and returns the session token.
func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, token, err := s.sessions.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: sess.Identity})
}

// handleSignUp creates an account, signs it in and returns the session token.
func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	sess, token, err := s.sessions.SignUp(r.Context(), req.Email, req.Password, req.Confirm)
	if err != nil {
		s.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: sess.Identity})
}

// handleSession reports the session state without requiring a token.
func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	cur := s.sessions.Current()
	writeJSON(w, http.StatusOK, map[string]string{
		"state": string(cur.State),
		"email": cur.Identity.Email,
	})
}

// handleSignOut ends the session.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.SignOut(r.Context()); err != nil {
		s.writeAuthError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleMe returns the currently authenticated identity.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := identityFrom(r.Context())
	writeJSON(w, http.StatusOK, id)
}

// authMiddleware requires a bearer token belonging to the active session.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			writeJSONError(w, http.StatusUnauthorized, "missing or invalid Authorization header")
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		id, err := s.sessions.Authorize(token)
		if err != nil {
			writeJSONError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(contextWithIdentity(r.Context(), id)))
	})
}
