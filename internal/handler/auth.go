package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
	"github.com/waterette/waterette/internal/auth"
	"github.com/waterette/waterette/internal/model"
	"github.com/waterette/waterette/internal/service"
)

// AuthHandler manages login, registration, and session endpoints.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create an email/password account, issue JWT
//   - HandleLogin          → verify credentials, issue JWT
//   - HandleGoogle         → verify a client-supplied Google ID token, issue JWT
//   - HandleGoogleLogin    → redirect the browser to Google's authorization page
//   - HandleGoogleCallback → receive the code, exchange it for a user, issue JWT
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → return the current user plus their joined events
// GoogleVerifier is the part of auth.GoogleProvider the handler needs.
// Taking the interface instead of the concrete provider keeps the Google
// network calls swappable in tests.
type GoogleVerifier interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GoogleUser, error)
	VerifyIDToken(ctx context.Context, idToken string) (*auth.GoogleUser, error)
}

type AuthHandler struct {
	auths       *service.AuthService
	google      GoogleVerifier
	frontendURL string
	logger      *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected here;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	auths *service.AuthService,
	google GoogleVerifier,
	frontendURL string,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auths:       auths,
		google:      google,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

// authResponse is the success payload for register/login endpoints. The
// token also goes into an HttpOnly cookie; it's echoed in the body for
// clients that prefer the Authorization header.
type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token"`
}

// googleAuthResponse is the payload for the widget sign-in endpoint, which
// the web client checks via the explicit success flag.
type googleAuthResponse struct {
	Success bool        `json:"success"`
	User    *model.User `json:"user"`
	Token   string      `json:"token"`
}

// HandleRegister creates a new email/password account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"name": "...", "email": "...", "password": "..."}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req model.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.auths.Register(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusCreated, authResponse{User: result.User, Token: result.Token})
}

// HandleLogin authenticates an email/password account.
//
// HTTP: POST /auth/login
// REQUEST BODY: {"email": "...", "password": "..."}
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"bad_request","message":"invalid JSON body"}`, http.StatusBadRequest)
		return
	}

	result, err := h.auths.Login(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, authResponse{User: result.User, Token: result.Token})
}

// HandleGoogle signs in with a Google ID token minted by a client-side
// sign-in widget.
//
// HTTP: POST /auth/google
// REQUEST BODY: {"token": "..."} — the Google ID token
// RESPONSE: {"success": true, "token": "...", "user": {...}}
//
// The token is verified against Google (signature, expiry, audience)
// before we trust anything it claims.
func (h *AuthHandler) HandleGoogle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" {
		http.Error(w, `{"error":"bad_request","message":"token is required"}`, http.StatusBadRequest)
		return
	}

	gUser, err := h.google.VerifyIDToken(r.Context(), req.Token)
	if err != nil {
		h.logger.Warn("google ID token rejected", slog.String("error", err.Error()))
		http.Error(w, `{"error":"unauthorized","message":"invalid Google token"}`, http.StatusUnauthorized)
		return
	}

	result, err := h.auths.LoginWithGoogle(r.Context(), gUser)
	if err != nil {
		writeError(w, err)
		return
	}

	h.setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, googleAuthResponse{Success: true, User: result.User, Token: result.Token})
}

// HandleGoogleLogin redirects the user to Google's authorization page.
//
// HTTP: GET /auth/google/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When Google calls back, HandleGoogleCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
//
// The state cookie is:
//   - HttpOnly: JavaScript can't read it
//   - SameSite=Lax: not sent on cross-site POSTs (extra CSRF protection)
//   - 10-minute expiry: long enough for the user to approve, short enough to limit risk
func (h *AuthHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()

	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.google.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGoogleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/google/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a Google user profile
//  3. Upsert the user and issue a JWT cookie
//  4. Redirect to the frontend
func (h *AuthHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" {
		h.logger.Warn("auth callback: missing state cookie")
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	if r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch",
			slog.String("expected", stateCookie.Value),
			slog.String("got", r.URL.Query().Get("state")),
		)
		http.Error(w, "invalid OAuth state", http.StatusBadRequest)
		return
	}

	// Clear the state cookie — it's single-use
	http.SetCookie(w, &http.Cookie{
		Name:   "oauth_state",
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})

	// Check if Google sent an error (user denied authorization)
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization",
			slog.String("error", errParam),
		)
		http.Redirect(w, r, h.frontendURL+"?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		http.Error(w, "missing OAuth code", http.StatusBadRequest)
		return
	}

	gUser, err := h.google.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: Google exchange failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	result, err := h.auths.LoginWithGoogle(r.Context(), gUser)
	if err != nil {
		h.logger.Error("auth callback: sign-in failed", slog.String("error", err.Error()))
		http.Error(w, "authentication failed", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, result.Token)
	http.Redirect(w, r, h.frontendURL, http.StatusSeeOther)
}

// HandleLogout clears the JWT cookie, effectively logging the user out.
//
// HTTP: POST /auth/logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. Using GET would be vulnerable to
// CSRF and to browsers pre-fetching the URL. POST ensures intentional action.
//
// Since we're stateless (JWT), "logout" just means deleting the client-side
// cookie. The token remains technically valid until it expires, but without
// the cookie (or stored header token) the client can't send it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1, // tells the browser to delete the cookie immediately
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the current user's profile and joined event IDs.
//
// HTTP: GET /auth/me
// Auth: Required (RequireAuth middleware sets userID in context)
//
// The frontend calls this on load to restore the session: who is signed
// in, and which events should render as "joined".
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	// Auth middleware has already validated the JWT and set userID in context.
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Should never happen on a RequireAuth-protected route, but be safe.
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	session, err := h.auths.Me(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe failed", slog.String("userID", userID), slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, session)
}

// setSessionCookie stores the JWT in an HttpOnly cookie.
//
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = cookie is sent on top-level navigations but not cross-site POSTs.
// Secure should be true in production (HTTPS only). We leave it false for local dev.
func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionLifetime.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		// Secure: true, // Uncomment in production (requires HTTPS)
	})
}
