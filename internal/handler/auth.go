package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	appI18n "github.com/pavelanni/gcsemock/internal/i18n"
	"github.com/pavelanni/gcsemock/internal/model"
)

const (
	sessionCookieName = "session"
	tokenIssuer       = "gcsemock"
)

var errInvalidToken = errors.New("invalid token")

// issueToken signs a bearer token bound to an auth session.
func (h *Handler) issueToken(u *model.User, sess *model.AuthSession) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    tokenIssuer,
		Subject:   strconv.FormatInt(u.ID, 10),
		ID:        sess.ID,
		IssuedAt:  jwt.NewNumericDate(sess.CreatedAt),
		ExpiresAt: jwt.NewNumericDate(sess.ExpiresAt),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(h.config.JWTSecret))
}

// authenticate resolves the token of a request to its user and auth session.
// A token whose session was revoked is rejected even if its signature holds.
func (h *Handler) authenticate(ctx context.Context, raw string) (*model.User, string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(h.config.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", errInvalidToken, err)
	}

	sess, err := h.store.GetAuthSession(ctx, claims.ID)
	if err != nil {
		return nil, "", err
	}
	if sess == nil || strconv.FormatInt(sess.UserID, 10) != claims.Subject {
		return nil, "", fmt.Errorf("%w: session revoked", errInvalidToken)
	}

	user, err := h.store.GetUserByID(ctx, sess.UserID)
	if err != nil {
		return nil, "", err
	}
	if user == nil || !user.Active {
		return nil, "", fmt.Errorf("%w: user inactive", errInvalidToken)
	}
	return user, sess.ID, nil
}

// tokenFromRequest reads a bearer token, falling back to the session cookie.
func tokenFromRequest(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); authz != "" {
		const bearer = "bearer "
		if len(authz) > len(bearer) && strings.EqualFold(authz[:len(bearer)], bearer) {
			return strings.TrimSpace(authz[len(bearer):])
		}
		return ""
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// requireAuth rejects requests without a valid token.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := tokenFromRequest(r)
		if raw == "" {
			h.writeError(w, r, errLoginRequired)
			return
		}
		user, sessID, err := h.authenticate(r.Context(), raw)
		if err != nil {
			if !errors.Is(err, errInvalidToken) {
				h.writeError(w, r, err)
				return
			}
			h.logger.Debug("rejected token", "error", err)
			h.writeError(w, r, errLoginRequired)
			return
		}
		ctx := model.ContextWithUser(r.Context(), user)
		ctx = model.ContextWithAuthSessionID(ctx, sessID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuth attaches the user when a valid token is present and otherwise
// lets the request through anonymously.
func (h *Handler) optionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if raw := tokenFromRequest(r); raw != "" {
			if user, sessID, err := h.authenticate(r.Context(), raw); err == nil {
				ctx := model.ContextWithUser(r.Context(), user)
				r = r.WithContext(model.ContextWithAuthSessionID(ctx, sessID))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requireRole returns middleware that checks the user has one of the allowed roles.
func requireRole(allowed ...model.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := model.UserFromContext(r.Context())
			if user == nil {
				writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Code: "unauthorized", Message: appI18n.T(r.Context(), "ErrLoginRequired")}})
				return
			}
			for _, role := range allowed {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeJSON(w, http.StatusForbidden, errorBody{Error: errorDetail{Code: "forbidden", Message: appI18n.T(r.Context(), "ErrForbidden")}})
		})
	}
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      *model.User `json:"user"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := h.decode(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	user, err := h.store.GetUserByUsername(r.Context(), req.Username)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if user == nil || !user.Active {
		h.writeError(w, r, errInvalidCredentials)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		h.writeError(w, r, errInvalidCredentials)
		return
	}

	sess, err := h.store.CreateAuthSession(r.Context(), user.ID, h.config.TokenTTL)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("create auth session: %w", err))
		return
	}
	token, err := h.issueToken(user, sess)
	if err != nil {
		h.writeError(w, r, fmt.Errorf("sign token: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  sess.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   h.config.SecureCookies,
	})
	h.logger.Info("user logged in", "user_id", user.ID, "role", user.Role)
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: sess.ExpiresAt, User: user})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if id := model.AuthSessionIDFromContext(r.Context()); id != "" {
		if err := h.store.DeleteAuthSession(r.Context(), id); err != nil {
			h.writeError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.UserFromContext(r.Context()))
}
