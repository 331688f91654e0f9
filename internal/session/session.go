// Package session issues and checks the JWT session cookie of the reference
// backend.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	CookieName = "jwt"
	userIDKey  = "userId"
)

var (
	ErrNoToken      = errors.New("session: token not found")
	ErrInvalidToken = errors.New("session: invalid or expired token")
)

type contextKey string

const userIDContextKey = contextKey("userID")

type Manager struct {
	secret []byte
	ttl    time.Duration
	log    *slog.Logger
}

func New(secret string, ttl time.Duration, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{secret: []byte(secret), ttl: ttl, log: log}
}

// Token signs a session token for userID.
func (m *Manager) Token(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		userIDKey: userID,
		"exp":     time.Now().Add(m.ttl).Unix(),
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}
	return signed, nil
}

// Parse validates a token and returns the user id it carries.
func (m *Manager) Parse(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrNoToken
	}
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	userID, ok := claims[userIDKey].(string)
	if !ok || userID == "" {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// Issue creates a new user and sets its session cookie on w.
func (m *Manager) Issue(w http.ResponseWriter) (string, *http.Cookie, error) {
	userID := uuid.NewString()
	token, err := m.Token(userID)
	if err != nil {
		return "", nil, err
	}

	c := &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Expires:  time.Now().Add(m.ttl),
		HttpOnly: true,
		Path:     "/",
	}
	http.SetCookie(w, c)
	m.log.Info("Session issued", "user", userID)
	return userID, c, nil
}

// Ensure returns the user of a valid request cookie, issuing a new session
// when the cookie is missing or invalid. The cookie is nil when the existing
// one was reused.
func (m *Manager) Ensure(w http.ResponseWriter, r *http.Request) (string, *http.Cookie, error) {
	if cookie, err := r.Cookie(CookieName); err == nil {
		if userID, err := m.Parse(cookie.Value); err == nil {
			return userID, nil, nil
		}
	}
	return m.Issue(w)
}

// Require rejects requests without a valid session cookie and stores the
// user id in the request context.
func (m *Manager) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(CookieName)
		if err != nil {
			m.log.Warn("Session check failed", "error", ErrNoToken)
			http.Error(w, "Token not found", http.StatusUnauthorized)
			return
		}
		userID, err := m.Parse(cookie.Value)
		if err != nil {
			m.log.Warn("Session check failed", "error", err)
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
	})
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDContextKey, userID)
}

func UserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userIDContextKey).(string)
	return userID, ok && userID != ""
}
