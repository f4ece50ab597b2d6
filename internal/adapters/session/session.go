// Package session is the identity provider: it issues a signed session cookie
// at login and resolves it into a domain.Identity on every request.
package session

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"staysense/internal/domain"
)

const (
	CookieName   = "staysense_session"
	ReturnCookie = "staysense_return_to"
	issuer       = "staysense"
)

type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// Manager signs session tokens with HS256. Revoked session ids are kept in
// the optional cache until the token would have expired anyway.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	secure  bool
	revoked domain.Cache
	now     func() time.Time
}

func NewManager(secret string, ttl time.Duration, secure bool, revoked domain.Cache) *Manager {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("session: generate secret: %v", err))
		}
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: key, ttl: ttl, secure: secure, revoked: revoked, now: time.Now}
}

// Issue signs a session for u and sets it as an HttpOnly cookie.
func (m *Manager) Issue(w http.ResponseWriter, u domain.User) (domain.Identity, error) {
	now := m.now().UTC()
	id := domain.Identity{UserID: u.ID, Username: u.Username, SessionID: uuid.NewString()}
	claims := &Claims{
		Username: u.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.SessionID,
			Subject:   strconv.FormatInt(u.ID, 10),
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("sign session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    signed,
		Path:     "/",
		Expires:  now.Add(m.ttl),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id, nil
}

// Resolve returns the identity carried by r, or domain.ErrUnauthorized.
func (m *Manager) Resolve(r *http.Request) (*domain.Identity, error) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return nil, domain.ErrUnauthorized
	}
	claims, err := m.parse(c.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	uid, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || uid <= 0 {
		return nil, fmt.Errorf("%w: bad subject", domain.ErrUnauthorized)
	}
	if m.revoked != nil && claims.ID != "" {
		var gone bool
		ok, err := m.revoked.Get(r.Context(), revokedKey(claims.ID), &gone)
		if err != nil {
			log.Warn().Err(err).Msg("session revocation lookup failed")
		} else if ok {
			return nil, fmt.Errorf("%w: session revoked", domain.ErrUnauthorized)
		}
	}
	return &domain.Identity{UserID: uid, Username: claims.Username, SessionID: claims.ID}, nil
}

func (m *Manager) parse(token string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid session claims")
	}
	return claims, nil
}

// Clear expires the cookie and revokes the session id server-side.
func (m *Manager) Clear(ctx context.Context, w http.ResponseWriter, id *domain.Identity) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	m.Revoke(ctx, id)
}

// Revoke refuses id's session from now on without touching the cookie.
func (m *Manager) Revoke(ctx context.Context, id *domain.Identity) {
	if id == nil || id.SessionID == "" || m.revoked == nil {
		return
	}
	if err := m.revoked.Set(ctx, revokedKey(id.SessionID), true, int(m.ttl.Seconds())); err != nil {
		log.Warn().Err(err).Str("session", id.SessionID).Msg("session revoke failed")
	}
}

// Middleware attaches the resolved identity, if any, to the request context.
// It never rejects a request; routes that need a user use RequireUser.
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := m.Resolve(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// RequireUser redirects anonymous requests to /login, remembering where they were going.
func (m *Manager) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFrom(r.Context()) == nil {
			if r.Method == http.MethodGet {
				m.RememberReturnTo(w, r.URL.RequestURI())
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Manager) RememberReturnTo(w http.ResponseWriter, path string) {
	if !safeLocalPath(path) {
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ReturnCookie,
		Value:    path,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// PopReturnTo returns the remembered path (or def) and clears it.
func (m *Manager) PopReturnTo(w http.ResponseWriter, r *http.Request, def string) string {
	c, err := r.Cookie(ReturnCookie)
	if err != nil {
		return def
	}
	http.SetCookie(w, &http.Cookie{Name: ReturnCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
	if !safeLocalPath(c.Value) {
		return def
	}
	return c.Value
}

func safeLocalPath(p string) bool {
	return strings.HasPrefix(p, "/") && !strings.HasPrefix(p, "//") && !strings.Contains(p, "\\")
}

func revokedKey(sessionID string) string { return "session:revoked:" + sessionID }

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *domain.Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom returns the request's actor, or nil for anonymous requests.
func IdentityFrom(ctx context.Context) *domain.Identity {
	id, _ := ctx.Value(ctxKey{}).(*domain.Identity)
	return id
}
