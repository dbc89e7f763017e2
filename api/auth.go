/*
auth.go - Credential login and session identity

PURPOSE:
  A credentials-based session provider: users sign in with email/password,
  receive a signed token, and subsequent requests carry it as a Bearer
  header. Handlers that need an acting user (performedBy, approvedBy,
  stoppedBy defaults) pull the identity off the request context.

TOKENS:
  HS256 JWTs with sub/email/name/role claims. The middleware is permissive:
  an absent or invalid token leaves the request anonymous rather than
  rejecting it, and the audit defaults fall back to "System". Handlers do
  not gate on session.

SEEDING:
  EnsureSeedUsers creates the two bootstrap accounts (admin@crm.com /
  user@crm.com, password "password123") when the users table is empty.

SEE ALSO:
  - crm/types.go: User entity
  - cmd/server/main.go: wiring
*/
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/crm-engine/crm"
	"github.com/warp/crm-engine/store/gormdb"
)

// Identity is the authenticated principal attached to a request.
type Identity struct {
	ID    string   `json:"id"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Role  crm.Role `json:"role"`
}

type ctxKey int

const identityKey ctxKey = 1

// Auth issues and verifies session tokens.
type Auth struct {
	Store  *gormdb.Store
	Secret []byte
	TTL    time.Duration
	Log    *zap.Logger
}

func NewAuth(store *gormdb.Store, secret string, ttl time.Duration, log *zap.Logger) *Auth {
	if log == nil {
		log = zap.NewNop()
	}
	return &Auth{Store: store, Secret: []byte(secret), TTL: ttl, Log: log}
}

// =============================================================================
// HANDLERS
// =============================================================================

// Login verifies credentials and returns a session token plus the user.
func (a *Auth) Login(h *Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LoginRequest
		if !h.decodeValid(w, r, &req) {
			return
		}

		u, err := a.Store.UserByEmail(r.Context(), req.Email)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to look up user", err)
			return
		}
		if u == nil || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)) != nil {
			writeError(w, http.StatusUnauthorized, "Invalid email or password", nil)
			return
		}

		now := time.Now()
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub":   u.ID,
			"email": u.Email,
			"name":  u.Name,
			"role":  string(u.Role),
			"iat":   now.Unix(),
			"exp":   now.Add(a.TTL).Unix(),
		})
		signed, err := token.SignedString(a.Secret)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to sign token", err)
			return
		}

		a.Log.Info("user logged in", zap.String("email", u.Email))
		writeJSON(w, http.StatusOK, map[string]any{
			"token": signed,
			"user":  Identity{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role},
		})
	}
}

// Me returns the current session identity.
func (a *Auth) Me(w http.ResponseWriter, r *http.Request) {
	ident, ok := CurrentUser(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated", nil)
		return
	}
	writeJSON(w, http.StatusOK, ident)
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

// Middleware extracts a Bearer token into a request identity. Anonymous
// requests pass through untouched.
func (a *Auth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		token, err := jwt.Parse(strings.TrimPrefix(header, "Bearer "), func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return a.Secret, nil
		})
		if err != nil || !token.Valid {
			next.ServeHTTP(w, r)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		ident := Identity{
			ID:    stringClaim(claims, "sub"),
			Email: stringClaim(claims, "email"),
			Name:  stringClaim(claims, "name"),
			Role:  crm.Role(stringClaim(claims, "role")),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey, ident)))
	})
}

// CurrentUser returns the identity attached to the request, if any.
func CurrentUser(ctx context.Context) (Identity, bool) {
	ident, ok := ctx.Value(identityKey).(Identity)
	return ident, ok
}

// actor picks the audit name for a mutation: the caller-supplied value wins,
// then the session user, then the service default ("System").
func (h *Handler) actor(r *http.Request, supplied string) string {
	if supplied != "" {
		return supplied
	}
	if ident, ok := CurrentUser(r.Context()); ok {
		return ident.Name
	}
	return ""
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

// =============================================================================
// SEEDING
// =============================================================================

// EnsureSeedUsers creates the bootstrap accounts when the users table is
// empty.
func EnsureSeedUsers(ctx context.Context, store *gormdb.Store, log *zap.Logger) error {
	n, err := store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	users := []crm.User{
		{ID: crm.NewID(), Email: "admin@crm.com", PasswordHash: string(hash), Name: "Admin User", Role: crm.RoleAdmin},
		{ID: crm.NewID(), Email: "user@crm.com", PasswordHash: string(hash), Name: "Regular User", Role: crm.RoleUser},
	}
	for i := range users {
		if err := store.CreateUser(ctx, &users[i]); err != nil {
			return err
		}
	}
	if log != nil {
		log.Info("seeded bootstrap users", zap.Int("count", len(users)))
	}
	return nil
}
