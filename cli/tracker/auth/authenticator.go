package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingCredential = errors.New("authentication required")
	ErrInvalidCredential = errors.New("invalid credential")
)

const (
	TokenCookieName = "token"
	TokenQueryName  = "token"
)

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleDriver Role = "driver"
	RoleUser   Role = "user"
)

// Claims полезная нагрузка токена веб-приложения: userId и role плюс стандартные поля
type Claims struct {
	UserID string `json:"userId,omitempty"`
	Role   Role   `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity проверенная личность владельца соединения
type Identity struct {
	Subject   string
	Role      Role
	ExpiresAt time.Time
}

// HasRole пустой список разрешает любую роль
func (i Identity) HasRole(roles []Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if i.Role == role {
			return true
		}
	}
	return false
}

type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret string) *Authenticator {
	return newAuthenticator(secret, time.Now)
}

func newAuthenticator(secret string, now func() time.Time) *Authenticator {
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(now),
		),
	}
}

// Verify проверяет подпись и срок действия токена
func (a *Authenticator) Verify(raw string) (Identity, error) {
	if raw == "" {
		return Identity{}, ErrMissingCredential
	}

	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}

	subject := claims.Subject
	if subject == "" {
		subject = claims.UserID
	}
	if subject == "" {
		return Identity{}, fmt.Errorf("%w: токен не содержит субъекта", ErrInvalidCredential)
	}

	identity := Identity{Subject: subject, Role: claims.Role}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// Authenticate извлекает токен из рукопожатия и проверяет его
func (a *Authenticator) Authenticate(r *http.Request) (Identity, error) {
	return a.Verify(TokenFromRequest(r))
}

// TokenFromRequest порядок поиска: заголовок Authorization, cookie token, параметр token
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return r.URL.Query().Get(TokenQueryName)
}

// Issue выпускает токен; используется генератором нагрузки и тестами
func Issue(secret, subject string, role Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: subject,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

type identityKey struct{}

func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey{}).(Identity)
	return identity, ok
}

// ParseRoles пустые строки пропускаются
func ParseRoles(names []string) []Role {
	roles := make([]Role, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(strings.ToLower(name))
		if name != "" {
			roles = append(roles, Role(name))
		}
	}
	return roles
}
