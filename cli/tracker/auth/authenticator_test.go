package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signed(t *testing.T, method jwt.SigningMethod, key interface{}, claims jwt.Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return token
}

func TestAuthenticator_Verify(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	authenticator := newAuthenticator(testSecret, func() time.Time { return now })

	valid := Claims{
		UserID: "user-1",
		Role:   RoleDriver,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}
	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(now.Add(-time.Minute))
	noExpiry := valid
	noExpiry.ExpiresAt = nil
	noSubject := valid
	noSubject.UserID = ""
	withSubject := valid
	withSubject.Subject = "sub-1"

	tests := []struct {
		name        string
		token       string
		wantErr     error
		wantSubject string
	}{
		{name: "Missing token", token: "", wantErr: ErrMissingCredential},
		{name: "Valid userId claim", token: signed(t, jwt.SigningMethodHS256, []byte(testSecret), valid), wantSubject: "user-1"},
		{name: "Subject wins over userId", token: signed(t, jwt.SigningMethodHS256, []byte(testSecret), withSubject), wantSubject: "sub-1"},
		{name: "Wrong secret", token: signed(t, jwt.SigningMethodHS256, []byte("other"), valid), wantErr: ErrInvalidCredential},
		{name: "Expired", token: signed(t, jwt.SigningMethodHS256, []byte(testSecret), expired), wantErr: ErrInvalidCredential},
		{name: "No expiry", token: signed(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry), wantErr: ErrInvalidCredential},
		{name: "No subject", token: signed(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject), wantErr: ErrInvalidCredential},
		{name: "Other HMAC algorithm", token: signed(t, jwt.SigningMethodHS512, []byte(testSecret), valid), wantErr: ErrInvalidCredential},
		{name: "Garbage", token: "not.a.token", wantErr: ErrInvalidCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			identity, err := authenticator.Verify(tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, Identity{}, identity)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSubject, identity.Subject)
			assert.Equal(t, RoleDriver, identity.Role)
			assert.Equal(t, now.Add(time.Hour), identity.ExpiresAt)
		})
	}
}

func TestIssueRoundTrip(t *testing.T) {
	token, err := Issue(testSecret, "driver-7", RoleDriver, time.Minute)
	require.NoError(t, err)

	identity, err := NewAuthenticator(testSecret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "driver-7", identity.Subject)
	assert.Equal(t, RoleDriver, identity.Role)
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(r *http.Request)
		want    string
	}{
		{name: "Nothing", prepare: func(r *http.Request) {}, want: ""},
		{name: "Bearer header", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer abc") }, want: "abc"},
		{name: "Non bearer header is ignored", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, want: ""},
		{name: "Cookie", prepare: func(r *http.Request) { r.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"}) }, want: "from-cookie"},
		{name: "Query", prepare: func(r *http.Request) { r.URL.RawQuery = "token=from-query" }, want: "from-query"},
		{
			name: "Header before cookie",
			prepare: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer header")
				r.AddCookie(&http.Cookie{Name: "token", Value: "cookie"})
			},
			want: "header",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/socket", nil)
			tt.prepare(r)
			assert.Equal(t, tt.want, TokenFromRequest(r))
		})
	}
}

func TestIdentityContextAndRoles(t *testing.T) {
	_, ok := IdentityFromContext(context.Background())
	assert.False(t, ok)

	identity := Identity{Subject: "u", Role: RoleUser}
	got, ok := IdentityFromContext(WithIdentity(context.Background(), identity))
	assert.True(t, ok)
	assert.Equal(t, identity, got)

	assert.True(t, identity.HasRole(nil))
	assert.False(t, identity.HasRole([]Role{RoleDriver, RoleAdmin}))
	assert.True(t, Identity{Role: RoleAdmin}.HasRole([]Role{RoleDriver, RoleAdmin}))

	assert.Equal(t, []Role{RoleDriver, RoleAdmin}, ParseRoles([]string{" Driver", "", "admin"}))
}
