package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voiceguard/internal/config"
)

func newManager(t *testing.T) *Manager {
	t.Helper()
	m, err := NewManager(config.AuthConfig{
		JWTSecret:      "secret",
		JWTIssuer:      "issuer",
		JWTAudience:    "aud",
		AccessTokenTTL: 15 * time.Minute,
	})
	require.NoError(t, err)
	return m
}

func TestIssueAndVerifyAccessToken(t *testing.T) {
	m := newManager(t)
	now := time.Unix(1700000000, 0).UTC()

	tok, err := m.Issue(now, "user-1", RoleParticipant, 0)
	require.NoError(t, err)

	claims, err := m.Verify(tok, now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, RoleParticipant, claims.Role)
	assert.Equal(t, "user-1", claims.Subject)

	_, err = m.Verify(tok, now.Add(time.Hour))
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestIssueRejectsUnknownRoleAndMissingUser(t *testing.T) {
	m := newManager(t)
	_, err := m.Issue(time.Now(), "u", "admin", 0)
	assert.ErrorIs(t, err, ErrUnknownRole)
	_, err = m.Issue(time.Now(), "", RoleOperator, 0)
	assert.ErrorIs(t, err, ErrMissingUserID)
}

func TestVerifyRejectsForeignAudience(t *testing.T) {
	issuer, err := NewManager(config.AuthConfig{JWTSecret: "secret", JWTIssuer: "issuer", JWTAudience: "other"})
	require.NoError(t, err)
	tok, err := issuer.Issue(time.Now(), "u", RoleParticipant, 0)
	require.NoError(t, err)

	_, err = newManager(t).Verify(tok, time.Now())
	assert.Error(t, err)
}

func TestVerifyRejectsWrongTokenType(t *testing.T) {
	m := newManager(t)
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "issuer",
			Audience:  jwt.ClaimStrings{"aud"},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
		UserID:    "u",
		Role:      RoleParticipant,
		TokenType: "refresh",
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Verify(tok, now)
	assert.ErrorIs(t, err, ErrTokenTypeMismatch)
}

func TestMiddleware_RolesAndActingFor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newManager(t)

	r := gin.New()
	r.GET("/self", RequireAccessToken(m), func(c *gin.Context) {
		id, ok := ActingFor(c, c.Query("for"))
		if !ok {
			c.Status(http.StatusForbidden)
			return
		}
		c.String(http.StatusOK, id)
	})
	r.GET("/ops", RequireAccessToken(m), RequireAnyRole(RoleOperator), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	participant, err := m.Issue(time.Now(), "u1", RoleParticipant, 0)
	require.NoError(t, err)
	operator, err := m.Issue(time.Now(), "ops", RoleOperator, 0)
	require.NoError(t, err)

	do := func(path, tok string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("/self", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/self", "garbage").Code)

	w := do("/self", participant)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
	assert.Equal(t, http.StatusForbidden, do("/self?for=u2", participant).Code)

	w = do("/self?for=u2", operator)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u2", w.Body.String())

	assert.Equal(t, http.StatusForbidden, do("/ops", participant).Code)
	assert.Equal(t, http.StatusOK, do("/ops", operator).Code)
}
