package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "invoria/internal/auth"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "middleware-secret", Issuer: "invoria"})
	require.NoError(t, err)

	r := gin.New()
	r.GET("/protected", Auth(jwt), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": c.GetString(CtxUserIDKey)})
	})
	return r, jwt
}

func TestAuthMiddlewareAcceptsValidToken(t *testing.T) {
	r, jwt := newAuthTestRouter(t)

	token, err := jwt.GenerateAccessToken("user-42", "a@example.com")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "user-42")
}

func TestAuthMiddlewareRejectsMissingOrBadTokens(t *testing.T) {
	r, _ := newAuthTestRouter(t)

	cases := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage token", header: "Bearer not.a.jwt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, http.StatusUnauthorized, w.Code)
			require.Contains(t, w.Body.String(), `"detail"`)
		})
	}
}
