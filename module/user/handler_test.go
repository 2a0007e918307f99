package user

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"chatty/middleware"
	"chatty/tools/security"
)

func newTestRouter(t *testing.T) (*gin.Engine, security.Options) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc, _, _, opts := newTestService()
	h := NewHandler(svc, opts, false)

	passthrough := func(c *gin.Context) { c.Next() }
	r := gin.New()
	h.Register(r.Group("/api/auth"), passthrough, middleware.Auth(opts))
	return r, opts
}

func doJSON(t *testing.T, r *gin.Engine, method, path, body string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	r.ServeHTTP(w, req)
	return w
}

func jwtCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "jwt" {
			return ck
		}
	}
	t.Fatal("no jwt cookie set")
	return nil
}

func TestSignupHandler(t *testing.T) {
	r := require.New(t)
	router, opts := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/signup",
		`{"fullName":"Alice","email":"alice@example.com","password":"hunter22"}`, nil)
	r.Equal(http.StatusCreated, w.Code)

	var body map[string]any
	r.NoError(json.Unmarshal(w.Body.Bytes(), &body))
	r.Equal("alice@example.com", body["email"])
	r.NotContains(w.Body.String(), "hunter22")
	r.NotContains(body, "password", "hash never serializes")

	ck := jwtCookie(t, w)
	r.True(ck.HttpOnly)
	id, err := security.Verify(opts, ck.Value)
	r.NoError(err)
	r.Equal(body["_id"], id)
}

func TestSignupHandlerBadBody(t *testing.T) {
	router, _ := newTestRouter(t)
	w := doJSON(t, router, http.MethodPost, "/api/auth/signup", `{not json`, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLoginHandler(t *testing.T) {
	r := require.New(t)
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/signup",
		`{"fullName":"Alice","email":"alice@example.com","password":"hunter22"}`, nil)
	r.Equal(http.StatusCreated, w.Code)

	w = doJSON(t, router, http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"hunter22"}`, nil)
	r.Equal(http.StatusOK, w.Code)
	jwtCookie(t, w)

	w = doJSON(t, router, http.MethodPost, "/api/auth/login",
		`{"email":"alice@example.com","password":"wrong"}`, nil)
	r.Equal(http.StatusBadRequest, w.Code)
	r.Contains(w.Body.String(), "invalid credentials")
}

func TestCheckHandler(t *testing.T) {
	r := require.New(t)
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/signup",
		`{"fullName":"Alice","email":"alice@example.com","password":"hunter22"}`, nil)
	ck := jwtCookie(t, w)

	w = doJSON(t, router, http.MethodGet, "/api/auth/check", "", []*http.Cookie{ck})
	r.Equal(http.StatusOK, w.Code)
	r.Contains(w.Body.String(), "alice@example.com")

	w = doJSON(t, router, http.MethodGet, "/api/auth/check", "", nil)
	r.Equal(http.StatusUnauthorized, w.Code)
}

func TestLogoutHandlerClearsCookie(t *testing.T) {
	r := require.New(t)
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/logout", "", nil)
	r.Equal(http.StatusOK, w.Code)

	ck := jwtCookie(t, w)
	r.Empty(ck.Value)
	r.True(ck.MaxAge < 0, "cookie is expired")
}

func TestUpdateProfileHandler(t *testing.T) {
	r := require.New(t)
	router, _ := newTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/api/auth/signup",
		`{"fullName":"Alice","email":"alice@example.com","password":"hunter22"}`, nil)
	ck := jwtCookie(t, w)

	// small valid base64 body ("png")
	w = doJSON(t, router, http.MethodPut, "/api/auth/update-profile",
		`{"profilePic":"data:image/png;base64,cG5n"}`, []*http.Cookie{ck})
	r.Equal(http.StatusOK, w.Code)
	r.Contains(w.Body.String(), "/api/media/pic")

	w = doJSON(t, router, http.MethodPut, "/api/auth/update-profile",
		`{"profilePic":""}`, []*http.Cookie{ck})
	r.Equal(http.StatusBadRequest, w.Code)
}
