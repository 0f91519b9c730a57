package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/storefront/backend/internal/cache"
	"github.com/storefront/backend/internal/config"
	"github.com/storefront/backend/internal/model"
	"github.com/storefront/backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testAccessSecret  = "access-secret"
	testRefreshSecret = "refresh-secret"
)

type testApp struct {
	router *gin.Engine
	users  *memoryUsers
	events *capturePublisher
	auth   *service.AuthService
}

func newTestApp(t *testing.T, opts ...func(*RouterDeps)) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authCfg := config.AuthConfig{
		JWTSecret:        testAccessSecret,
		JWTRefreshSecret: testRefreshSecret,
		JWTAccessTTL:     "24h",
		JWTRefreshTTL:    "7d",
		OTPTTL:           "5m",
		ResetTokenTTL:    "10m",
	}
	users := newMemoryUsers()
	events := &capturePublisher{}
	hasher := service.NewPasswordHasher(bcrypt.MinCost)
	tokens, err := service.NewTokenIssuer(authCfg)
	require.NoError(t, err)

	authSvc := service.NewAuthService(users, hasher, tokens, service.WithEvents(events))
	recovery, err := service.NewRecoveryService(users, hasher, cache.NewMemoryStore(), authCfg, events, nil)
	require.NoError(t, err)

	deps := RouterDeps{
		App:      config.AppConfig{Env: "development", CORSAllowedOrigins: []string{"http://shop.local"}},
		Auth:     authSvc,
		Recovery: recovery,
		Admin:    service.NewUserAdminService(users, nil, nil),
		DB:       stubPinger{},
	}
	for _, opt := range opts {
		opt(&deps)
	}

	return &testApp{router: NewRouter(deps), users: users, events: events, auth: authSvc}
}

type reqOption func(*http.Request)

func withBearer(token string) reqOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withCookie(name, value string) reqOption {
	return func(r *http.Request) { r.AddCookie(&http.Cookie{Name: name, Value: value}) }
}

func (a *testApp) do(method, path, body string, opts ...reqOption) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type authBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		User         model.User `json:"user"`
		AccessToken  string     `json:"accessToken"`
		RefreshToken string     `json:"refreshToken"`
		ExpiresIn    string     `json:"expiresIn"`
	} `json:"data"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *testApp) register(t *testing.T, email, password string) authBody {
	t.Helper()
	w := a.do(http.MethodPost, "/api/users/register", `{"email":"`+email+`","mat_khau":"`+password+`","ho_ten":"A"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[authBody](t, w)
}

func (a *testApp) login(t *testing.T, email, password string) *httptest.ResponseRecorder {
	t.Helper()
	return a.do(http.MethodPost, "/api/users/login", `{"email":"`+email+`","password":"`+password+`"}`)
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func signed(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func TestRegisterScenario(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodPost, "/api/users/register", `{"email":"a@b.com","mat_khau":"Abcdef1!","ho_ten":"A"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	body := decode[authBody](t, w)
	assert.True(t, body.Success)
	assert.Equal(t, int64(1), body.Data.User.ID)
	assert.Equal(t, "24h", body.Data.ExpiresIn)
	assert.NotEmpty(t, body.Data.AccessToken)
	assert.NotEmpty(t, body.Data.RefreshToken)
	assert.NotContains(t, w.Body.String(), "$2a$")
	assert.NotContains(t, w.Body.String(), "mat_khau")

	for _, name := range []string{"token", "refreshToken"} {
		cookie := findCookie(w, name)
		require.NotNil(t, cookie, name)
		assert.True(t, cookie.HttpOnly)
		assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite)
		assert.False(t, cookie.Secure)
		assert.Equal(t, 7*24*60*60, cookie.MaxAge)
	}
}

func TestRegisterValidationAndDuplicate(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodPost, "/api/users/register", `{"email":"not-an-email","mat_khau":"1"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decode[model.ErrorResponse](t, w)
	assert.False(t, body.Success)
	fields := map[string]bool{}
	for _, fe := range body.Errors {
		fields[fe.Field] = true
	}
	assert.True(t, fields["email"])
	assert.True(t, fields["mat_khau"])
	assert.True(t, fields["ho_ten"])

	w = app.do(http.MethodPost, "/api/users/register", `{broken`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	app.register(t, "a@b.com", "Abcdef1!")
	w = app.do(http.MethodPost, "/api/users/register", `{"email":"A@B.com","mat_khau":"Abcdef1!","ho_ten":"B"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Email đã được sử dụng", decode[model.ErrorResponse](t, w).Message)
}

func TestLogin(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "a@b.com", "Abcdef1!")

	w := app.login(t, "nobody@b.com", "Abcdef1!")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Email hoặc mật khẩu không đúng", decode[model.ErrorResponse](t, w).Message)

	w = app.login(t, "a@b.com", "wrong-pass")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Email hoặc mật khẩu không đúng", decode[model.ErrorResponse](t, w).Message)

	w = app.login(t, "a@b.com", "Abcdef1!")
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotNil(t, findCookie(w, "token"))

	w = app.do(http.MethodPost, "/api/users/login", `{"email":"a@b.com","mat_khau":"Abcdef1!"}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodPost, "/api/users/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequireAuthReasons(t *testing.T) {
	app := newTestApp(t)
	reg := app.register(t, "a@b.com", "Abcdef1!")

	w := app.do(http.MethodGet, "/api/users/me", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing", decode[model.ErrorResponse](t, w).Reason)

	w = app.do(http.MethodGet, "/api/users/me", "", withBearer("garbage"))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid", decode[model.ErrorResponse](t, w).Reason)

	expired := signed(t, testAccessSecret, jwt.MapClaims{
		"id":  1,
		"typ": "access",
		"exp": time.Now().Add(-time.Second).Unix(),
	})
	w = app.do(http.MethodGet, "/api/users/me", "", withBearer(expired))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "expired", decode[model.ErrorResponse](t, w).Reason)

	stillValid := signed(t, testAccessSecret, jwt.MapClaims{
		"id":  1,
		"typ": "access",
		"exp": time.Now().Add(2 * time.Second).Unix(),
	})
	w = app.do(http.MethodGet, "/api/users/me", "", withBearer(stillValid))
	assert.Equal(t, http.StatusOK, w.Code)

	ghost := signed(t, testAccessSecret, jwt.MapClaims{
		"id":  99,
		"typ": "access",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	w = app.do(http.MethodGet, "/api/users/me", "", withBearer(ghost))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "stale", decode[model.ErrorResponse](t, w).Reason)

	w = app.do(http.MethodGet, "/api/users/me", "", withBearer(reg.Data.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "$2a$")
	assert.Contains(t, w.Body.String(), `"email":"a@b.com"`)
}

func TestCredentialExtractionOrder(t *testing.T) {
	app := newTestApp(t)
	reg := app.register(t, "a@b.com", "Abcdef1!")

	w := app.do(http.MethodGet, "/api/users/me", "", withCookie("token", reg.Data.AccessToken))
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/api/users/me", "", withBearer(reg.Data.AccessToken), withCookie("token", "garbage"))
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/api/users/me", "", withBearer("garbage"), withCookie("token", reg.Data.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code, "header wins over cookie")

	w = app.do(http.MethodGet, "/api/users/me", "", withCookie("token", "none"))
	assert.Equal(t, "missing", decode[model.ErrorResponse](t, w).Reason)
}

func TestLogoutIsIdempotent(t *testing.T) {
	app := newTestApp(t)
	reg := app.register(t, "a@b.com", "Abcdef1!")

	first := app.do(http.MethodPost, "/api/users/logout", "", withBearer(reg.Data.AccessToken))
	second := app.do(http.MethodPost, "/api/users/logout", "")

	for _, w := range []*httptest.ResponseRecorder{first, second} {
		require.Equal(t, http.StatusOK, w.Code)
		for _, name := range []string{"token", "refreshToken"} {
			cookie := findCookie(w, name)
			require.NotNil(t, cookie)
			assert.Equal(t, "none", cookie.Value)
			assert.Equal(t, 10, cookie.MaxAge)
			assert.True(t, cookie.HttpOnly)
		}
	}
	assert.Equal(t, first.Body.String(), second.Body.String())
}

func TestLogoutRevokesWithDenylist(t *testing.T) {
	app := newTestApp(t)
	tokens, err := service.NewTokenIssuer(config.AuthConfig{
		JWTSecret:        testAccessSecret,
		JWTRefreshSecret: testRefreshSecret,
		JWTAccessTTL:     "24h",
		JWTRefreshTTL:    "7d",
	})
	require.NoError(t, err)
	app.auth = service.NewAuthService(app.users, service.NewPasswordHasher(bcrypt.MinCost), tokens,
		service.WithDenylist(cache.NewMemoryStore()))
	app.router = NewRouter(RouterDeps{Auth: app.auth, DB: stubPinger{}})

	reg := app.register(t, "a@b.com", "Abcdef1!")
	w := app.do(http.MethodPost, "/api/users/logout", "", withBearer(reg.Data.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/api/users/me", "", withBearer(reg.Data.AccessToken))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "revoked", decode[model.ErrorResponse](t, w).Reason)
}

func TestRefreshToken(t *testing.T) {
	app := newTestApp(t)
	reg := app.register(t, "a@b.com", "Abcdef1!")

	w := app.do(http.MethodPost, "/api/users/refresh-token", `{"refreshToken":"`+reg.Data.AccessToken+`"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid", decode[model.ErrorResponse](t, w).Reason)
	assert.Nil(t, findCookie(w, "token"), "no pair issued")

	w = app.do(http.MethodPost, "/api/users/refresh-token", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "missing", decode[model.ErrorResponse](t, w).Reason)

	w = app.do(http.MethodPost, "/api/users/refresh-token", `{"refreshToken":"`+reg.Data.RefreshToken+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[authBody](t, w)
	assert.NotEmpty(t, body.Data.AccessToken)
	assert.NotEmpty(t, body.Data.RefreshToken)
	assert.Equal(t, "24h", body.Data.ExpiresIn)
	assert.NotNil(t, findCookie(w, "token"))

	w = app.do(http.MethodGet, "/api/users/me", "", withBearer(body.Data.AccessToken))
	assert.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodPost, "/api/users/refresh-token", "", withCookie("refreshToken", reg.Data.RefreshToken))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSession(t *testing.T) {
	app := newTestApp(t)
	reg := app.register(t, "a@b.com", "Abcdef1!")

	type sessionBody struct {
		Data model.SessionPayload `json:"data"`
	}

	w := app.do(http.MethodGet, "/api/users/session", "", withBearer("garbage"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[sessionBody](t, w).Data.Authenticated)

	w = app.do(http.MethodGet, "/api/users/session", "", withCookie("token", reg.Data.AccessToken))
	require.Equal(t, http.StatusOK, w.Code)
	session := decode[sessionBody](t, w).Data
	assert.True(t, session.Authenticated)
	require.NotNil(t, session.User)
	assert.Equal(t, "a@b.com", session.User.Email)
	require.NotNil(t, session.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *session.ExpiresAt, time.Minute)
}

func TestProfileAndPassword(t *testing.T) {
	app := newTestApp(t)
	reg := app.register(t, "a@b.com", "Abcdef1!")
	auth := withBearer(reg.Data.AccessToken)

	w := app.do(http.MethodPut, "/api/users/update-profile", `{"dia_chi":"12 Lê Lợi"}`, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "12 Lê Lợi")

	w = app.do(http.MethodPut, "/api/users/update-profile", `{}`, auth)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodPut, "/api/users/update-password", `{"currentPassword":"wrong-pass","newPassword":"NewPass1!"}`, auth)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, http.StatusOK, app.login(t, "a@b.com", "Abcdef1!").Code)

	w = app.do(http.MethodPut, "/api/users/update-password", `{"currentPassword":"Abcdef1!","newPassword":"NewPass1!"}`, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.StatusOK, app.login(t, "a@b.com", "NewPass1!").Code)
	assert.Equal(t, http.StatusUnauthorized, app.login(t, "a@b.com", "Abcdef1!").Code)
}

func TestRoleBoundaryAndLock(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	require.NoError(t, app.auth.EnsureAdmin(ctx, "admin@b.com", "Admin123"))
	member := app.register(t, "user@b.com", "Abcdef1!")

	w := app.do(http.MethodGet, "/api/users", "", withBearer(member.Data.AccessToken))
	assert.Equal(t, http.StatusForbidden, w.Code)

	adminLogin := app.login(t, "admin@b.com", "Admin123")
	require.Equal(t, http.StatusOK, adminLogin.Code)
	admin := decode[authBody](t, adminLogin)
	asAdmin := withBearer(admin.Data.AccessToken)

	w = app.do(http.MethodGet, "/api/users?limit=10", "", asAdmin)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "user@b.com")
	assert.NotContains(t, w.Body.String(), "$2a$")

	path := "/api/users/" + jsonInt(member.Data.User.ID)
	w = app.do(http.MethodPut, path+"/lock", `{"bi_khoa":true}`, asAdmin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = app.do(http.MethodGet, "/api/users/me", "", withBearer(member.Data.AccessToken))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, http.StatusForbidden, app.login(t, "user@b.com", "Abcdef1!").Code)

	w = app.do(http.MethodPut, path+"/role", `{"vai_tro":"admin"}`, asAdmin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"vai_tro":1`)

	w = app.do(http.MethodPut, "/api/users/"+jsonInt(admin.Data.User.ID)+"/lock", `{"bi_khoa":true}`, asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodDelete, path, "", asAdmin)
	assert.Equal(t, http.StatusOK, w.Code)
	w = app.do(http.MethodDelete, path, "", asAdmin)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = app.do(http.MethodGet, "/api/users/abc", "", asAdmin)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

var otpPattern = regexp.MustCompile(`là (\d{6})`)

func TestPasswordRecovery(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "a@b.com", "Abcdef1!")

	w := app.do(http.MethodPost, "/api/users/forgot-password", `{"email":"ghost@b.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	ghost := w.Body.String()

	w = app.do(http.MethodPost, "/api/users/forgot-password", `{"email":"a@b.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ghost, w.Body.String(), "response must not reveal registration")

	event, ok := app.events.last(model.EventPasswordResetRequested)
	require.True(t, ok)
	match := otpPattern.FindStringSubmatch(event.Data["body"])
	require.Len(t, match, 2)
	otp := match[1]

	w = app.do(http.MethodPost, "/api/users/verify-otp", `{"email":"a@b.com","otp":"12ab56"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = app.do(http.MethodPost, "/api/users/verify-otp", `{"email":"a@b.com","otp":"`+otp+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verified struct {
		Data model.ResetTokenPayload `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verified))
	require.NotEmpty(t, verified.Data.ResetToken)

	w = app.do(http.MethodPost, "/api/users/verify-otp", `{"email":"a@b.com","otp":"`+otp+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	reset := `{"email":"a@b.com","resetToken":"` + verified.Data.ResetToken + `","newPassword":"NewPass1!"}`
	w = app.do(http.MethodPost, "/api/users/reset-password", reset)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = app.do(http.MethodPost, "/api/users/reset-password", reset)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusOK, app.login(t, "a@b.com", "NewPass1!").Code)
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(t, func(d *RouterDeps) {
		d.Limiter = NewIPRateLimiter(1, nil)
	})

	codes := make([]int, 0, rateLimitBurst+1)
	for i := 0; i <= rateLimitBurst; i++ {
		codes = append(codes, app.login(t, "a@b.com", "x").Code)
	}
	for _, code := range codes[:rateLimitBurst] {
		assert.NotEqual(t, http.StatusTooManyRequests, code)
	}
	assert.Equal(t, http.StatusTooManyRequests, codes[rateLimitBurst])
}

func TestHealthAndCORS(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/ping", "").Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, app.do(http.MethodGet, "/healthz", "").Code)

	w := app.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "storefront_http_requests_total"))

	w = app.do(http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, w.Code)
	var doc struct {
		Swagger string         `json:"swagger"`
		Paths   map[string]any `json:"paths"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &doc))
	assert.Equal(t, "2.0", doc.Swagger)
	assert.Contains(t, doc.Paths, "/api/users/refresh-token")

	down := newTestApp(t, func(d *RouterDeps) { d.DB = stubPinger{err: errDown} })
	assert.Equal(t, http.StatusServiceUnavailable, down.do(http.MethodGet, "/healthz", "").Code)

	w = app.do(http.MethodOptions, "/api/users/login", "", func(r *http.Request) {
		r.Header.Set("Origin", "http://shop.local")
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://shop.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestRequireRoleUnknownAliasPanics(t *testing.T) {
	assert.Panics(t, func() { RequireRole("superuser") })
	assert.NotPanics(t, func() { RequireRole("admin", "user", "1") })
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func TestRateLimitIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	app := newTestApp(t, func(d *RouterDeps) {
		d.Limiter = NewIPRateLimiter(1, nil)
	})

	limited := 0
	for i := 0; i < 20; i++ {
		w := app.do(http.MethodPost, "/api/users/verify-otp", `{"email":"a@b.com","otp":"000000"}`,
			func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113."+jsonInt(int64(i+1))) })
		if w.Code == http.StatusTooManyRequests {
			limited++
		}
	}
	assert.Equal(t, 20-rateLimitBurst, limited)
}

func TestRateLimitHonorsForwardedForFromTrustedProxy(t *testing.T) {
	app := newTestApp(t, func(d *RouterDeps) {
		d.App.TrustedProxies = []string{"192.0.2.1"}
		d.Limiter = NewIPRateLimiter(1, nil)
	})

	for i := 0; i < 20; i++ {
		w := app.do(http.MethodPost, "/api/users/verify-otp", `{"email":"a@b.com","otp":"000000"}`,
			func(r *http.Request) { r.Header.Set("X-Forwarded-For", "203.0.113."+jsonInt(int64(i+1))) })
		assert.NotEqual(t, http.StatusTooManyRequests, w.Code)
	}
}

func TestVerifyOTPBurnsCodeAfterRepeatedMisses(t *testing.T) {
	app := newTestApp(t)
	app.register(t, "a@b.com", "Abcdef1!")

	w := app.do(http.MethodPost, "/api/users/forgot-password", `{"email":"a@b.com"}`)
	require.Equal(t, http.StatusOK, w.Code)
	event, ok := app.events.last(model.EventPasswordResetRequested)
	require.True(t, ok)
	match := otpPattern.FindStringSubmatch(event.Data["body"])
	require.Len(t, match, 2)
	otp := match[1]

	wrong := "000000"
	if otp == wrong {
		wrong = "111111"
	}
	for i := 0; i < service.MaxOTPAttempts; i++ {
		w = app.do(http.MethodPost, "/api/users/verify-otp", `{"email":"a@b.com","otp":"`+wrong+`"}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
	}

	w = app.do(http.MethodPost, "/api/users/verify-otp", `{"email":"a@b.com","otp":"`+otp+`"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Mã OTP không hợp lệ hoặc đã hết hạn", decode[model.ErrorResponse](t, w).Message)
}

func TestRegisterRejectsPasswordBeyondBcryptLimit(t *testing.T) {
	app := newTestApp(t)

	w := app.do(http.MethodPost, "/api/users/register",
		`{"email":"a@b.com","mat_khau":"`+strings.Repeat("x", 73)+`","ho_ten":"A"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "mat_khau", decode[model.ErrorResponse](t, w).Errors[0].Field)
}
