package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"classroom-api/internal/adapters/cache"
	"classroom-api/internal/adapters/http/middleware"
	"classroom-api/internal/adapters/persistence/models"
	"classroom-api/internal/adapters/persistence/repositories"
	"classroom-api/internal/config"
	"classroom-api/internal/core/domain"
	"classroom-api/internal/core/services"
	"classroom-api/internal/pkg/jwt"
	"classroom-api/internal/pkg/password"
	"classroom-api/internal/pkg/response"
	"classroom-api/internal/pkg/routepolicy"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// memUsers is an in-memory UserRepository keyed by id
type memUsers struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func (m *memUsers) Create(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *memUsers) update(id string, fn func(*models.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	fn(u)
	return nil
}

func (m *memUsers) UpdateStatus(_ context.Context, id, status string) error {
	return m.update(id, func(u *models.User) { u.Status = status })
}

func (m *memUsers) UpdateRole(_ context.Context, id, role string) error {
	return m.update(id, func(u *models.User) { u.Role = role })
}

func (m *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	return m.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (m *memUsers) List(_ context.Context, filter repositories.UserFilter, offset, limit int) ([]*models.User, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.User
	for _, u := range m.users {
		if (filter.Role == "" || u.Role == filter.Role) && (filter.Status == "" || u.Status == filter.Status) {
			out = append(out, u)
		}
	}
	total := int64(len(out))
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, total, nil
}

func (m *memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	return err == nil, nil
}

func (m *memUsers) CountByRole(_ context.Context, role string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, u := range m.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

// outbox records the last code mailed to each address
type outbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (o *outbox) SendOTP(_ context.Context, to, code string, _ time.Duration) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.codes[to] = code
	return nil
}

func (o *outbox) last(to string) string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.codes[to]
}

type testServer struct {
	app    *fiber.App
	signer *jwt.Signer
	mail   *outbox
	policy *routepolicy.Policy
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	hasher := password.NewHasher(bcrypt.MinCost)
	hash, err := hasher.Hash("correct-horse")
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	signer, err := jwt.NewSigner(jwt.SignerConfig{Secret: testSecret, Issuer: "test"})
	if err != nil {
		t.Fatalf("NewSigner() error: %v", err)
	}

	users := &memUsers{users: map[string]*models.User{
		"u-admin": {ID: "u-admin", Email: "admin@school.test", PasswordHash: hash, Role: "ADMIN", Status: "ACTIVE"},
		"u-1":     {ID: "u-1", Email: "teacher@school.test", PasswordHash: hash, Role: "TEACHER", Status: "ACTIVE"},
		"u-2":     {ID: "u-2", Email: "student@school.test", PasswordHash: hash, Role: "STUDENT", Status: "ACTIVE"},
	}}
	mail := &outbox{codes: map[string]string{}}
	store := cache.NewMemoryStore(cache.Options{
		CodeTTL:         5 * time.Minute,
		CodeCapacity:    100,
		RequestWindow:   15 * time.Minute,
		RequestCapacity: 100,
	})

	audit := services.NewAuditService(nil)
	authService := services.NewAuthService(users, signer, hasher, audit, time.Hour)
	otpService := services.NewOTPService(users, store, mail, signer, authService, audit, services.OTPConfig{
		Length:          6,
		CodeTTL:         5 * time.Minute,
		PendingTokenTTL: 10 * time.Minute,
		MaxRequests:     5,
	})
	userService := services.NewUserService(users, hasher, audit)

	policy := routepolicy.New(
		routepolicy.Rule{Method: "POST", Pattern: "/api/auth/session", Requirement: routepolicy.Public()},
		routepolicy.Rule{Method: "POST", Pattern: "/api/otp", Requirement: routepolicy.Public()},
		routepolicy.Rule{Method: "POST", Pattern: "/api/otp/verification", Requirement: routepolicy.Public()},
		routepolicy.Rule{Method: routepolicy.AnyMethod, Pattern: "/api/security/settings/**", Requirement: routepolicy.RequireRole(domain.RoleAdmin)},
		routepolicy.Rule{Method: "GET", Pattern: "/api/users/me", Requirement: routepolicy.AuthenticatedAny()},
		routepolicy.Rule{Method: "PUT", Pattern: "/api/users/me/password", Requirement: routepolicy.AuthenticatedAny()},
		routepolicy.Rule{Method: routepolicy.AnyMethod, Pattern: "/api/users/**", Requirement: routepolicy.RequireRole(domain.RoleAdmin)},
	)

	cookieCfg := config.CookieConfig{SameSite: "lax"}
	authHandler := NewAuthHandler(authService, cookieCfg)
	otpHandler := NewOTPHandler(otpService, authService, cookieCfg)
	userHandler := NewUserHandler(userService, audit)
	securityHandler := NewSecurityHandler(otpService, authService, policy)

	app := fiber.New(fiber.Config{CaseSensitive: true, ErrorHandler: middleware.CustomErrorHandler})
	app.Use(middleware.Authenticate(authService))
	app.Use("/api", middleware.Authorize(policy))

	app.Post("/api/auth/session", authHandler.Login)
	app.Get("/api/auth/session", authHandler.Session)
	app.Delete("/api/auth/session", authHandler.Logout)
	app.Post("/api/otp", otpHandler.Request)
	app.Post("/api/otp/verification", otpHandler.Verify)
	app.Get("/api/security/settings", securityHandler.Settings)
	app.Get("/api/users/me", userHandler.GetProfile)
	app.Put("/api/users/me/password", userHandler.ChangePassword)
	app.Get("/api/users", userHandler.ListUsers)
	app.Patch("/api/users/:id/role", userHandler.UpdateRole)

	return &testServer{app: app, signer: signer, mail: mail, policy: policy}
}

// token issues a session token for userID signed with the server key
func (s *testServer) token(t *testing.T, userID, role string, extra map[string]string) string {
	t.Helper()
	tok, err := s.signer.Issue(userID, role, time.Hour, extra)
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error: %v", err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

type sessionBody struct {
	Success bool                   `json:"success"`
	Data    services.SessionResult `json:"data"`
}

func TestLoginSetsSessionCookie(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/auth/session", "", `{"email":"Teacher@School.test","password":"correct-horse"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	cookie := resp.Header.Get("Set-Cookie")
	if !strings.HasPrefix(cookie, "access_token=") || !strings.Contains(strings.ToLower(cookie), "httponly") {
		t.Fatalf("expected HttpOnly access_token cookie, got %q", cookie)
	}

	var body sessionBody
	decode(t, resp, &body)
	if !body.Success || body.Data.AccessToken == "" || body.Data.User == nil || body.Data.User.ID != "u-1" {
		t.Fatalf("unexpected login body: %+v", body)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	s := newTestServer(t)

	for _, payload := range []string{
		`{"email":"teacher@school.test","password":"wrong-horse"}`,
		`{"email":"nobody@school.test","password":"correct-horse"}`,
	} {
		resp := s.do(t, "POST", "/api/auth/session", "", payload)
		var body response.ErrorBody
		decode(t, resp, &body)
		if resp.StatusCode != fiber.StatusUnauthorized || body.Code != "INVALID_CREDENTIALS" {
			t.Fatalf("expected 401 INVALID_CREDENTIALS, got %d %+v", resp.StatusCode, body)
		}
	}
}

func TestSessionRequiresPrincipal(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "GET", "/api/auth/session", "", "")
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", resp.StatusCode)
	}

	resp = s.do(t, "GET", "/api/auth/session", s.token(t, "u-2", "STUDENT", nil), "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 with a session token, got %d", resp.StatusCode)
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "DELETE", "/api/auth/session", s.token(t, "u-2", "STUDENT", nil), "")
	cookie := resp.Header.Get("Set-Cookie")
	if !strings.HasPrefix(cookie, "access_token=;") {
		t.Fatalf("expected cleared cookie, got %q", cookie)
	}
}

func TestOTPRequestReturnsPendingToken(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/otp", "", `{"email":"Teacher@School.test"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var body struct {
		Data services.OTPRequestResult `json:"data"`
	}
	decode(t, resp, &body)

	claims, err := s.signer.Verify(body.Data.Token)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Subject != "u-1" || claims.Get(jwt.ClaimStage) != jwt.StageOTPPending {
		t.Fatalf("expected pending token for u-1, got %+v", claims)
	}
	if body.Data.ExpiresIn != 600 {
		t.Fatalf("expected expires_in 600, got %d", body.Data.ExpiresIn)
	}
	if code := s.mail.last("teacher@school.test"); len(code) != 6 {
		t.Fatalf("expected a 6 digit code to be mailed, got %q", code)
	}
}

func TestOTPRequestUnknownEmail(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/otp", "", `{"email":"nobody@school.test"}`)
	var body response.ErrorBody
	decode(t, resp, &body)
	if resp.StatusCode != fiber.StatusNotFound || body.Code != "USER_NOT_FOUND" {
		t.Fatalf("expected 404 USER_NOT_FOUND, got %d %+v", resp.StatusCode, body)
	}
}

func TestOTPVerifyUsesPendingPrincipal(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "POST", "/api/otp", "", `{"email":"teacher@school.test"}`)
	var requested struct {
		Data services.OTPRequestResult `json:"data"`
	}
	decode(t, resp, &requested)
	code := s.mail.last("teacher@school.test")

	// the body names another user; the pending token decides whose code is checked
	resp = s.do(t, "POST", "/api/otp/verification", requested.Data.Token, `{"user_id":"u-2","code":"`+code+`"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if cookie := resp.Header.Get("Set-Cookie"); !strings.HasPrefix(cookie, "access_token=") {
		t.Fatalf("expected access_token cookie, got %q", cookie)
	}

	var body sessionBody
	decode(t, resp, &body)
	if body.Data.User == nil || body.Data.User.ID != "u-1" {
		t.Fatalf("expected session for u-1, got %+v", body.Data.User)
	}
	claims, err := s.signer.Verify(body.Data.AccessToken)
	if err != nil {
		t.Fatalf("Verify() error: %v", err)
	}
	if claims.Get(jwt.ClaimAuthMethod) != jwt.AuthMethodOTP || claims.Get(jwt.ClaimStage) != "" {
		t.Fatalf("expected an OTP session token, got %+v", claims)
	}
}

func TestOTPVerifyRejectsWrongCode(t *testing.T) {
	s := newTestServer(t)

	s.do(t, "POST", "/api/otp", "", `{"email":"teacher@school.test"}`)
	code := s.mail.last("teacher@school.test")
	wrong := code[:5] + string('0'+(code[5]-'0'+1)%10)

	for _, c := range []string{wrong, code} {
		resp := s.do(t, "POST", "/api/otp/verification", "", `{"user_id":"u-1","code":"`+c+`"}`)
		var body response.ErrorBody
		decode(t, resp, &body)
		if resp.StatusCode != fiber.StatusUnauthorized || body.Code != "OTP_INVALID" {
			t.Fatalf("code %s: expected 401 OTP_INVALID, got %d %+v", c, resp.StatusCode, body)
		}
		if cookie := resp.Header.Get("Set-Cookie"); cookie != "" {
			t.Fatalf("expected no cookie on failure, got %q", cookie)
		}
	}
}

func TestSecuritySettings(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "GET", "/api/security/settings", s.token(t, "u-1", "TEACHER", nil), "")
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403 for a teacher, got %d", resp.StatusCode)
	}

	resp = s.do(t, "GET", "/api/security/settings", s.token(t, "u-admin", "ADMIN", nil), "")
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200 for an admin, got %d", resp.StatusCode)
	}
	var body struct {
		Data struct {
			OTP struct {
				Length         int    `json:"length"`
				CodeTTLSeconds int    `json:"code_ttl_seconds"`
				MaxRequests    int    `json:"max_requests"`
				Store          string `json:"store"`
			} `json:"otp"`
			Session struct {
				AccessTTLSeconds int `json:"access_ttl_seconds"`
			} `json:"session"`
			RoutePolicy []policyRule `json:"route_policy"`
		} `json:"data"`
	}
	decode(t, resp, &body)

	otp := body.Data.OTP
	if otp.Length != 6 || otp.CodeTTLSeconds != 300 || otp.MaxRequests != 5 || otp.Store != cache.BackendMemory {
		t.Fatalf("unexpected otp settings: %+v", otp)
	}
	if body.Data.Session.AccessTTLSeconds != 3600 {
		t.Fatalf("expected access ttl 3600, got %d", body.Data.Session.AccessTTLSeconds)
	}
	if len(body.Data.RoutePolicy) != len(s.policy.Rules()) || body.Data.RoutePolicy[3].Requirement != "role(ADMIN)" {
		t.Fatalf("unexpected route policy: %+v", body.Data.RoutePolicy)
	}
}

func TestUserRoleAdministration(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "u-admin", "ADMIN", nil)

	resp := s.do(t, "PATCH", "/api/users/u-2/role", s.token(t, "u-2", "STUDENT", nil), `{"role":"ADMIN"}`)
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected a student to be refused, got %d", resp.StatusCode)
	}

	resp = s.do(t, "PATCH", "/api/users/u-admin/role", admin, `{"role":"TEACHER"}`)
	var refused response.ErrorBody
	decode(t, resp, &refused)
	if resp.StatusCode != fiber.StatusForbidden || refused.Message != domain.ErrCannotChangeOwnRole.Message {
		t.Fatalf("expected own role change to be refused, got %d %+v", resp.StatusCode, refused)
	}

	resp = s.do(t, "PATCH", "/api/users/u-2/role", admin, `{"role":"teacher"}`)
	var changed struct {
		Data models.UserResponse `json:"data"`
	}
	decode(t, resp, &changed)
	if resp.StatusCode != fiber.StatusOK || changed.Data.Role != "TEACHER" {
		t.Fatalf("expected role TEACHER, got %d %+v", resp.StatusCode, changed.Data)
	}

	resp = s.do(t, "GET", "/api/users?role=TEACHER&limit=1", admin, "")
	var listed struct {
		Data struct {
			Data []models.UserResponse `json:"data"`
			Meta struct {
				Total      int64 `json:"total"`
				TotalPages int   `json:"total_pages"`
			} `json:"meta"`
			Filters map[string]string `json:"filters"`
		} `json:"data"`
	}
	decode(t, resp, &listed)
	if len(listed.Data.Data) != 1 || listed.Data.Meta.Total != 2 || listed.Data.Meta.TotalPages != 2 {
		t.Fatalf("unexpected listing: %+v", listed.Data)
	}
	if listed.Data.Filters["role"] != "TEACHER" {
		t.Fatalf("expected role filter in listing, got %v", listed.Data.Filters)
	}
}

func TestChangePasswordAfterOTP(t *testing.T) {
	s := newTestServer(t)

	resp := s.do(t, "PUT", "/api/users/me/password", s.token(t, "u-1", "TEACHER", nil), `{"new_password":"brand-new-pass"}`)
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected a password session to need the current password, got %d", resp.StatusCode)
	}

	otpSession := s.token(t, "u-1", "TEACHER", map[string]string{jwt.ClaimAuthMethod: jwt.AuthMethodOTP})
	resp = s.do(t, "PUT", "/api/users/me/password", otpSession, `{"new_password":"brand-new-pass"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected OTP session to reset the password, got %d", resp.StatusCode)
	}

	resp = s.do(t, "POST", "/api/auth/session", "", `{"email":"teacher@school.test","password":"brand-new-pass"}`)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected login with the new password, got %d", resp.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	cases := []struct {
		name   string
		checks map[string]Pinger
		status int
	}{
		{"all healthy", map[string]Pinger{"database": ok, "otp_store": ok}, fiber.StatusOK},
		{"store down", map[string]Pinger{"database": ok, "otp_store": down}, fiber.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/health", NewHealthHandler("dev", tc.checks).HealthCheck)

			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
			if err != nil {
				t.Fatalf("app.Test() error: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestActiveQuarter(t *testing.T) {
	app := fiber.New()
	app.Get("/api/school-year/active-quarter", NewSchoolYearHandler(services.NewSchoolYearService(time.June)).ActiveQuarter)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/school-year/active-quarter", nil))
	if err != nil {
		t.Fatalf("app.Test() error: %v", err)
	}
	var body struct {
		Data services.ActiveQuarter `json:"data"`
	}
	decode(t, resp, &body)
	if body.Data.Quarter < 1 || body.Data.Quarter > 4 || body.Data.SchoolYear == "" {
		t.Fatalf("unexpected quarter: %+v", body.Data)
	}
}
