package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"classroom-api/internal/adapters/cache"
	"classroom-api/internal/adapters/persistence/models"
	"classroom-api/internal/adapters/persistence/repositories"
	"classroom-api/internal/pkg/jwt"
	"classroom-api/internal/pkg/password"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	r := &fakeUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if user.ID == "" {
		user.ID = "u-" + strings.Split(user.Email, "@")[0]
	}
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) update(id string, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	fn(u)
	return nil
}

func (r *fakeUserRepo) UpdateStatus(_ context.Context, id, status string) error {
	return r.update(id, func(u *models.User) { u.Status = status })
}

func (r *fakeUserRepo) UpdateRole(_ context.Context, id, role string) error {
	return r.update(id, func(u *models.User) { u.Role = role })
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	return r.update(id, func(u *models.User) { u.PasswordHash = hash })
}

func (r *fakeUserRepo) List(_ context.Context, filter repositories.UserFilter, offset, limit int) ([]*models.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, u := range r.users {
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if filter.Status != "" && u.Status != filter.Status {
			continue
		}
		out = append(out, u)
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

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	return err == nil, nil
}

func (r *fakeUserRepo) CountByRole(_ context.Context, role string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, u := range r.users {
		if u.Role == role {
			n++
		}
	}
	return n, nil
}

type fakeEventRepo struct {
	mu     sync.Mutex
	events []*models.AuthEvent
	cutoff time.Time
}

func (r *fakeEventRepo) Create(_ context.Context, e *models.AuthEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *fakeEventRepo) ListByUserID(_ context.Context, userID string, limit int) ([]*models.AuthEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.AuthEvent
	for _, e := range r.events {
		if e.UserID == userID && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEventRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoff = cutoff
	return 3, nil
}

func (r *fakeEventRepo) actions(outcome string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Outcome == outcome {
			out = append(out, e.Action)
		}
	}
	return out
}

type sentOTP struct {
	to   string
	code string
	ttl  time.Duration
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentOTP
	err  error
}

func (s *fakeSender) SendOTP(_ context.Context, to, code string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentOTP{to: to, code: code, ttl: ttl})
	return nil
}

func (s *fakeSender) last(t *testing.T) sentOTP {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sent) == 0 {
		t.Fatalf("expected an OTP to be sent")
	}
	return s.sent[len(s.sent)-1]
}

var errDelivery = errors.New("smtp unavailable")

type testEnv struct {
	users  *fakeUserRepo
	events *fakeEventRepo
	sender *fakeSender
	store  *cache.MemoryStore
	signer *jwt.Signer
	hasher *password.Hasher
	auth   *AuthService
	otp    *OTPService
	user   *UserService
}

type envOptions struct {
	codeTTL       time.Duration
	requestWindow time.Duration
}

func newTestEnv(t *testing.T, opts envOptions, users ...*models.User) *testEnv {
	t.Helper()
	if opts.codeTTL == 0 {
		opts.codeTTL = 5 * time.Minute
	}
	if opts.requestWindow == 0 {
		opts.requestWindow = 15 * time.Minute
	}

	signer, err := jwt.NewSigner(jwt.SignerConfig{Secret: testSecret, Issuer: "classroom-api"})
	if err != nil {
		t.Fatalf("NewSigner() error: %v", err)
	}

	env := &testEnv{
		users:  newFakeUserRepo(users...),
		events: &fakeEventRepo{},
		sender: &fakeSender{},
		store: cache.NewMemoryStore(cache.Options{
			CodeTTL:         opts.codeTTL,
			CodeCapacity:    10000,
			RequestWindow:   opts.requestWindow,
			RequestCapacity: 10000,
		}),
		signer: signer,
		hasher: password.NewHasher(bcrypt.MinCost),
	}

	audit := NewAuditService(env.events)
	env.auth = NewAuthService(env.users, signer, env.hasher, audit, time.Hour)
	env.otp = NewOTPService(env.users, env.store, env.sender, signer, env.auth, audit, OTPConfig{
		Length:          6,
		CodeTTL:         opts.codeTTL,
		PendingTokenTTL: 10 * time.Minute,
		MaxRequests:     5,
	})
	env.user = NewUserService(env.users, env.hasher, audit)
	return env
}

func (e *testEnv) mustHash(t *testing.T, plain string) string {
	t.Helper()
	h, err := e.hasher.Hash(plain)
	if err != nil {
		t.Fatalf("Hash() error: %v", err)
	}
	return h
}

func (e *testEnv) addUser(t *testing.T, id, email, role, status, plain string) *models.User {
	t.Helper()
	u := &models.User{ID: id, Email: email, PasswordHash: e.mustHash(t, plain), Role: role, Status: status}
	if err := e.users.Create(context.Background(), u); err != nil {
		t.Fatalf("Create() error: %v", err)
	}
	return u
}
