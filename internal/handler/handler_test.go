package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olatech/account-service/internal/config"
	"github.com/olatech/account-service/internal/middleware"
	"github.com/olatech/account-service/internal/models"
	"github.com/olatech/account-service/internal/repository"
	"github.com/olatech/account-service/internal/service"
	"github.com/olatech/account-service/internal/token"
	"github.com/olatech/account-service/internal/utils/email"
)

// memStore is an in-memory credential store enforcing the same case-folded
// uniqueness the real database does
type memStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*models.User)}
}

func (s *memStore) CreateUser(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, user.Email) || strings.EqualFold(u.Username, user.Username) {
			return repository.ErrDuplicate
		}
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	cpy := *user
	s.users[user.ID] = &cpy
	return nil
}

func (s *memStore) FindUserByEmail(email string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return strings.EqualFold(u.Email, email) })
}

func (s *memStore) FindUserByUsername(username string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return strings.EqualFold(u.Username, username) })
}

func (s *memStore) FindUserByID(id string) (*models.User, error) {
	return s.find(func(u *models.User) bool { return u.ID == id })
}

func (s *memStore) find(match func(*models.User) bool) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			cpy := *u
			return &cpy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) SetVerified(id string) error {
	return s.mutate(id, func(u *models.User) { u.IsVerified = true })
}

func (s *memStore) SetPasswordHash(id, hash string) error {
	return s.mutate(id, func(u *models.User) { u.PasswordHash = hash })
}

func (s *memStore) SetAdmin(id string) error {
	return s.mutate(id, func(u *models.User) { u.IsAdmin = true })
}

func (s *memStore) mutate(id string, fn func(*models.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

type fakeMailer struct{}

func (fakeMailer) VerificationMessage(to, firstName, link string) (email.Message, error) {
	return email.Message{To: to, Subject: "Email Verification", HTML: link}, nil
}

func (fakeMailer) PasswordResetMessage(to, firstName, link string) (email.Message, error) {
	return email.Message{To: to, Subject: "Password Reset", HTML: link}, nil
}

type fakeQueue struct {
	mu   sync.Mutex
	msgs []email.Message
}

func (q *fakeQueue) Enqueue(msg email.Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.msgs = append(q.msgs, msg)
}

// lastLinkToken returns the token segment of the most recent emailed link
func (q *fakeQueue) lastLinkToken(t *testing.T) string {
	t.Helper()
	q.mu.Lock()
	defer q.mu.Unlock()
	require.NotEmpty(t, q.msgs)
	link := q.msgs[len(q.msgs)-1].HTML
	i := strings.LastIndex(link, "/")
	require.Greater(t, i, -1)
	return link[i+1:]
}

type env struct {
	router *httptest.Server
	store  *memStore
	queue  *fakeQueue
	tokens *token.Service
}

func newEnv(t *testing.T) *env {
	t.Helper()
	tokens, err := token.NewService("test-secret", nil)
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := &config.Config{
		BaseURL:         "http://localhost:8080",
		VerifyTokenTTL:  5 * time.Minute,
		ResetTokenTTL:   10 * time.Minute,
		SessionTokenTTL: time.Hour,
	}

	store := newMemStore()
	queue := &fakeQueue{}
	svc := service.NewService(store, tokens, fakeMailer{}, queue, logger, cfg)
	h := NewHandler(svc, logger)

	server := httptest.NewServer(h.Router(middleware.Auth(tokens), middleware.RequireAdmin))
	t.Cleanup(server.Close)
	return &env{router: server, store: store, queue: queue, tokens: tokens}
}

func (e *env) do(t *testing.T, method, path string, body interface{}, headers map[string]string) (*http.Response, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.router.URL+path, &buf)
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	decoded := map[string]interface{}{}
	json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func registerBody() map[string]string {
	return map[string]string{
		"fullName":        "Jane Doe",
		"email":           "jane@x.com",
		"username":        "janed",
		"password":        "P@ss1",
		"confirmPassword": "P@ss1",
		"gender":          "female",
	}
}

func TestRegisterEndpoint(t *testing.T) {
	e := newEnv(t)

	resp, body := e.do(t, "POST", "/register", registerBody(), nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "user registered successfully", body["message"])

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["id"])
	assert.Equal(t, false, data["isVerified"])

	// The stored hash must never appear in the response.
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "P@ss1")
	assert.NotContains(t, string(raw), "passwordHash")
	assert.NotContains(t, string(raw), "$2a$")
}

func TestRegisterMissingField(t *testing.T) {
	e := newEnv(t)
	body := registerBody()
	delete(body, "gender")

	resp, decoded := e.do(t, "POST", "/register", body, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "please complete all inputs", decoded["message"])
}

func TestRegisterPasswordMismatch(t *testing.T) {
	e := newEnv(t)
	body := registerBody()
	body["confirmPassword"] = "other"

	resp, decoded := e.do(t, "POST", "/register", body, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "password does not match", decoded["message"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "POST", "/register", registerBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Same email, different username.
	second := registerBody()
	second["username"] = "janedoe2"
	resp, decoded := e.do(t, "POST", "/register", second, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "account already exists", decoded["message"])
}

func TestVerifyAndLoginFlow(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "POST", "/register", registerBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// Correct credentials, but the account is still pending.
	resp, decoded := e.do(t, "POST", "/login", map[string]string{"email": "jane@x.com", "password": "P@ss1"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decoded["message"], "not verified")

	// Follow the emailed verification link.
	verifyToken := e.queue.lastLinkToken(t)
	resp, decoded = e.do(t, "GET", "/verify-account/"+verifyToken, nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "account verified successfully", decoded["message"])

	// Verifying twice is a distinct no-op.
	resp, decoded = e.do(t, "GET", "/verify-account/"+verifyToken, nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "account has already been verified", decoded["message"])

	// Login now succeeds and returns a session token.
	resp, decoded = e.do(t, "POST", "/login", map[string]string{"username": "janed", "password": "P@ss1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, decoded["token"])

	claims, err := e.tokens.Verify(decoded["token"].(string), token.PurposeSession)
	require.NoError(t, err)
	assert.False(t, claims.IsAdmin)
}

func TestLoginFailures(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "POST", "/register", registerBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = e.do(t, "POST", "/login", map[string]string{"username": "nobody", "password": "P@ss1"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, decoded := e.do(t, "POST", "/login", map[string]string{"username": "janed", "password": "wrong"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "incorrect password", decoded["message"])
}

func TestVerifyInvalidToken(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "GET", "/verify-account/garbage", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestForgotPasswordUniformResponse(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "POST", "/register", registerBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, known := e.do(t, "POST", "/forget-password", map[string]string{"email": "jane@x.com"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, unknown := e.do(t, "POST", "/forget-password", map[string]string{"email": "nobody@x.com"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Identical body either way; the endpoint reveals nothing.
	assert.Equal(t, known, unknown)
}

func TestResetPasswordFlow(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "POST", "/register", registerBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	verifyToken := e.queue.lastLinkToken(t)
	resp, _ = e.do(t, "GET", "/verify-account/"+verifyToken, nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.do(t, "POST", "/forget-password", map[string]string{"email": "jane@x.com"}, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resetToken := e.queue.lastLinkToken(t)

	// Mismatched confirmation never mutates the stored hash.
	resp, decoded := e.do(t, "POST", "/reset-password/"+resetToken,
		map[string]string{"password": "NewP@ss", "confirmPassword": "other"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "password does not match", decoded["message"])

	resp, _ = e.do(t, "POST", "/login", map[string]string{"email": "jane@x.com", "password": "P@ss1"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Matching confirmation replaces it.
	resp, decoded = e.do(t, "POST", "/reset-password/"+resetToken,
		map[string]string{"password": "NewP@ss", "confirmPassword": "NewP@ss"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "password reset successful", decoded["message"])

	resp, _ = e.do(t, "POST", "/login", map[string]string{"email": "jane@x.com", "password": "P@ss1"}, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = e.do(t, "POST", "/login", map[string]string{"email": "jane@x.com", "password": "NewP@ss"}, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestResetPasswordWithVerificationToken(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "POST", "/register", registerBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// A verification token must not open the reset flow.
	verifyToken := e.queue.lastLinkToken(t)
	resp, _ = e.do(t, "POST", "/reset-password/"+verifyToken,
		map[string]string{"password": "NewP@ss", "confirmPassword": "NewP@ss"}, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMakeAdminAuth(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "POST", "/register", registerBody(), nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	user, err := e.store.FindUserByEmail("jane@x.com")
	require.NoError(t, err)

	path := fmt.Sprintf("/admin/%s", user.ID)

	// No credentials.
	resp, _ = e.do(t, "POST", path, nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Authenticated but not an admin.
	plain, err := e.tokens.Issue("caller-1", token.PurposeSession, false, time.Hour)
	require.NoError(t, err)
	resp, _ = e.do(t, "POST", path, nil, map[string]string{"Authorization": "Bearer " + plain})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// Admin session.
	admin, err := e.tokens.Issue("caller-2", token.PurposeSession, true, time.Hour)
	require.NoError(t, err)
	resp, decoded := e.do(t, "POST", path, nil, map[string]string{"Authorization": "Bearer " + admin})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user promoted to admin", decoded["message"])

	promoted, err := e.store.FindUserByID(user.ID)
	require.NoError(t, err)
	assert.True(t, promoted.IsAdmin)
}

func TestMakeAdminRejectsVerificationToken(t *testing.T) {
	e := newEnv(t)
	verify, err := e.tokens.Issue("caller-1", token.PurposeVerify, true, time.Hour)
	require.NoError(t, err)

	resp, _ := e.do(t, "POST", "/admin/some-id", nil, map[string]string{"Authorization": "Bearer " + verify})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestChangePasswordNotImplemented(t *testing.T) {
	e := newEnv(t)
	resp, _ := e.do(t, "POST", "/change-password", nil, nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}
