package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/freitasmatheusrn/pricecompare/internal/database/postgres/repo"
	"github.com/freitasmatheusrn/pricecompare/pkg/auth"
	"github.com/freitasmatheusrn/pricecompare/pkg/parser"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-secret"

// MockStore implements Store for testing
type MockStore struct {
	mu         sync.Mutex
	users      map[string]repo.User
	businesses map[string]repo.Business
}

func newMockStore() *MockStore {
	return &MockStore{users: map[string]repo.User{}, businesses: map[string]repo.Business{}}
}

func (m *MockStore) addUser(t *testing.T, email, password, role string) repo.User {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	u := repo.User{ID: parser.NewPgUUID(), Name: "Test", Email: email, Password: string(hash), Role: role}
	m.users[email] = u
	return u
}

func (m *MockStore) addBusiness(t *testing.T, email, password, status string) repo.Business {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	b := repo.Business{ID: parser.NewPgUUID(), Name: "Loja", Email: email, Password: string(hash), Status: status}
	m.businesses[email] = b
	return b
}

func (m *MockStore) CreateUser(ctx context.Context, arg repo.CreateUserParams) (repo.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := repo.User{ID: parser.NewPgUUID(), Name: arg.Name, Email: arg.Email, Password: arg.Password, Role: arg.Role}
	m.users[arg.Email] = u
	return u, nil
}

func (m *MockStore) FindByEmail(ctx context.Context, email string) (repo.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[email]; ok {
		return u, nil
	}
	return repo.User{}, pgx.ErrNoRows
}

func (m *MockStore) FindByID(ctx context.Context, id pgtype.UUID) (repo.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return repo.User{}, pgx.ErrNoRows
}

func (m *MockStore) UpdateUser(ctx context.Context, arg repo.UpdateUserParams) (repo.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, u := range m.users {
		if u.ID == arg.ID {
			if arg.Password.Valid {
				u.Password = arg.Password.String
			}
			m.users[email] = u
			return u, nil
		}
	}
	return repo.User{}, pgx.ErrNoRows
}

func (m *MockStore) FindBusinessByEmail(ctx context.Context, email string) (repo.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.businesses[email]; ok {
		return b, nil
	}
	return repo.Business{}, pgx.ErrNoRows
}

func (m *MockStore) FindBusinessByID(ctx context.Context, id pgtype.UUID) (repo.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.businesses {
		if b.ID == id {
			return b, nil
		}
	}
	return repo.Business{}, pgx.ErrNoRows
}

func (m *MockStore) UpdateBusinessProfile(ctx context.Context, arg repo.UpdateBusinessProfileParams) (repo.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for email, b := range m.businesses {
		if b.ID == arg.ID {
			if arg.Password.Valid {
				b.Password = arg.Password.String
			}
			m.businesses[email] = b
			return b, nil
		}
	}
	return repo.Business{}, pgx.ErrNoRows
}

// MockTokenRepository keeps refresh tokens in memory
type MockTokenRepository struct {
	mu      sync.Mutex
	tokens  map[string]TokenData
	revoked map[string]string
}

func newMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{tokens: map[string]TokenData{}, revoked: map[string]string{}}
}

func (m *MockTokenRepository) StoreToken(ctx context.Context, tokenHash string, data TokenData, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenHash] = data
	return nil
}

func (m *MockTokenRepository) GetToken(ctx context.Context, tokenHash string) (*TokenData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.tokens[tokenHash]; ok {
		return &d, nil
	}
	return nil, nil
}

func (m *MockTokenRepository) RevokeToken(ctx context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.tokens[tokenHash]; ok {
		m.revoked[tokenHash] = d.FamilyID
		delete(m.tokens, tokenHash)
	}
	return nil
}

func (m *MockTokenRepository) RevokedFamily(ctx context.Context, tokenHash string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[tokenHash], nil
}

func (m *MockTokenRepository) RevokeTokenFamily(ctx context.Context, familyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, d := range m.tokens {
		if d.FamilyID == familyID {
			delete(m.tokens, h)
		}
	}
	return nil
}

func (m *MockTokenRepository) RevokeAllSubjectTokens(ctx context.Context, subjectID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for h, d := range m.tokens {
		if d.SubjectID == subjectID {
			delete(m.tokens, h)
		}
	}
	return nil
}

func (m *MockTokenRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// MockResetRepository keeps reset codes in memory
type MockResetRepository struct {
	codes map[string]*ResetCode
}

func (m *MockResetRepository) Save(ctx context.Context, key, code string, ttl time.Duration) error {
	m.codes[key] = &ResetCode{Code: code}
	return nil
}

func (m *MockResetRepository) Get(ctx context.Context, key string) (*ResetCode, error) {
	if c, ok := m.codes[key]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, nil
}

func (m *MockResetRepository) IncrementAttempts(ctx context.Context, key string) (int, error) {
	c, ok := m.codes[key]
	if !ok {
		return 0, nil
	}
	c.Attempts++
	return c.Attempts, nil
}

func (m *MockResetRepository) Delete(ctx context.Context, key string) error {
	delete(m.codes, key)
	return nil
}

// MockEmail records sent messages
type MockEmail struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func (m *MockEmail) Send(subject, text, html string, recipients []string) error {
	m.mu.Lock()
	m.sent = append(m.sent, text)
	m.mu.Unlock()
	if m.done != nil {
		m.done <- struct{}{}
	}
	return nil
}

type fixture struct {
	store  *MockStore
	tokens *MockTokenRepository
	resets *MockResetRepository
	email  *MockEmail
	svc    Service
}

func newFixture() *fixture {
	f := &fixture{
		store:  newMockStore(),
		tokens: newMockTokenRepository(),
		resets: &MockResetRepository{codes: map[string]*ResetCode{}},
		email:  &MockEmail{done: make(chan struct{}, 10)},
	}
	f.svc = NewService(f.store, f.tokens, f.resets, f.email, zap.NewNop(), Config{
		JWTSecret:       testSecret,
		AccessTokenExp:  900,
		RefreshTokenExp: 3600,
	})
	return f
}

func TestSignup_CreatesUserAndTokens(t *testing.T) {
	f := newFixture()

	result, apiErr := f.svc.Signup(context.Background(), SignupInput{Name: "Ana", Email: "ANA@example.com", Password: "password1"}, "ua", "127.0.0.1")
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}

	if result.Principal.Role != auth.RoleUser {
		t.Errorf("expected role user, got %q", result.Principal.Role)
	}
	if result.Principal.Email != "ana@example.com" {
		t.Errorf("expected normalized email, got %q", result.Principal.Email)
	}

	claims, err := auth.ParseJWT(result.Tokens.AccessToken, testSecret)
	if err != nil {
		t.Fatalf("access token should be valid: %v", err)
	}
	if claims.Role != auth.RoleUser {
		t.Errorf("expected role claim user, got %q", claims.Role)
	}
	if f.tokens.count() != 1 {
		t.Errorf("expected 1 stored refresh token, got %d", f.tokens.count())
	}

	select {
	case <-f.email.done:
	case <-time.After(time.Second):
		t.Error("expected welcome email")
	}
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture()

	_, apiErr := f.svc.Signup(context.Background(), SignupInput{Name: "Ana", Email: "ana@example.com", Password: "short"}, "", "")
	if apiErr == nil || apiErr.Code != 400 {
		t.Fatalf("expected 400, got %v", apiErr)
	}
}

func TestSignin_WrongPassword(t *testing.T) {
	f := newFixture()
	f.store.addUser(t, "ana@example.com", "password1", auth.RoleUser)

	_, apiErr := f.svc.Signin(context.Background(), SigninInput{Email: "ana@example.com", Password: "nope"}, "", "")
	if apiErr == nil || apiErr.Code != 401 {
		t.Fatalf("expected 401, got %v", apiErr)
	}
}

func TestSignin_UnknownEmailSameMessage(t *testing.T) {
	f := newFixture()
	f.store.addUser(t, "ana@example.com", "password1", auth.RoleUser)

	_, unknown := f.svc.Signin(context.Background(), SigninInput{Email: "bob@example.com", Password: "password1"}, "", "")
	_, wrong := f.svc.Signin(context.Background(), SigninInput{Email: "ana@example.com", Password: "wrong"}, "", "")
	if unknown == nil || wrong == nil || unknown.Message != wrong.Message {
		t.Fatalf("expected identical errors, got %v and %v", unknown, wrong)
	}
}

func TestSigninBusiness_Suspended(t *testing.T) {
	f := newFixture()
	f.store.addBusiness(t, "loja@example.com", "password1", "suspended")

	_, apiErr := f.svc.SigninBusiness(context.Background(), SigninInput{Email: "loja@example.com", Password: "password1"}, "", "")
	if apiErr == nil || apiErr.Code != 403 {
		t.Fatalf("expected 403, got %v", apiErr)
	}
}

func TestSigninBusiness_RoleClaim(t *testing.T) {
	f := newFixture()
	b := f.store.addBusiness(t, "loja@example.com", "password1", BusinessActive)

	result, apiErr := f.svc.SigninBusiness(context.Background(), SigninInput{Email: "loja@example.com", Password: "password1"}, "", "")
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	claims, err := auth.ParseJWT(result.Tokens.AccessToken, testSecret)
	if err != nil {
		t.Fatal(err)
	}
	if claims.Role != auth.RoleBusiness || claims.SubjectID != parser.MustPgUUIDToString(b.ID) {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestRefreshTokens_RotatesAndDetectsReuse(t *testing.T) {
	f := newFixture()
	f.store.addUser(t, "ana@example.com", "password1", auth.RoleUser)

	first, apiErr := f.svc.Signin(context.Background(), SigninInput{Email: "ana@example.com", Password: "password1"}, "", "")
	if apiErr != nil {
		t.Fatal(apiErr)
	}

	second, apiErr := f.svc.RefreshTokens(context.Background(), first.Tokens.RefreshToken, "", "")
	if apiErr != nil {
		t.Fatalf("unexpected refresh error: %v", apiErr)
	}
	if second.RefreshToken == first.Tokens.RefreshToken {
		t.Fatal("expected a new refresh token")
	}
	if f.tokens.count() != 1 {
		t.Fatalf("expected only the rotated token to remain, got %d", f.tokens.count())
	}

	// Presenting the old token again revokes the whole family.
	if _, apiErr := f.svc.RefreshTokens(context.Background(), first.Tokens.RefreshToken, "", ""); apiErr == nil || apiErr.Code != 401 {
		t.Fatalf("expected 401 on reuse, got %v", apiErr)
	}
	if f.tokens.count() != 0 {
		t.Errorf("expected family to be revoked, %d tokens left", f.tokens.count())
	}
	if _, apiErr := f.svc.RefreshTokens(context.Background(), second.RefreshToken, "", ""); apiErr == nil {
		t.Error("expected rotated token to be revoked after reuse")
	}
}

func TestRefreshTokens_SuspendedBusiness(t *testing.T) {
	f := newFixture()
	b := f.store.addBusiness(t, "loja@example.com", "password1", BusinessActive)

	result, apiErr := f.svc.SigninBusiness(context.Background(), SigninInput{Email: "loja@example.com", Password: "password1"}, "", "")
	if apiErr != nil {
		t.Fatal(apiErr)
	}

	b.Status = "suspended"
	f.store.businesses[b.Email] = b

	if _, apiErr := f.svc.RefreshTokens(context.Background(), result.Tokens.RefreshToken, "", ""); apiErr == nil || apiErr.Code != 403 {
		t.Fatalf("expected 403 for suspended business, got %v", apiErr)
	}
}

func TestPasswordReset_Flow(t *testing.T) {
	f := newFixture()
	f.store.addUser(t, "ana@example.com", "password1", auth.RoleUser)
	if _, apiErr := f.svc.Signin(context.Background(), SigninInput{Email: "ana@example.com", Password: "password1"}, "", ""); apiErr != nil {
		t.Fatal(apiErr)
	}

	if apiErr := f.svc.RequestPasswordReset(context.Background(), ForgotPasswordInput{Email: "ana@example.com"}); apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}
	stored := f.resets.codes["ana@example.com"]
	if stored == nil || len(stored.Code) != 6 {
		t.Fatalf("expected a 6 digit code, got %+v", stored)
	}

	apiErr := f.svc.ResetPassword(context.Background(), ResetPasswordInput{Email: "ana@example.com", Code: stored.Code, NewPassword: "newpassword"})
	if apiErr != nil {
		t.Fatalf("unexpected error: %v", apiErr)
	}

	if _, apiErr := f.svc.Signin(context.Background(), SigninInput{Email: "ana@example.com", Password: "newpassword"}, "", ""); apiErr != nil {
		t.Errorf("expected signin with new password, got %v", apiErr)
	}
	if _, ok := f.resets.codes["ana@example.com"]; ok {
		t.Error("expected code to be consumed")
	}
	// only the session created by the last signin remains
	if f.tokens.count() != 1 {
		t.Errorf("expected previous sessions revoked, got %d tokens", f.tokens.count())
	}
}

func TestPasswordReset_UnknownEmailIsSilent(t *testing.T) {
	f := newFixture()

	if apiErr := f.svc.RequestPasswordReset(context.Background(), ForgotPasswordInput{Email: "ghost@example.com"}); apiErr != nil {
		t.Fatalf("expected success for unknown email, got %v", apiErr)
	}
	if len(f.resets.codes) != 0 {
		t.Error("no code should be stored for unknown email")
	}
}

func TestPasswordReset_MaxAttempts(t *testing.T) {
	f := newFixture()
	f.store.addUser(t, "ana@example.com", "password1", auth.RoleUser)
	f.resets.codes["ana@example.com"] = &ResetCode{Code: "123456"}

	for i := 0; i < MaxResetCodeAttempts; i++ {
		if apiErr := f.svc.ResetPassword(context.Background(), ResetPasswordInput{Email: "ana@example.com", Code: "000000", NewPassword: "newpassword"}); apiErr == nil {
			t.Fatal("expected wrong code to fail")
		}
	}

	// the right code no longer works once attempts are exhausted
	if apiErr := f.svc.ResetPassword(context.Background(), ResetPasswordInput{Email: "ana@example.com", Code: "123456", NewPassword: "newpassword"}); apiErr == nil {
		t.Fatal("expected code to be invalidated")
	}
}

func TestLogoutAll(t *testing.T) {
	f := newFixture()
	u := f.store.addUser(t, "ana@example.com", "password1", auth.RoleUser)
	for i := 0; i < 3; i++ {
		if _, apiErr := f.svc.Signin(context.Background(), SigninInput{Email: "ana@example.com", Password: "password1"}, "", ""); apiErr != nil {
			t.Fatal(apiErr)
		}
	}

	if err := f.svc.LogoutAll(context.Background(), parser.MustPgUUIDToString(u.ID)); err != nil {
		t.Fatal(err)
	}
	if f.tokens.count() != 0 {
		t.Errorf("expected all tokens revoked, got %d", f.tokens.count())
	}
}
