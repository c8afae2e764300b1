package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestAuthService(t *testing.T) *AuthService {
	t.Helper()
	return NewAuthService(setupTestStore(t).Gorm()).WithCost(bcrypt.MinCost)
}

func TestAuthService_SignupAndLogin(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)

	account, err := svc.Signup(ctx, " Reader@Example.com ", "secret1", "")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.com", account.Email)
	assert.Equal(t, "reader", account.DisplayName)
	assert.NotEmpty(t, account.UID)

	logged, err := svc.Login(ctx, "READER@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, account.UID, logged.UID)

	got, err := svc.Get(ctx, account.UID)
	require.NoError(t, err)
	assert.Equal(t, account.Email, got.Email)
}

func TestAuthService_SignupValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)

	cases := []struct {
		name     string
		email    string
		password string
		code     string
	}{
		{"empty email", "", "secret1", AuthInvalidEmail},
		{"bad email", "not-an-email", "secret1", AuthInvalidEmail},
		{"short password", "a@example.com", "12345", AuthWeakPassword},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Signup(ctx, tc.email, tc.password, "")
			if code := AuthCode(err); code != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}

	_, err := svc.Signup(ctx, "dup@example.com", "secret1", "first")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "DUP@example.com", "secret2", "second")
	assert.ErrorIs(t, err, &AuthError{Code: AuthEmailInUse})
}

func TestAuthService_LoginFailures(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)
	_, err := svc.Signup(ctx, "a@example.com", "secret1", "")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@example.com", "wrong-pass")
	assert.Equal(t, AuthInvalidCredential, AuthCode(err))
	_, err = svc.Login(ctx, "nobody@example.com", "secret1")
	assert.Equal(t, AuthInvalidCredential, AuthCode(err))

	_, err = svc.Get(ctx, "missing")
	assert.Equal(t, AuthUserNotFound, AuthCode(err))
}

func TestAuthService_UpdateProfileAndPassword(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)
	account, err := svc.Signup(ctx, "a@example.com", "secret1", "A")
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, account.UID, " New Name ", "/static/uploads/avatars/a.png")
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.DisplayName)
	assert.Equal(t, "/static/uploads/avatars/a.png", updated.PhotoURL)

	updated, err = svc.UpdateProfile(ctx, account.UID, "", "")
	require.NoError(t, err)
	assert.Equal(t, "New Name", updated.DisplayName, "empty fields keep stored values")

	err = svc.ChangePassword(ctx, account.UID, "bad", "secret2")
	assert.Equal(t, AuthWrongPassword, AuthCode(err))
	err = svc.ChangePassword(ctx, account.UID, "secret1", "123")
	assert.Equal(t, AuthWeakPassword, AuthCode(err))
	require.NoError(t, svc.ChangePassword(ctx, account.UID, "secret1", "secret2"))

	_, err = svc.Login(ctx, "a@example.com", "secret1")
	assert.Error(t, err)
	_, err = svc.Login(ctx, "a@example.com", "secret2")
	assert.NoError(t, err)
}

func TestAuthService_EnsureAccount(t *testing.T) {
	ctx := context.Background()
	svc := newTestAuthService(t)

	first, err := svc.EnsureAccount(ctx, "admin@example.com", "secret1", "admin")
	require.NoError(t, err)
	second, err := svc.EnsureAccount(ctx, "admin@example.com", "another", "admin")
	require.NoError(t, err)
	assert.Equal(t, first.UID, second.UID)
}

func TestAuthMessage(t *testing.T) {
	cases := []struct {
		lang string
		err  error
		want string
	}{
		{"zh", authError(AuthInvalidCredential), "邮箱或密码错误"},
		{"zh", authError(AuthUserNotFound), "用户不存在"},
		{"zh", authError(AuthWrongPassword), "密码错误"},
		{"en", authError(AuthWrongPassword), "Wrong password"},
		{"zh", errors.New("network down"), "登录失败: network down"},
		{"en", errors.New("network down"), "Login failed: network down"},
	}
	for _, tc := range cases {
		if got := AuthMessage(tc.lang, tc.err); got != tc.want {
			t.Fatalf("AuthMessage(%s, %v) = %q, want %q", tc.lang, tc.err, got, tc.want)
		}
	}
}
