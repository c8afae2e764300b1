package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/deLKM/Genteblog/internal/db"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// 认证错误码。
const (
	AuthInvalidEmail      = "auth/invalid-email"
	AuthWeakPassword      = "auth/weak-password"
	AuthEmailInUse        = "auth/email-already-in-use"
	AuthUserNotFound      = "auth/user-not-found"
	AuthWrongPassword     = "auth/wrong-password"
	AuthInvalidCredential = "auth/invalid-credential"
)

const minPasswordLength = 6

// AuthError carries one of the auth/* codes.
type AuthError struct {
	Code string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *AuthError) Unwrap() error { return e.Err }

// Is matches another *AuthError with the same code.
func (e *AuthError) Is(target error) bool {
	var other *AuthError
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	return false
}

func authError(code string) error { return &AuthError{Code: code} }

// AuthCode returns the auth/* code of err, or "" when err is not an AuthError.
func AuthCode(err error) string {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Code
	}
	return ""
}

var authMessages = map[string][2]string{
	AuthInvalidCredential: {"Invalid email or password", "邮箱或密码错误"},
	AuthUserNotFound:      {"User not found", "用户不存在"},
	AuthWrongPassword:     {"Wrong password", "密码错误"},
	AuthInvalidEmail:      {"Invalid email address", "邮箱格式不正确"},
	AuthWeakPassword:      {"Password must be at least 6 characters", "密码至少需要 6 位"},
	AuthEmailInUse:        {"Email is already registered", "该邮箱已被注册"},
}

// AuthMessage 把认证错误翻译为提示文案，lang 为 "en" 时返回英文。
func AuthMessage(lang string, err error) string {
	en := lang == "en"
	if msg, ok := authMessages[AuthCode(err)]; ok {
		if en {
			return msg[0]
		}
		return msg[1]
	}
	if en {
		return "Login failed: " + err.Error()
	}
	return "登录失败: " + err.Error()
}

// Account is the public view of a user.
type Account struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	PhotoURL    string    `json:"photoURL"`
	CreatedAt   time.Time `json:"createdAt"`
}

func accountOf(u *db.User) *Account {
	return &Account{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		PhotoURL:    u.PhotoURL,
		CreatedAt:   u.CreatedAt,
	}
}

// AuthService 管理本地账号，密码以 bcrypt 哈希保存。
type AuthService struct {
	db       *gorm.DB
	validate *validator.Validate
	log      *zap.Logger
	cost     int
}

func NewAuthService(gdb *gorm.DB) *AuthService {
	return &AuthService{db: gdb, validate: validator.New(), log: zap.NewNop(), cost: bcrypt.DefaultCost}
}

func (s *AuthService) WithLogger(l *zap.Logger) *AuthService {
	if l != nil {
		s.log = l
	}
	return s
}

// WithCost 设置 bcrypt 代价，测试中使用 bcrypt.MinCost。
func (s *AuthService) WithCost(cost int) *AuthService {
	s.cost = cost
	return s
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *AuthService) checkCredentials(email, password string) error {
	if err := s.validate.Var(email, "required,email"); err != nil {
		return authError(AuthInvalidEmail)
	}
	if len([]rune(password)) < minPasswordLength {
		return authError(AuthWeakPassword)
	}
	return nil
}

// Signup creates an account.
func (s *AuthService) Signup(ctx context.Context, email, password, displayName string) (*Account, error) {
	email = normalizeEmail(email)
	if err := s.checkCredentials(email, password); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	uid, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate uid: %w", err)
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = strings.SplitN(email, "@", 2)[0]
	}

	user := &db.User{
		UID:          uid.String(),
		Email:        email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&db.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return authError(AuthEmailInUse)
		}
		return tx.Create(user).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, authError(AuthEmailInUse)
		}
		return nil, err
	}
	s.log.Info("account created", zap.String("uid", user.UID))
	return accountOf(user), nil
}

// Login checks the credentials. Unknown email and wrong password both
// report auth/invalid-credential.
func (s *AuthService) Login(ctx context.Context, email, password string) (*Account, error) {
	user, err := s.byEmail(ctx, normalizeEmail(email))
	if err != nil {
		if AuthCode(err) == AuthUserNotFound {
			return nil, authError(AuthInvalidCredential)
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, authError(AuthInvalidCredential)
	}
	return accountOf(user), nil
}

// Get returns the account for uid.
func (s *AuthService) Get(ctx context.Context, uid string) (*Account, error) {
	user, err := s.byUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return accountOf(user), nil
}

// UpdateProfile changes the display name and, when photoURL is non-empty, the avatar.
func (s *AuthService) UpdateProfile(ctx context.Context, uid, displayName, photoURL string) (*Account, error) {
	user, err := s.byUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(displayName); name != "" {
		user.DisplayName = name
	}
	if photoURL != "" {
		user.PhotoURL = photoURL
	}
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return nil, err
	}
	return accountOf(user), nil
}

// ChangePassword replaces the password after checking the current one.
func (s *AuthService) ChangePassword(ctx context.Context, uid, current, next string) error {
	user, err := s.byUID(ctx, uid)
	if err != nil {
		return err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(current)); err != nil {
		return authError(AuthWrongPassword)
	}
	if len([]rune(next)) < minPasswordLength {
		return authError(AuthWeakPassword)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.db.WithContext(ctx).Model(user).Update("password_hash", string(hash)).Error
}

// EnsureAccount 在账号不存在时创建，用于启动时初始化管理员。
func (s *AuthService) EnsureAccount(ctx context.Context, email, password, displayName string) (*Account, error) {
	user, err := s.byEmail(ctx, normalizeEmail(email))
	if err == nil {
		return accountOf(user), nil
	}
	if AuthCode(err) != AuthUserNotFound {
		return nil, err
	}
	return s.Signup(ctx, email, password, displayName)
}

func (s *AuthService) byEmail(ctx context.Context, email string) (*db.User, error) {
	var user db.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, authError(AuthUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *AuthService) byUID(ctx context.Context, uid string) (*db.User, error) {
	if strings.TrimSpace(uid) == "" {
		return nil, authError(AuthUserNotFound)
	}
	var user db.User
	err := s.db.WithContext(ctx).Where("uid = ?", uid).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, authError(AuthUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
