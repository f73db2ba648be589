package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"caisse-system/internal/apperr"
	"caisse-system/internal/database/models"
	"caisse-system/internal/permissions"
)

const minPasswordLength = 6

type UserHandler struct {
	db   *gorm.DB
	log  *zap.Logger
	now  func() time.Time
	cost int
}

func NewUserHandler(db *gorm.DB, log *zap.Logger) *UserHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &UserHandler{db: db, log: log, now: time.Now, cost: bcrypt.DefaultCost}
}

func (s *UserHandler) hash(password string) (string, error) {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return "", apperr.Fields(map[string]string{"password": fmt.Sprintf("must be at least %d characters", minPasswordLength)})
	}
	pwHash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(pwHash), nil
}

var validate = validator.New()

type CreateUserInput struct {
	Username string           `json:"username"`
	Email    string           `json:"email"`
	Password string           `json:"password"`
	Role     permissions.Role `json:"role"`
}

func validateIdentity(username, email string, role permissions.Role) map[string]string {
	v := map[string]string{}
	if n := utf8.RuneCountInString(username); n < 3 || n > 50 {
		v["username"] = "must be between 3 and 50 characters"
	}
	if validate.Var(email, "required,email") != nil {
		v["email"] = "invalid email address"
	}
	if !role.Valid() {
		v["role"] = "unknown role"
	}
	return v
}

func (s *UserHandler) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if v := validateIdentity(in.Username, in.Email, in.Role); len(v) > 0 {
		return nil, apperr.Fields(v)
	}

	pwHash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: pwHash,
		Role:         in.Role,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict(nil, "username or email already in use")
		}
		return nil, apperr.Storage(err, "create user")
	}

	s.log.Info("user created", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return &user, nil
}

// Authenticate checks credentials of an active user and returns the identity
// to pass to ledger operations. Unknown users, inactive users and wrong
// passwords all fail the same way.
func (s *UserHandler) Authenticate(ctx context.Context, username, password string) (permissions.Caller, error) {
	invalid := apperr.Validation(apperr.ErrInvalidCredentials, "invalid username or password")
	if username == "" || password == "" {
		return permissions.Caller{}, invalid
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("username = ? AND is_active = ?", username, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return permissions.Caller{}, invalid
	}
	if err != nil {
		return permissions.Caller{}, apperr.Storage(err, "load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Info("failed login", zap.String("username", username))
		return permissions.Caller{}, invalid
	}

	now := s.now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		s.log.Warn("failed to record last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return user.Caller(), nil
}

func (s *UserHandler) GetUser(ctx context.Context, id int64) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, apperr.FromDB(err, fmt.Sprintf("user %d", id))
	}
	return &user, nil
}

func (s *UserHandler) ListUsers(ctx context.Context, activeOnly bool) []models.User {
	query := s.db.WithContext(ctx).Order("username ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		s.log.Warn("list users failed", zap.Error(err))
		return []models.User{}
	}
	return users
}

func (s *UserHandler) ListUsersByRole(ctx context.Context, role permissions.Role) []models.User {
	var users []models.User
	err := s.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", role, true).
		Order("username ASC").
		Find(&users).Error
	if err != nil {
		s.log.Warn("list users by role failed", zap.String("role", string(role)), zap.Error(err))
		return []models.User{}
	}
	return users
}

// UpdateUserInput holds optional changes; nil fields are left alone.
type UpdateUserInput struct {
	Username *string           `json:"username"`
	Email    *string           `json:"email"`
	Role     *permissions.Role `json:"role"`
	IsActive *bool             `json:"is_active"`
}

func (s *UserHandler) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (*models.User, error) {
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Username != nil {
		user.Username = strings.TrimSpace(*in.Username)
	}
	if in.Email != nil {
		user.Email = strings.TrimSpace(*in.Email)
	}
	if in.Role != nil {
		user.Role = *in.Role
	}
	if in.IsActive != nil {
		user.IsActive = *in.IsActive
	}
	if v := validateIdentity(user.Username, user.Email, user.Role); len(v) > 0 {
		return nil, apperr.Fields(v)
	}

	err = s.db.WithContext(ctx).Model(user).
		Select("username", "email", "role", "is_active").
		Updates(user).Error
	if err != nil {
		if apperr.IsUniqueViolation(err) {
			return nil, apperr.Conflict(nil, "username or email already in use")
		}
		return nil, apperr.Storage(err, "update user")
	}
	return user, nil
}

func (s *UserHandler) ResetPassword(ctx context.Context, id int64, password string) error {
	pwHash, err := s.hash(password)
	if err != nil {
		return err
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("password_hash", pwHash)
	if res.Error != nil {
		return apperr.Storage(res.Error, "reset password")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user %d not found", id)
	}
	return nil
}

// DeactivateUser keeps the account for audit trails but blocks logins.
func (s *UserHandler) DeactivateUser(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return apperr.Storage(res.Error, "deactivate user")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user %d not found", id)
	}
	return nil
}

func (s *UserHandler) DeleteUser(ctx context.Context, id int64) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return apperr.Storage(res.Error, "delete user")
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("user %d not found", id)
	}
	return nil
}

// EnsureAdmin creates the initial administrator when no user exists yet.
func (s *UserHandler) EnsureAdmin(ctx context.Context, username, email, password string) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return false, apperr.Storage(err, "count users")
	}
	if n > 0 {
		return false, nil
	}
	_, err := s.CreateUser(ctx, CreateUserInput{
		Username: username,
		Email:    email,
		Password: password,
		Role:     permissions.RoleAdmin,
	})
	return err == nil, err
}
