package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Bright-River-CGI/lifestyle-app/internal/clock"
	"github.com/Bright-River-CGI/lifestyle-app/internal/metrics"
	"github.com/Bright-River-CGI/lifestyle-app/internal/models"
	"github.com/Bright-River-CGI/lifestyle-app/internal/redis"
	"github.com/Bright-River-CGI/lifestyle-app/internal/repository"
	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// SessionStore keeps bearer tokens. *redis.Client satisfies it.
type SessionStore interface {
	SetSession(ctx context.Context, token string, data *redis.SessionData, ttl time.Duration) error
	GetSession(ctx context.Context, token string) (*redis.SessionData, error)
	DeleteSession(ctx context.Context, token string) error
}

type Session struct {
	Token     string       `json:"token"`
	User      *models.User `json:"user"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// UserService is the identity provider: it turns credentials into a session
// and a bearer token back into an Identity.
type UserService interface {
	Login(ctx context.Context, email, password string) (*Session, error)
	Resolve(ctx context.Context, token string) (Identity, error)
	Logout(ctx context.Context, token string) error
	SeedEmployee(ctx context.Context, email, password string) (*models.User, error)
}

// UserServiceParams configures NewUserService. StaffDomain is the email domain
// whose self-provisioned accounts become employees; empty means every
// self-provisioned account is a client.
type UserServiceParams struct {
	Users       repository.UserRepository
	Sessions    SessionStore
	IDs         IDGenerator
	Clock       clock.Clock
	Metrics     *metrics.OrderMetrics
	Logger      *zap.Logger
	SessionTTL  time.Duration
	StaffDomain string
}

type userService struct {
	users       repository.UserRepository
	sessions    SessionStore
	ids         IDGenerator
	clock       clock.Clock
	metrics     *metrics.OrderMetrics
	log         *zap.Logger
	sessionTTL  time.Duration
	staffDomain string
}

func NewUserService(p UserServiceParams) UserService {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	log := p.Logger
	if log == nil {
		log = zap.NewNop()
	}
	sessionTTL := p.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	return &userService{
		users:       p.Users,
		sessions:    p.Sessions,
		ids:         p.IDs,
		clock:       clk,
		metrics:     p.Metrics,
		log:         log.Named("users"),
		sessionTTL:  sessionTTL,
		staffDomain: normalizeEmail(strings.TrimPrefix(strings.TrimSpace(p.StaffDomain), "@")),
	}
}

// Login checks the password of a known user. An unknown email is provisioned
// on first sight as a client, or as an employee when it belongs to the staff
// domain.
func (s *userService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	verr := &ValidationError{}
	if !strings.Contains(email, "@") {
		verr.add("email", "invalid_email", "a valid email is required")
	}
	validatePassword(verr, password)
	if err := verr.orNil(); err != nil {
		s.metrics.Login(metrics.OutcomeValidation)
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		user, err = s.provision(ctx, email, password, s.roleForEmail(email))
		if err != nil {
			// A concurrent first login may have created the account.
			existing, lookupErr := s.users.GetByEmail(ctx, email)
			if lookupErr != nil {
				s.metrics.Login(metrics.OutcomeError)
				return nil, err
			}
			if err := s.checkPassword(existing, password); err != nil {
				return nil, err
			}
			user = existing
		}
	case err != nil:
		s.metrics.Login(metrics.OutcomeError)
		return nil, fmt.Errorf("get user: %w", err)
	default:
		if err := s.checkPassword(user, password); err != nil {
			return nil, err
		}
	}

	now := s.clock.Now()
	token := uuid.NewString()
	data := &redis.SessionData{
		UserID:    user.ID.String(),
		Email:     user.Email,
		Name:      user.Name,
		Role:      string(user.Role),
		CreatedAt: now,
	}
	if err := s.sessions.SetSession(ctx, token, data, s.sessionTTL); err != nil {
		s.metrics.Login(metrics.OutcomeError)
		return nil, fmt.Errorf("store session: %w", err)
	}

	s.metrics.Login(metrics.OutcomeOK)
	s.log.Info("user logged in", zap.String("user_id", user.ID.String()), zap.String("role", string(user.Role)))
	return &Session{Token: token, User: user, ExpiresAt: now.Add(s.sessionTTL)}, nil
}

func (s *userService) checkPassword(user *models.User, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.metrics.Login(metrics.OutcomeUnauthorized)
		s.log.Info("login rejected", zap.String("email", user.Email))
		return fmt.Errorf("%w: invalid credentials", ErrUnauthenticated)
	}
	return nil
}

func (s *userService) Resolve(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, fmt.Errorf("%w: missing token", ErrUnauthenticated)
	}

	data, err := s.sessions.GetSession(ctx, token)
	if err != nil {
		if errors.Is(err, redis.ErrSessionNotFound) {
			return Identity{}, fmt.Errorf("%w: unknown or expired session", ErrUnauthenticated)
		}
		return Identity{}, fmt.Errorf("get session: %w", err)
	}

	id, err := snowflake.ParseString(data.UserID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: malformed session", ErrUnauthenticated)
	}
	role := models.UserRole(data.Role)
	if !role.Valid() {
		return Identity{}, fmt.Errorf("%w: malformed session", ErrUnauthenticated)
	}
	return Identity{UserID: id, Name: data.Name, Email: data.Email, Role: role}, nil
}

func (s *userService) Logout(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteSession(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// SeedEmployee makes sure a staff account exists. An existing account is
// returned untouched.
func (s *userService) SeedEmployee(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	if !strings.Contains(email, "@") || password == "" {
		return nil, newValidationError("email", "required", "seed employee needs an email and a password")
	}
	verr := &ValidationError{}
	validatePassword(verr, password)
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return s.provision(ctx, email, password, models.RoleEmployee)
}

func (s *userService) provision(ctx context.Context, email, password string, role models.UserRole) (*models.User, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, newValidationError("password", "too_long", "password must be at most 72 bytes")
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.clock.Now()
	user := &models.User{
		ID:           s.ids.Generate(),
		Email:        email,
		Name:         displayNameFromEmail(email),
		Role:         role,
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.log.Info("user provisioned", zap.String("user_id", user.ID.String()), zap.String("role", string(role)))
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// bcrypt only reads the first 72 bytes of a password.
const maxPasswordBytes = 72

func validatePassword(verr *ValidationError, password string) {
	switch {
	case password == "":
		verr.add("password", "required", "password is required")
	case len(password) > maxPasswordBytes:
		verr.add("password", "too_long", "password must be at most 72 bytes")
	}
}

func (s *userService) roleForEmail(email string) models.UserRole {
	_, domain, _ := strings.Cut(email, "@")
	if s.staffDomain != "" && domain == s.staffDomain {
		return models.RoleEmployee
	}
	return models.RoleClient
}

// displayNameFromEmail turns "anna.berg@studio.test" into "Anna Berg".
func displayNameFromEmail(email string) string {
	local, _, _ := strings.Cut(email, "@")
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-' || r == '+'
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	if len(words) == 0 {
		return email
	}
	return strings.Join(words, " ")
}
