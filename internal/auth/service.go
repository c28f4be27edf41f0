package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"property-marketplace/internal/config"
	"property-marketplace/internal/database"
	"property-marketplace/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidResetToken  = errors.New("reset token is invalid or expired")
	ErrWeakPassword       = errors.New("password is too short")
)

// SignUpRequest is a new account
type SignUpRequest struct {
	Name     string          `json:"name" binding:"required,max=255"`
	Email    string          `json:"email" binding:"required,email"`
	Password string          `json:"password" binding:"required"`
	Phone    string          `json:"phone" binding:"max=50"`
	Location string          `json:"location" binding:"max=255"`
	Type     models.UserType `json:"type" binding:"required,oneof=agent buyer seller"`
	Company  *string         `json:"company"`
}

// Session is returned on sign-up and sign-in
type Session struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Service handles accounts and sessions
type Service struct {
	store     database.Store
	cfg       config.AuthConfig
	resets    ResetStore
	mailer    Sender
	bootstrap map[string]bool
}

func NewService(store database.Store, cfg config.AuthConfig, bootstrapEmails []string, resets ResetStore, mailer Sender) *Service {
	bootstrap := make(map[string]bool, len(bootstrapEmails))
	for _, email := range bootstrapEmails {
		bootstrap[normalizeEmail(email)] = true
	}
	if resets == nil {
		resets = NewMemoryResetStore()
	}
	if mailer == nil {
		mailer = LogSender{}
	}
	return &Service{store: store, cfg: cfg, resets: resets, mailer: mailer, bootstrap: bootstrap}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *Service) checkPassword(password string) error {
	if len(password) < s.cfg.MinPasswordLength {
		return fmt.Errorf("%w: at least %d characters required", ErrWeakPassword, s.cfg.MinPasswordLength)
	}
	return nil
}

// SignUp creates the account and opens a session
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*Session, error) {
	if err := s.checkPassword(req.Password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hash,
		Phone:        req.Phone,
		Location:     req.Location,
		Type:         req.Type,
		Company:      req.Company,
	}

	err = s.store.WithinTx(ctx, func(tx database.Store) error {
		if err := tx.CreateUser(ctx, user); err != nil {
			if errors.Is(err, database.ErrDuplicate) {
				return ErrEmailTaken
			}
			return err
		}
		if !s.bootstrap[user.Email] {
			return nil
		}
		log.Printf("[Auth] Granting bootstrap admin to %s", user.Email)
		return tx.CreateAdminApplication(ctx, &models.AdminApplication{
			UserID: user.ID,
			Reason: "bootstrap admin",
			Status: models.SubmissionStatusApproved,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[Auth] New %s account %s", user.Type, user.ID)
	return s.session(user)
}

// SignIn checks the credentials and opens a session
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !CheckPasswordHash(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return s.session(user)
}

func (s *Service) session(user *models.User) (*Session, error) {
	token, err := GenerateJWT(user.ID, user.Email, s.cfg.JWTSecret, s.cfg.GetTokenTTL())
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, User: user}, nil
}

// Authenticate validates a session token and returns its claims
func (s *Service) Authenticate(token string) (*Claims, error) {
	return ValidateJWT(token, s.cfg.JWTSecret)
}

// Me returns the signed-in user
func (s *Service) Me(ctx context.Context, userID string) (*models.User, error) {
	return s.store.GetUser(ctx, userID)
}

// ForgotPassword issues a reset token. Unknown emails succeed silently.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			log.Printf("[Auth] Password reset requested for unknown email")
			return nil
		}
		return err
	}

	token, err := newResetToken()
	if err != nil {
		return err
	}
	if err := s.resets.Save(ctx, token, user.ID, s.cfg.GetResetTokenTTL()); err != nil {
		return err
	}

	link := fmt.Sprintf("%s?token=%s", s.cfg.ResetURLBase, token)
	body := fmt.Sprintf("Use this link to reset your password: %s\nIt expires in %d minutes.", link, s.cfg.ResetTokenTTLMins)
	if err := s.mailer.Send(ctx, user.Email, "Reset your password", body); err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	return nil
}

// ResetPassword sets a new password using a reset token
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if err := s.checkPassword(newPassword); err != nil {
		return err
	}
	userID, err := s.resets.Consume(ctx, token)
	if err != nil {
		return err
	}
	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdateUserPassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	log.Printf("[Auth] Password reset for user %s", userID)
	return nil
}

func newResetToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate reset token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
