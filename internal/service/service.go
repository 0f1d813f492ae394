package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/olatech/account-service/internal/config"
	"github.com/olatech/account-service/internal/models"
	"github.com/olatech/account-service/internal/repository"
	"github.com/olatech/account-service/internal/token"
	"github.com/olatech/account-service/internal/utils/email"
	"github.com/olatech/account-service/internal/utils/password"
)

// UserStore is the credential store the lifecycle runs against
type UserStore interface {
	CreateUser(user *models.User) error
	FindUserByEmail(email string) (*models.User, error)
	FindUserByUsername(username string) (*models.User, error)
	FindUserByID(id string) (*models.User, error)
	SetVerified(id string) error
	SetPasswordHash(id, hash string) error
	SetAdmin(id string) error
}

// Mailer builds outbound notification messages
type Mailer interface {
	VerificationMessage(to, firstName, link string) (email.Message, error)
	PasswordResetMessage(to, firstName, link string) (email.Message, error)
}

// MailQueue accepts messages for asynchronous delivery
type MailQueue interface {
	Enqueue(msg email.Message)
}

// Service handles the account lifecycle
type Service struct {
	store  UserStore
	tokens *token.Service
	mailer Mailer
	queue  MailQueue
	log    *logrus.Logger
	config *config.Config
}

// NewService initializes a new service
func NewService(store UserStore, tokens *token.Service, mailer Mailer, queue MailQueue, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{store: store, tokens: tokens, mailer: mailer, queue: queue, log: log, config: cfg}
}

// RegisterInput carries the registration form fields
type RegisterInput struct {
	FullName        string
	Email           string
	Username        string
	Password        string
	ConfirmPassword string
	Gender          string
}

// Register creates an unverified account and queues a verification email
func (s *Service) Register(in RegisterInput) (*models.User, error) {
	if in.FullName == "" || in.Email == "" || in.Username == "" ||
		in.Password == "" || in.ConfirmPassword == "" || in.Gender == "" {
		return nil, ErrMissingFields
	}
	if in.Password != in.ConfirmPassword {
		return nil, ErrPasswordMismatch
	}

	if _, err := s.store.FindUserByEmail(in.Email); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if _, err := s.store.FindUserByUsername(in.Username); err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := password.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		ID:           uuid.NewString(),
		FullName:     in.FullName,
		Email:        in.Email,
		Username:     in.Username,
		PasswordHash: hash,
		Gender:       in.Gender,
	}

	// The unique indexes on the users table catch the race between the
	// existence checks above and this insert.
	if err := s.store.CreateUser(user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrAccountExists
		}
		return nil, err
	}

	if err := s.sendVerification(user); err != nil {
		return nil, err
	}

	s.log.Infof("User registered: %s", user.Email)
	return user, nil
}

// VerifyAccount transitions an account to verified. An expired link triggers
// a resend with a fresh token; an invalid link is rejected outright.
func (s *Service) VerifyAccount(raw string) error {
	if raw == "" {
		return ErrTokenNotFound
	}

	claims, err := s.tokens.Verify(raw, token.PurposeVerify)
	switch {
	case errors.Is(err, token.ErrExpired):
		return s.resendAfterExpiry(claims.UserID)
	case err != nil:
		return ErrTokenNotFound
	}

	user, err := s.store.FindUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if err := s.store.SetVerified(user.ID); err != nil {
		return err
	}
	s.log.Infof("Account verified: %s", user.Email)
	return nil
}

func (s *Service) resendAfterExpiry(userID string) error {
	user, err := s.store.FindUserByID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}
	if err := s.sendVerification(user); err != nil {
		return err
	}
	return ErrVerificationResent
}

// LoginInput carries the login form fields; either Email or Username is used
type LoginInput struct {
	Email    string
	Username string
	Password string
}

// Login authenticates a verified user and returns a session token
func (s *Service) Login(in LoginInput) (*models.User, string, error) {
	if in.Email == "" && in.Username == "" {
		return nil, "", ErrMissingFields
	}
	if in.Password == "" {
		return nil, "", ErrMissingFields
	}

	var (
		user *models.User
		err  error
	)
	if in.Email != "" {
		user, err = s.store.FindUserByEmail(in.Email)
	} else {
		user, err = s.store.FindUserByUsername(in.Username)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}

	if !password.Verify(in.Password, user.PasswordHash) {
		return nil, "", ErrIncorrectPassword
	}
	if !user.IsVerified {
		return nil, "", ErrNotVerified
	}

	session, err := s.tokens.Issue(user.ID, token.PurposeSession, user.IsAdmin, s.config.SessionTokenTTL)
	if err != nil {
		return nil, "", err
	}

	s.log.Infof("User logged in: %s", user.Email)
	return user, session, nil
}

// ForgotPassword queues a reset email when the account exists. The result is
// identical either way so the endpoint cannot be used to probe for accounts.
func (s *Service) ForgotPassword(emailAddr string) error {
	if emailAddr == "" {
		return ErrMissingFields
	}

	user, err := s.store.FindUserByEmail(emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Infof("Password reset requested for unknown email: %s", emailAddr)
			return nil
		}
		return err
	}

	reset, err := s.tokens.Issue(user.ID, token.PurposeReset, false, s.config.ResetTokenTTL)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/reset-password/%s", s.config.BaseURL, reset)
	msg, err := s.mailer.PasswordResetMessage(user.Email, user.FirstName(), link)
	if err != nil {
		return err
	}
	s.queue.Enqueue(msg)

	s.log.Infof("Password reset initiated: %s", user.Email)
	return nil
}

// ResetPassword replaces the stored hash after verifying the reset token
func (s *Service) ResetPassword(raw, newPassword, confirmPassword string) error {
	if raw == "" {
		return ErrTokenNotFound
	}

	claims, err := s.tokens.Verify(raw, token.PurposeReset)
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrLinkExpired
	case err != nil:
		return ErrTokenNotFound
	}

	user, err := s.store.FindUserByID(claims.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return err
	}

	if newPassword == "" || confirmPassword == "" {
		return ErrMissingFields
	}
	if newPassword != confirmPassword {
		return ErrPasswordMismatch
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.SetPasswordHash(user.ID, hash); err != nil {
		return err
	}

	s.log.Infof("Password reset: %s", user.Email)
	return nil
}

// ResendVerification queues a fresh verification email. Like ForgotPassword
// the outcome does not reveal whether the address is registered.
func (s *Service) ResendVerification(emailAddr string) error {
	if emailAddr == "" {
		return ErrMissingFields
	}

	user, err := s.store.FindUserByEmail(emailAddr)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Infof("Verification resend requested for unknown email: %s", emailAddr)
			return nil
		}
		return err
	}
	if user.IsVerified {
		return ErrAlreadyVerified
	}

	if err := s.sendVerification(user); err != nil {
		return err
	}
	return nil
}

// MakeAdmin promotes the user. Authentication is the caller's concern; the
// admin route is gated by middleware.
func (s *Service) MakeAdmin(id string) (*models.User, error) {
	user, err := s.store.FindUserByID(id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if err := s.store.SetAdmin(user.ID); err != nil {
		return nil, err
	}
	user.IsAdmin = true

	s.log.Infof("User promoted to admin: %s", user.Email)
	return user, nil
}

func (s *Service) sendVerification(user *models.User) error {
	verify, err := s.tokens.Issue(user.ID, token.PurposeVerify, false, s.config.VerifyTokenTTL)
	if err != nil {
		return err
	}
	link := fmt.Sprintf("%s/verify-account/%s", s.config.BaseURL, verify)
	msg, err := s.mailer.VerificationMessage(user.Email, user.FirstName(), link)
	if err != nil {
		return err
	}
	s.queue.Enqueue(msg)
	return nil
}
