package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"expensetracker/internal/core"
	"expensetracker/internal/storage"
)

const (
	minPasswordLength = 8
	maxPasswordBytes  = 72
)

// UserService registers users. Passwords are stored only as bcrypt hashes.
type UserService struct {
	users storage.UserRegistry
	cost  int
}

func NewUserService(users storage.UserRegistry, cost int) *UserService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &UserService{users: users, cost: cost}
}

type NewUser struct {
	Username string
	Email    string
	Password string
}

func (s *UserService) CreateUser(ctx context.Context, in NewUser) (core.User, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.ToLower(strings.TrimSpace(in.Email))

	var errs core.ValidationErrors
	if username == "" {
		errs = append(errs, core.NewValidationError("username", core.ErrEmptyName))
	}
	if _, err := mail.ParseAddress(email); err != nil || !strings.Contains(email, "@") {
		errs = append(errs, core.NewValidationError("email", core.ErrInvalidEmail))
	}
	switch {
	case len(in.Password) < minPasswordLength:
		errs = append(errs, core.NewValidationError("password", core.ErrPasswordTooShort))
	case len(in.Password) > maxPasswordBytes:
		errs = append(errs, core.NewValidationError("password", core.ErrPasswordTooLong))
	}
	if err := errs.OrNil(); err != nil {
		return core.User{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if err != nil {
		return core.User{}, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.users.CreateUser(ctx, core.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			slog.InfoContext(ctx, "User registration conflict", "username", username, "error", err)
			return core.User{}, err
		}
		return core.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func (s *UserService) GetUser(ctx context.Context, id int64) (core.User, error) {
	return s.users.GetUser(ctx, id)
}

