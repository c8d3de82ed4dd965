package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/simauction/internal/ids"
	"github.com/mmeshcher/simauction/internal/model"
	"github.com/mmeshcher/simauction/internal/repository"
	"github.com/mmeshcher/simauction/internal/validation"
)

const defaultPasswordCost = bcrypt.DefaultCost

const minPasswordLen = 6

// Register создаёт учётную запись участника с нулевым балансом.
func (s *Service) Register(ctx context.Context, login, password, fullName string) (*model.Account, error) {
	return s.createAccount(ctx, login, password, fullName, model.RoleUser)
}

func (s *Service) createAccount(ctx context.Context, login, password, fullName, role string) (*model.Account, error) {
	login = strings.TrimSpace(login)
	if login == "" {
		return nil, fmt.Errorf("%w: login is required", ErrValidation)
	}
	if len(password) < minPasswordLen {
		return nil, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, minPasswordLen)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	acc := &model.Account{
		ID:           ids.New(),
		Login:        login,
		FullName:     strings.TrimSpace(fullName),
		PasswordHash: hash,
		Role:         role,
		Balance:      decimal.Zero,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.CreateAccount(ctx, acc); err != nil {
		return nil, s.storageError("create account", err)
	}
	s.logger.Info("account created", zap.String("account_id", acc.ID), zap.String("role", role))
	return acc, nil
}

// Authenticate проверяет логин и пароль и возвращает учётную запись.
func (s *Service) Authenticate(ctx context.Context, login, password string) (*model.Account, error) {
	acc, err := s.repo.GetAccountByLogin(ctx, strings.TrimSpace(login))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, s.storageError("get account", err)
	}
	if err := bcrypt.CompareHashAndPassword(acc.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return acc, nil
}

// GetAccount возвращает учётную запись по идентификатору.
func (s *Service) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	acc, err := s.repo.GetAccount(ctx, id)
	if err != nil {
		return nil, s.storageError("get account", err)
	}
	return acc, nil
}

// ListAccounts возвращает учётные записи для администратора, новые первыми.
func (s *Service) ListAccounts(ctx context.Context, caller model.Caller, limit, offset int) ([]model.Account, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > model.MaxPageSize {
		limit = model.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	accounts, err := s.repo.ListAccounts(ctx, limit, offset)
	if err != nil {
		return nil, s.storageError("list accounts", err)
	}
	return accounts, nil
}

// AdjustBalance изменяет баланс участника на знаковую величину delta.
func (s *Service) AdjustBalance(ctx context.Context, caller model.Caller, accountID string, delta decimal.Decimal) (decimal.Decimal, error) {
	if err := requireAdmin(caller); err != nil {
		return decimal.Zero, err
	}
	if delta.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: delta must be non-zero", ErrValidation)
	}
	if err := validation.ValidateAmount(delta); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	balance, err := s.repo.AdjustBalance(ctx, accountID, delta)
	if err != nil {
		return decimal.Zero, s.storageError("adjust balance", err)
	}
	s.logger.Info("balance adjusted",
		zap.String("account_id", accountID),
		zap.String("delta", delta.StringFixed(2)),
		zap.String("balance", balance.StringFixed(2)),
	)
	return balance, nil
}

// EnsureAdmin создаёт учётную запись администратора, если логин ещё не занят.
func (s *Service) EnsureAdmin(ctx context.Context, login, password string) (*model.Account, error) {
	acc, err := s.repo.GetAccountByLogin(ctx, login)
	if err == nil {
		if acc.Role != model.RoleAdmin {
			s.logger.Error("admin login is taken by a non-admin account",
				zap.String("login", login), zap.String("role", acc.Role))
			return nil, fmt.Errorf("%w: %q has role %s", repository.ErrAccountExists, login, acc.Role)
		}
		return acc, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.storageError("get account", err)
	}
	return s.createAccount(ctx, login, password, "Administrator", model.RoleAdmin)
}
