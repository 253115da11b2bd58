package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"
	"points-ledger/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	users    ports.UserRepository
	wallets  ports.TransferService
	hashSvc  ports.HashService
	tokenSvc ports.TokenService
	ids      ports.IDGenerator
	audit    ports.AuditService
	log      zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl. audit may be nil.
func NewAuthService(
	users ports.UserRepository,
	wallets ports.TransferService,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	ids ports.IDGenerator,
	audit ports.AuditService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		users:    users,
		wallets:  wallets,
		hashSvc:  hashSvc,
		tokenSvc: tokenSvc,
		ids:      ids,
		audit:    audit,
		log:      log,
	}
}

// Register creates a user and opens their funded wallet.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		return nil, apperror.Validation("username and password are required")
	}

	existing, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check username: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	user := &domain.User{
		ID:           s.ids.NewID(),
		Username:     username,
		PasswordHash: passwordHash,
		FullName:     req.FullName,
		Email:        req.Email,
		Phone:        req.Phone,
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if _, ok := apperror.As(err); ok {
			return nil, err
		}
		return nil, apperror.InternalError(fmt.Errorf("create user: %w", err))
	}

	wallet, err := s.wallets.OpenWallet(ctx, user.ID)
	if err != nil {
		// The wallet unit rolled back; drop the user so the name can be retried.
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("user_id", user.ID).Msg("failed to remove user after wallet failure")
		}
		return nil, err
	}

	s.log.Info().Str("user_id", user.ID).Str("wallet_id", wallet.ID).Msg("user registered")
	if s.audit != nil {
		s.audit.Log(ctx, &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      user.ID,
			Action:       domain.AuditActionRegister,
			ResourceType: "user",
			ResourceID:   user.ID,
			CreatedAt:    user.CreatedAt,
		})
	}

	return &ports.RegisterResponse{
		UserID:   user.ID,
		WalletID: wallet.ID,
		Balance:  wallet.Balance,
	}, nil
}

// Login validates credentials and returns a JWT token.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("find user: %w", err))
	}
	if user == nil || user.Role == domain.RoleSystem {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	valid, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !valid {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(user.ID, user.Role)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	if s.audit != nil {
		s.audit.Log(ctx, &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      user.ID,
			Action:       domain.AuditActionLogin,
			ResourceType: "user",
			ResourceID:   user.ID,
			CreatedAt:    time.Now().UTC(),
		})
	}
	return token, expiry, nil
}
