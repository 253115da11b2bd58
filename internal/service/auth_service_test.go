package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"points-ledger/internal/adapter/storage/memory"
	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"
	"points-ledger/internal/core/ports/mocks"
	"points-ledger/pkg/apperror"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type authTestDeps struct {
	svc      *AuthServiceImpl
	users    *mocks.MockUserRepository
	wallets  *mocks.MockTransferService
	hashSvc  *mocks.MockHashService
	tokenSvc *mocks.MockTokenService
	audit    *mocks.MockAuditService
}

func setupAuthService(t *testing.T) *authTestDeps {
	ctrl := gomock.NewController(t)
	d := &authTestDeps{
		users:    mocks.NewMockUserRepository(ctrl),
		wallets:  mocks.NewMockTransferService(ctrl),
		hashSvc:  mocks.NewMockHashService(ctrl),
		tokenSvc: mocks.NewMockTokenService(ctrl),
		audit:    mocks.NewMockAuditService(ctrl),
	}
	d.svc = NewAuthService(d.users, d.wallets, d.hashSvc, d.tokenSvc, &seqIDs{}, d.audit, zerolog.Nop())
	return d
}

func TestAuthService_Register_Success(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	req := ports.RegisterRequest{
		Username: "alice",
		Password: "StrongP@ss123",
		FullName: "Alice",
		Email:    "alice@example.com",
	}

	d.users.EXPECT().GetByUsername(ctx, "alice").Return(nil, nil)
	d.hashSvc.EXPECT().Hash(req.Password).Return("$argon2id$hashed", nil)
	d.users.EXPECT().Create(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, u *domain.User) error {
		assert.Equal(t, "id-1", u.ID)
		assert.Equal(t, "$argon2id$hashed", u.PasswordHash)
		assert.Equal(t, domain.RoleUser, u.Role)
		return nil
	})
	d.wallets.EXPECT().OpenWallet(ctx, "id-1").Return(&domain.Wallet{ID: "wallet-1", OwnerID: "id-1", Balance: dec(100)}, nil)
	d.audit.EXPECT().Log(ctx, gomock.Any())

	resp, err := d.svc.Register(ctx, req)

	require.NoError(t, err)
	assert.Equal(t, "id-1", resp.UserID)
	assert.Equal(t, "wallet-1", resp.WalletID)
	assert.True(t, resp.Balance.Equal(dec(100)))
}

func TestAuthService_Register_DuplicateUsername(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.users.EXPECT().GetByUsername(ctx, "alice").Return(&domain.User{ID: "existing"}, nil)

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "alice", Password: "pw"})

	assertCode(t, err, "AUTH_005")
}

func TestAuthService_Register_CreateRace(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.users.EXPECT().GetByUsername(ctx, "alice").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("pw").Return("hash", nil)
	d.users.EXPECT().Create(ctx, gomock.Any()).Return(apperror.ErrUsernameExists())

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "alice", Password: "pw"})

	assertCode(t, err, "AUTH_005")
}

func TestAuthService_Register_MissingFields(t *testing.T) {
	d := setupAuthService(t)

	_, err := d.svc.Register(context.Background(), ports.RegisterRequest{Username: "  ", Password: "pw"})

	assertCode(t, err, "VAL_001")
}

func TestAuthService_Register_WalletFailure(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.users.EXPECT().GetByUsername(ctx, "alice").Return(nil, nil)
	d.hashSvc.EXPECT().Hash("pw").Return("hash", nil)
	d.users.EXPECT().Create(ctx, gomock.Any()).Return(nil)
	d.wallets.EXPECT().OpenWallet(ctx, "id-1").Return(nil, apperror.ErrMasterSupplyExhausted())
	d.users.EXPECT().Delete(ctx, "id-1").Return(nil)

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "alice", Password: "pw"})

	assertCode(t, err, "STATE_004")
}

func TestAuthService_Register_RetryAfterWalletFailure(t *testing.T) {
	failNext := false
	h := newHarness(t, harnessConfig{initial: 100, storeOpts: []memory.Option{
		memory.WithFault(func(op string) error {
			if op == "open_wallet" && failNext {
				failNext = false
				return errors.New("disk full")
			}
			return nil
		}),
	}})
	auth := NewAuthService(h.users, h.svc, NewArgon2HashServiceWithParams(cheapArgon2),
		NewJWTTokenService("secret", time.Hour, "points-ledger"), NewUUIDGenerator(), nil, zerolog.Nop())
	failNext = true
	ctx := context.Background()

	_, err := auth.Register(ctx, ports.RegisterRequest{Username: "carol", Password: "pw", Email: "carol@example.com"})
	require.Error(t, err)
	u, err := h.users.GetByUsername(ctx, "carol")
	require.NoError(t, err)
	assert.Nil(t, u)

	res, err := auth.Register(ctx, ports.RegisterRequest{Username: "carol", Password: "pw", Email: "carol@example.com"})
	require.NoError(t, err)
	assert.True(t, res.Balance.Equal(dec(100)))
	h.requireConserved(t)
}

func TestAuthService_Register_RepoError(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()

	d.users.EXPECT().GetByUsername(ctx, "alice").Return(nil, errors.New("db down"))

	_, err := d.svc.Register(ctx, ports.RegisterRequest{Username: "alice", Password: "pw"})

	assertCode(t, err, "SYS_001")
}

func TestAuthService_Login_Success(t *testing.T) {
	d := setupAuthService(t)
	ctx := context.Background()
	expiry := time.Now().Add(time.Hour)

	d.users.EXPECT().GetByUsername(ctx, "alice").Return(&domain.User{ID: "user-1", PasswordHash: "hash", Role: domain.RoleUser}, nil)
	d.hashSvc.EXPECT().Verify("pw", "hash").Return(true, nil)
	d.tokenSvc.EXPECT().Generate("user-1", domain.RoleUser).Return("jwt-token", expiry, nil)
	d.audit.EXPECT().Log(ctx, gomock.Any())

	token, exp, err := d.svc.Login(ctx, "alice", "pw")

	require.NoError(t, err)
	assert.Equal(t, "jwt-token", token)
	assert.Equal(t, expiry, exp)
}

func TestAuthService_Login_Failures(t *testing.T) {
	tests := []struct {
		name   string
		expect func(d *authTestDeps)
		code   string
	}{
		{"unknown user", func(d *authTestDeps) {
			d.users.EXPECT().GetByUsername(gomock.Any(), "alice").Return(nil, nil)
		}, "AUTH_002"},
		{"system user", func(d *authTestDeps) {
			d.users.EXPECT().GetByUsername(gomock.Any(), "alice").Return(&domain.User{ID: "SYSTEM", Role: domain.RoleSystem}, nil)
		}, "AUTH_002"},
		{"wrong password", func(d *authTestDeps) {
			d.users.EXPECT().GetByUsername(gomock.Any(), "alice").Return(&domain.User{ID: "u", PasswordHash: "hash"}, nil)
			d.hashSvc.EXPECT().Verify("pw", "hash").Return(false, nil)
		}, "AUTH_002"},
		{"corrupt hash", func(d *authTestDeps) {
			d.users.EXPECT().GetByUsername(gomock.Any(), "alice").Return(&domain.User{ID: "u", PasswordHash: "bad"}, nil)
			d.hashSvc.EXPECT().Verify("pw", "bad").Return(false, errors.New("invalid hash format"))
		}, "SYS_001"},
		{"token failure", func(d *authTestDeps) {
			d.users.EXPECT().GetByUsername(gomock.Any(), "alice").Return(&domain.User{ID: "u", PasswordHash: "hash", Role: domain.RoleUser}, nil)
			d.hashSvc.EXPECT().Verify("pw", "hash").Return(true, nil)
			d.tokenSvc.EXPECT().Generate("u", domain.RoleUser).Return("", time.Time{}, errors.New("sign"))
		}, "SYS_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupAuthService(t)
			tt.expect(d)

			_, _, err := d.svc.Login(context.Background(), "alice", "pw")

			assertCode(t, err, tt.code)
		})
	}
}
