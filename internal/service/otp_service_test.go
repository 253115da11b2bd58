package service

import (
	"bytes"
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"points-ledger/internal/adapter/storage/memory"
	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports/mocks"
	"points-ledger/pkg/apperror"
	"points-ledger/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type testClock struct{ t time.Time }

func (c *testClock) Now() time.Time          { return c.t }
func (c *testClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newMemoryOTP(t *testing.T, clock *testClock) (*OTPService, *mocks.MockOTPSender) {
	t.Helper()
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockOTPSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	svc := NewOTPService(memory.NewOTPStore(clock.Now), sender, nil, 0, 0, zerolog.Nop())
	svc.now = clock.Now
	return svc, sender
}

func TestOTPService_GenerateFormat(t *testing.T) {
	svc, _ := newMemoryOTP(t, &testClock{t: time.Now()})

	for i := 0; i < 200; i++ {
		code, err := svc.Generate(context.Background(), "user-1", domain.OTPPurposeTransfer)
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestOTPService_SingleUse(t *testing.T) {
	svc, _ := newMemoryOTP(t, &testClock{t: time.Now()})
	ctx := context.Background()

	code, err := svc.Generate(ctx, "user-1", domain.OTPPurposeTransfer)
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "user-1", code, domain.OTPPurposeTransfer)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Verify(ctx, "user-1", code, domain.OTPPurposeTransfer)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPService_Expiry(t *testing.T) {
	clock := &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	svc, _ := newMemoryOTP(t, clock)
	ctx := context.Background()

	code, err := svc.Generate(ctx, "user-1", domain.OTPPurposeTransfer)
	require.NoError(t, err)

	clock.Advance(5*time.Minute + time.Second)

	ok, err := svc.Verify(ctx, "user-1", code, domain.OTPPurposeTransfer)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPService_WrongCodeKeepsLiveCode(t *testing.T) {
	svc, _ := newMemoryOTP(t, &testClock{t: time.Now()})
	ctx := context.Background()

	code, err := svc.Generate(ctx, "user-1", domain.OTPPurposeTransfer)
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	ok, _ := svc.Verify(ctx, "user-1", wrong, domain.OTPPurposeTransfer)
	assert.False(t, ok)
	ok, _ = svc.Verify(ctx, "user-1", code, domain.OTPPurposeProfileUpdate)
	assert.False(t, ok)
	ok, _ = svc.Verify(ctx, "user-1", code, domain.OTPPurposeTransfer)
	assert.True(t, ok)
}

func TestOTPService_EmptyCode(t *testing.T) {
	svc, _ := newMemoryOTP(t, &testClock{t: time.Now()})
	ok, err := svc.Verify(context.Background(), "user-1", "", domain.OTPPurposeTransfer)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPService_UnknownPurpose(t *testing.T) {
	svc, _ := newMemoryOTP(t, &testClock{t: time.Now()})

	_, err := svc.Generate(context.Background(), "user-1", domain.OTPPurpose("withdraw"))
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))

	_, err = svc.Verify(context.Background(), "user-1", "123456", domain.OTPPurpose("withdraw"))
	assert.Equal(t, apperror.KindValidation, apperror.KindOf(err))
}

func TestOTPService_SendsNoticeWithContact(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockOTPStore(ctrl)
	sender := mocks.NewMockOTPSender(ctrl)
	users := mocks.NewMockUserRepository(ctrl)
	svc := NewOTPService(store, sender, users, 2*time.Minute, 8, zerolog.Nop())
	ctx := context.Background()

	store.EXPECT().Save(ctx, "user-1", domain.OTPPurposeTransfer, gomock.Any(), 2*time.Minute).Return(nil)
	users.EXPECT().GetByID(ctx, "user-1").Return(&domain.User{ID: "user-1", Email: "a@example.com"}, nil)
	sender.EXPECT().Send(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, n domain.OTPNotice) error {
		assert.Equal(t, "a@example.com", n.Contact)
		assert.Len(t, n.Code, 8)
		return nil
	})

	code, err := svc.Generate(ctx, "user-1", domain.OTPPurposeTransfer)
	require.NoError(t, err)
	assert.Len(t, code, 8)
}

func TestOTPService_StoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockOTPStore(ctrl)
	svc := NewOTPService(store, mocks.NewMockOTPSender(ctrl), nil, 0, 0, zerolog.Nop())
	ctx := context.Background()

	store.EXPECT().Save(ctx, "user-1", domain.OTPPurposeTransfer, gomock.Any(), domain.DefaultOTPTTL).Return(errors.New("redis down"))
	_, err := svc.Generate(ctx, "user-1", domain.OTPPurposeTransfer)
	assert.Equal(t, apperror.KindPersistence, apperror.KindOf(err))

	store.EXPECT().Consume(ctx, "user-1", domain.OTPPurposeTransfer, "123456").Return(false, errors.New("redis down"))
	_, err = svc.Verify(ctx, "user-1", "123456", domain.OTPPurposeTransfer)
	assert.Equal(t, apperror.KindPersistence, apperror.KindOf(err))
}

func TestOTPService_DeliveryFailureKeepsCode(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockOTPSender(ctrl)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("smtp down"))
	svc := NewOTPService(memory.NewOTPStore(nil), sender, nil, 0, 0, zerolog.Nop())
	ctx := context.Background()

	code, err := svc.Generate(ctx, "user-1", domain.OTPPurposeTransfer)
	require.NoError(t, err)

	ok, err := svc.Verify(ctx, "user-1", code, domain.OTPPurposeTransfer)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLogSender_Send(t *testing.T) {
	var buf bytes.Buffer
	sender := NewLogSender(logger.NewWithWriter("info", &buf))

	err := sender.Send(context.Background(), domain.OTPNotice{
		SubjectID: "user-1",
		Code:      "123456",
		Purpose:   domain.OTPPurposeTransfer,
		ExpiresAt: time.Now().Add(time.Minute),
	})

	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"code":"123456"`)
	assert.Contains(t, buf.String(), "otp issued")
}
