package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"points-ledger/internal/core/domain"
	"points-ledger/internal/core/ports"
	"points-ledger/pkg/apperror"

	"github.com/rs/zerolog"
)

const defaultOTPLength = 6

// OTPService implements ports.OTPAuthority on top of an OTPStore.
type OTPService struct {
	store  ports.OTPStore
	sender ports.OTPSender
	users  ports.UserRepository
	ttl    time.Duration
	length int
	now    func() time.Time
	log    zerolog.Logger
}

// NewOTPService creates an OTP authority. Zero ttl or length fall back to
// five minutes and six digits. users may be nil when no contact lookup is
// wanted.
func NewOTPService(
	store ports.OTPStore,
	sender ports.OTPSender,
	users ports.UserRepository,
	ttl time.Duration,
	length int,
	log zerolog.Logger,
) *OTPService {
	if ttl <= 0 {
		ttl = domain.DefaultOTPTTL
	}
	if length <= 0 {
		length = defaultOTPLength
	}
	return &OTPService{
		store:  store,
		sender: sender,
		users:  users,
		ttl:    ttl,
		length: length,
		now:    time.Now,
		log:    log,
	}
}

// Generate issues a fresh code for (subjectID, purpose), replacing any live
// one, and hands it to the sender.
func (s *OTPService) Generate(ctx context.Context, subjectID string, purpose domain.OTPPurpose) (string, error) {
	if !purpose.Valid() {
		return "", apperror.ErrUnknownPurpose(string(purpose))
	}
	if strings.TrimSpace(subjectID) == "" {
		return "", apperror.Validation("subject is required")
	}

	code, err := randomDigits(s.length)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("generate otp: %w", err))
	}
	if err := s.store.Save(ctx, subjectID, purpose, code, s.ttl); err != nil {
		return "", apperror.ErrPersistence(fmt.Errorf("save otp: %w", err))
	}

	notice := domain.OTPNotice{
		SubjectID: subjectID,
		Code:      code,
		Purpose:   purpose,
		Contact:   s.contactFor(ctx, subjectID),
		ExpiresAt: s.now().Add(s.ttl),
	}
	if err := s.sender.Send(ctx, notice); err != nil {
		// The code stays valid; the caller may request another.
		s.log.Warn().Err(err).Str("subject_id", subjectID).Str("purpose", string(purpose)).Msg("otp delivery failed")
	}
	return code, nil
}

// Verify consumes the live code for (subjectID, purpose) when code matches.
func (s *OTPService) Verify(ctx context.Context, subjectID string, code string, purpose domain.OTPPurpose) (bool, error) {
	if !purpose.Valid() {
		return false, apperror.ErrUnknownPurpose(string(purpose))
	}
	if code == "" || subjectID == "" {
		return false, nil
	}
	ok, err := s.store.Consume(ctx, subjectID, purpose, code)
	if err != nil {
		return false, apperror.ErrPersistence(fmt.Errorf("consume otp: %w", err))
	}
	return ok, nil
}

func (s *OTPService) contactFor(ctx context.Context, subjectID string) string {
	if s.users == nil {
		return ""
	}
	u, err := s.users.GetByID(ctx, subjectID)
	if err != nil {
		s.log.Warn().Err(err).Str("subject_id", subjectID).Msg("otp contact lookup failed")
		return ""
	}
	if u == nil {
		return ""
	}
	if u.Email != "" {
		return u.Email
	}
	return u.Phone
}

// randomDigits returns an n-digit decimal string without a leading zero.
func randomDigits(n int) (string, error) {
	low := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n-1)), nil)
	span := new(big.Int).Mul(low, big.NewInt(9))
	v, err := rand.Int(rand.Reader, span)
	if err != nil {
		return "", err
	}
	return v.Add(v, low).String(), nil
}

// LogSender is the console OTPSender: it writes the code as a log notice
// instead of delivering it.
type LogSender struct {
	log zerolog.Logger
}

func NewLogSender(log zerolog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(ctx context.Context, notice domain.OTPNotice) error {
	s.log.Info().
		Str("subject_id", notice.SubjectID).
		Str("purpose", string(notice.Purpose)).
		Str("contact", notice.Contact).
		Str("code", notice.Code).
		Time("expires_at", notice.ExpiresAt).
		Msg("otp issued")
	return nil
}
