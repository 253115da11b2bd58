package postgres

import (
	"context"
	"errors"
	"testing"

	"points-ledger/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepository(mock)
	entry := &domain.AuditLog{
		ID:           uuid.New(),
		ActorID:      "user-1",
		Action:       domain.AuditActionTransfer,
		ResourceType: "transaction",
		ResourceID:   "tx-1",
		Details:      `{"amount":"30"}`,
		CreatedAt:    testTime,
	}

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, "user-1", "TRANSFER", "transaction", "tx-1", entry.Details, testTime).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Create_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepository(mock)

	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("relation does not exist"))

	err = repo.Create(context.Background(), &domain.AuditLog{ID: uuid.New(), Action: domain.AuditActionLock})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert audit log")
}
