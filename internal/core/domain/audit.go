package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionTransfer AuditAction = "TRANSFER"
	AuditActionIssue    AuditAction = "ISSUE"
	AuditActionReserve  AuditAction = "RESERVE"
	AuditActionConfirm  AuditAction = "CONFIRM"
	AuditActionCancel   AuditAction = "CANCEL"
	AuditActionLock     AuditAction = "LOCK"
	AuditActionUnlock   AuditAction = "UNLOCK"
	AuditActionRegister AuditAction = "REGISTER"
	AuditActionLogin    AuditAction = "LOGIN"
	AuditActionOTP      AuditAction = "OTP_REQUEST"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      string      `json:"actor_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time   `json:"created_at"`
}
