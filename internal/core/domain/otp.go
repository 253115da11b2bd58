package domain

import "time"

// OTPPurpose scopes a one-time code to a single kind of action.
type OTPPurpose string

const (
	OTPPurposeTransfer       OTPPurpose = "transfer"
	OTPPurposeProfileUpdate  OTPPurpose = "profile_update"
	OTPPurposePasswordChange OTPPurpose = "password_change"
)

// DefaultOTPTTL is how long a generated code stays valid.
const DefaultOTPTTL = 5 * time.Minute

// Valid reports whether p is a known purpose.
func (p OTPPurpose) Valid() bool {
	switch p {
	case OTPPurposeTransfer, OTPPurposeProfileUpdate, OTPPurposePasswordChange:
		return true
	default:
		return false
	}
}

// OTPNotice is handed to the delivery channel after a code is generated.
type OTPNotice struct {
	SubjectID string
	Code      string
	Purpose   OTPPurpose
	Contact   string
	ExpiresAt time.Time
}
