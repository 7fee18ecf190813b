package domain

import "time"

// EnrollmentStatus mirrors the owning operation state
type EnrollmentStatus string

// Enrollment statuses
const (
	EnrollmentStarted EnrollmentStatus = "started"
	EnrollmentActive  EnrollmentStatus = "active"
	EnrollmentFailed  EnrollmentStatus = "failed"
	EnrollmentExpired EnrollmentStatus = "expired"
)

// EnrollmentRecord tracks whether a user has an active biometric enrollment.
// Written only by the operation service on confirmed terminal events, never
// by direct client assertion.
type EnrollmentRecord struct {
	UserID      string
	OperationID string
	Status      EnrollmentStatus
	CreatedAt   time.Time
	ModifiedAt  time.Time
}

// Credentials are the session tokens minted after a verified authentication
type Credentials struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
}
