package domain

import "time"

// InvitationStatus enumerates the activation state machine states.
// "sent" is initial; "accepted" and "expired" are terminal.
type InvitationStatus string

const (
	InvitationSent     InvitationStatus = "sent"
	InvitationAccepted InvitationStatus = "accepted"
	InvitationExpired  InvitationStatus = "expired"
)

// Invitation invites a ghost person to verify their profile. The token is
// single-use and unique across the system.
type Invitation struct {
	ID           string
	GhostID      string
	RequesterID  string
	TargetID     string
	Token        string
	Status       InvitationStatus
	ExpiresAt    time.Time
	CreatedAt    time.Time
	AcceptedAt   *time.Time
	NotifyFailed bool
}

// Expired reports whether the invitation is past its expiry at the given time.
func (i Invitation) Expired(now time.Time) bool {
	return now.After(i.ExpiresAt)
}

// Terminal reports whether no further transitions are permitted.
func (i Invitation) Terminal() bool {
	return i.Status == InvitationAccepted || i.Status == InvitationExpired
}
