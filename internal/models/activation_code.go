package models

import "time"

const (
	PurposeActivation = "activation"
	PurposeReset      = "reset"
)

// ActivationCode is a single-use 6-digit credential tied to a user and a
// purpose. At most one live code exists per (user, purpose); issuing a new
// one replaces the old.
type ActivationCode struct {
	ID        string    `json:"-"`
	UserID    string    `json:"-"`
	Code      string    `json:"-"`
	Purpose   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
	CreatedAt time.Time `json:"-"`
}

func (a *ActivationCode) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}
