package dto

import "time"

// SessionCreateRequest is the mock sign-in payload standing in for the campus identity provider.
type SessionCreateRequest struct {
	NetID string `json:"net_id" validate:"required,min=2,max=64,alphanum"`
}

// SessionResponse carries the issued token and whether the caller already has a profile.
type SessionResponse struct {
	Token         string    `json:"token"`
	NetID         string    `json:"net_id"`
	ExpiresAt     time.Time `json:"expires_at"`
	ProfileExists bool      `json:"profile_exists"`
}
