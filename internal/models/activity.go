package models

import (
	"time"

	"gorm.io/datatypes"
)

// Activity actions recorded in the meetup ledger.
const (
	ActivityConversationStarted = "conversation_started"
	ActivityProposalSent        = "proposal_sent"
	ActivityProposalAccepted    = "proposal_accepted"
	ActivityProposalDeclined    = "proposal_declined"
)

// ActivityLog captures meetup events performed by a user.
type ActivityLog struct {
	ID         uint              `gorm:"primaryKey" json:"id"`
	ActorID    string            `gorm:"size:64;index;not null" json:"actor_id"`
	Action     string            `gorm:"size:64;not null" json:"action"`
	EntityType string            `gorm:"size:64;not null" json:"entity_type"`
	EntityID   *uint             `json:"entity_id"`
	Metadata   datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt  time.Time         `json:"created_at"`
}
