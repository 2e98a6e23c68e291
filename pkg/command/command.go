package command

import (
	"encoding/json"
	"time"
)

// Type identifies a travel or party command.
type Type string

const (
	// TypeTravel starts a journey to a destination area.
	TypeTravel Type = "travel"

	// TypeCancelTravel cancels an in-flight journey.
	TypeCancelTravel Type = "cancel_travel"

	// TypeCreateParty creates a party led by the issuing user.
	TypeCreateParty Type = "create_party"

	// TypeInvite invites another user to the issuer's party.
	TypeInvite Type = "invite_to_party"

	// TypeJoinParty accepts a pending invite to a leader's party.
	TypeJoinParty Type = "join_party"

	// TypeLeaveParty removes the issuing user from their party.
	TypeLeaveParty Type = "leave_party"

	// TypeDisbandParty deletes the issuer's party entirely.
	TypeDisbandParty Type = "disband_party"
)

// Command is one user action pulled off the Redis queue by the travel
// worker. The Discord gateway process enqueues these; the engine never
// sees Discord interactions directly.
type Command struct {
	RequestID string `json:"request_id"`
	Type      Type   `json:"type"`
	GuildID   string `json:"guild_id"`
	UserID    string `json:"user_id"`

	// Travel commands.
	Destination string `json:"destination,omitempty"`

	// Party commands. LeaderID identifies the party for members who are
	// not the leader; TargetUserID is the invitee.
	LeaderID     string `json:"leader_id,omitempty"`
	TargetUserID string `json:"target_user_id,omitempty"`

	EnqueuedAt time.Time `json:"enqueued_at"`
}

// ToJSON serializes the command for Redis.
func (c *Command) ToJSON() ([]byte, error) {
	return json.Marshal(c)
}

// FromJSON parses a command from its Redis representation.
func FromJSON(data []byte) (*Command, error) {
	var c Command
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}
