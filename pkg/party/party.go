package party

import (
	"encoding/json"
	"fmt"

	"github.com/jcourtner/wayfarer/pkg/character"
)

// MaxSize is the maximum number of members in a travel party.
const MaxSize = 6

// Party is a group of characters traveling together. Journeys are
// synchronized to the slowest member.
//
// Member order is insertion order. Go map iteration is randomized, so the
// order is kept in an explicit slice; leader promotion and slowest-member
// tie-breaks depend on it being deterministic.
type Party struct {
	GuildID  string
	LeaderID string

	order   []string
	members map[string]*character.Character
	invited []string
}

// New creates a party with the leader as its first member.
func New(guildID string, leader *character.Character) *Party {
	p := &Party{
		GuildID:  guildID,
		LeaderID: leader.UserID,
		members:  make(map[string]*character.Character),
	}
	p.order = append(p.order, leader.UserID)
	p.members[leader.UserID] = leader
	return p
}

// Leader returns the current leader.
func (p *Party) Leader() *character.Character {
	return p.members[p.LeaderID]
}

// Size returns the current member count.
func (p *Party) Size() int {
	return len(p.order)
}

// Member returns a member by user ID.
func (p *Party) Member(userID string) (*character.Character, bool) {
	c, ok := p.members[userID]
	return c, ok
}

// Members returns the members in insertion order.
func (p *Party) Members() []*character.Character {
	out := make([]*character.Character, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.members[id])
	}
	return out
}

// AddMember inserts a character into the party. Rejects when the party is
// full or the character is already a member. A pending invite for the
// character is consumed.
func (p *Party) AddMember(c *character.Character) (bool, string) {
	if _, ok := p.members[c.UserID]; ok {
		return false, fmt.Sprintf("%s is already in the party", c.Name)
	}
	if len(p.order) >= MaxSize {
		return false, fmt.Sprintf("The party is full (%d members)", MaxSize)
	}
	p.order = append(p.order, c.UserID)
	p.members[c.UserID] = c
	p.RemoveInvite(c.UserID)
	return true, fmt.Sprintf("%s joined the party", c.Name)
}

// RemoveMember removes a member by user ID. If the removed member was the
// leader and members remain, the earliest-joined remaining member is
// promoted; the promotion is reported in the message.
func (p *Party) RemoveMember(userID string) (bool, string) {
	c, ok := p.members[userID]
	if !ok {
		return false, "That player is not in the party"
	}
	delete(p.members, userID)
	for i, id := range p.order {
		if id == userID {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}

	msg := fmt.Sprintf("%s left the party", c.Name)
	if userID == p.LeaderID && len(p.order) > 0 {
		p.LeaderID = p.order[0]
		msg = fmt.Sprintf("%s left the party. %s is now the leader",
			c.Name, p.members[p.LeaderID].Name)
	}
	return true, msg
}

// SlowestMember returns the member with the lowest movement speed, ties
// broken by join order. Nil for an empty party.
func (p *Party) SlowestMember() *character.Character {
	var slowest *character.Character
	for _, id := range p.order {
		m := p.members[id]
		if slowest == nil || m.Speed() < slowest.Speed() {
			slowest = m
		}
	}
	return slowest
}

// AverageLevel returns the arithmetic mean of member levels. Zero for an
// empty party, though the leader is always a member in practice.
func (p *Party) AverageLevel() float64 {
	if len(p.order) == 0 {
		return 0
	}
	sum := 0
	for _, m := range p.members {
		sum += m.Level
	}
	return float64(sum) / float64(len(p.order))
}

// Invite records a pending invite. No-op if the player is already a member
// or already invited.
func (p *Party) Invite(userID string) bool {
	if _, ok := p.members[userID]; ok {
		return false
	}
	if p.HasInvite(userID) {
		return false
	}
	p.invited = append(p.invited, userID)
	return true
}

// HasInvite reports whether the player has a pending invite.
func (p *Party) HasInvite(userID string) bool {
	for _, id := range p.invited {
		if id == userID {
			return true
		}
	}
	return false
}

// RemoveInvite withdraws a pending invite.
func (p *Party) RemoveInvite(userID string) bool {
	for i, id := range p.invited {
		if id == userID {
			p.invited = append(p.invited[:i], p.invited[i+1:]...)
			return true
		}
	}
	return false
}

// Invited returns pending invites ordered by invite time.
func (p *Party) Invited() []string {
	out := make([]string, len(p.invited))
	copy(out, p.invited)
	return out
}

// partyRecord is the persisted shape of a party.
type partyRecord struct {
	GuildID  string                 `json:"guild_id"`
	LeaderID string                 `json:"leader_id"`
	Members  []*character.Character `json:"members,omitempty"`
	Invited  []string               `json:"invited,omitempty"`
}

// MarshalJSON persists members in insertion order so that leader promotion
// stays deterministic across a save/load cycle.
func (p *Party) MarshalJSON() ([]byte, error) {
	return json.Marshal(partyRecord{
		GuildID:  p.GuildID,
		LeaderID: p.LeaderID,
		Members:  p.Members(),
		Invited:  p.invited,
	})
}

// UnmarshalJSON restores a party, rebuilding the member index.
func (p *Party) UnmarshalJSON(data []byte) error {
	var rec partyRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	p.GuildID = rec.GuildID
	p.LeaderID = rec.LeaderID
	p.invited = rec.Invited
	p.order = nil
	p.members = make(map[string]*character.Character)
	for _, m := range rec.Members {
		p.order = append(p.order, m.UserID)
		p.members[m.UserID] = m
	}
	return nil
}
