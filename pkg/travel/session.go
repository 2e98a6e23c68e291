package travel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jcourtner/wayfarer/pkg/character"
	"github.com/jcourtner/wayfarer/pkg/world"
)

// ErrTargetNotFound is returned by a Sink when the notification target no
// longer exists. The tick loop ends early on it instead of retrying forever.
var ErrTargetNotFound = errors.New("notification target not found")

// Sink receives journey notifications. Implementations are external UI
// collaborators (Discord embeds, the console monitor); the engine does not
// assume delivery succeeded.
type Sink interface {
	NotifyProgress(ctx context.Context, view SessionView) error
	NotifyArrival(ctx context.Context, c *character.Character, scene string) error
	NotifyCancelled(ctx context.Context, view SessionView) error
}

// Narrator produces a short scene summary for arrival notifications.
// The LLM-backed implementation is an external collaborator.
type Narrator interface {
	SceneSummary(ctx context.Context, c *character.Character, a *world.Area) (string, error)
}

// Session is the live state machine for one in-flight journey, solo or
// party. It is created by StartTravel, driven by a single tick loop, and
// discarded after arrival or cancellation; only its effects on characters
// are persisted.
type Session struct {
	ID          uuid.UUID
	GuildID     string
	UserID      string // initiating character
	LeaderID    string // party leader, empty for solo travel
	Origin      string
	Destination string
	Weather     Weather
	Mode        Mode
	TotalTime   time.Duration
	StartTime   time.Time

	cancelled atomic.Bool
	finalized atomic.Bool

	mu         sync.Mutex
	encounters []Encounter
}

// NewSession creates a session starting now.
func NewSession(guildID, userID, origin, destination string, w Weather, m Mode, total time.Duration) *Session {
	return &Session{
		ID:          uuid.New(),
		GuildID:     guildID,
		UserID:      userID,
		Origin:      origin,
		Destination: destination,
		Weather:     w,
		Mode:        m,
		TotalTime:   total,
		StartTime:   time.Now(),
	}
}

// Key identifies the journey's owner within the orchestrator registry.
func (s *Session) Key() string {
	return s.GuildID + ":" + s.UserID
}

// Elapsed returns wall-clock time since departure.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.StartTime)
}

// Progress returns journey completion in [0, 1].
func (s *Session) Progress() float64 {
	if s.TotalTime <= 0 {
		return 1.0
	}
	p := float64(s.Elapsed()) / float64(s.TotalTime)
	if p > 1.0 {
		return 1.0
	}
	return p
}

// Remaining returns time left, floored at zero.
func (s *Session) Remaining() time.Duration {
	r := s.TotalTime - s.Elapsed()
	if r < 0 {
		return 0
	}
	return r
}

// End returns the expected arrival time.
func (s *Session) End() time.Time {
	return s.StartTime.Add(s.TotalTime)
}

// Cancel flags the session cancelled. The flag is set-once and observed by
// the tick loop at its next iteration, so cancellation latency is bounded
// by the tick interval.
func (s *Session) Cancel() {
	s.cancelled.Store(true)
}

// Cancelled reports whether the session was cancelled.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// markFinalized returns true exactly once, guarding arrival finalization.
func (s *Session) markFinalized() bool {
	return s.finalized.CompareAndSwap(false, true)
}

// RecordEncounter appends an occurrence to the journey log.
func (s *Session) RecordEncounter(e Encounter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encounters = append(s.encounters, e)
}

// Encounters returns a copy of the journey's encounter log.
func (s *Session) Encounters() []Encounter {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Encounter, len(s.encounters))
	copy(out, s.encounters)
	return out
}

// SessionView is the read-only snapshot handed to notification sinks.
type SessionView struct {
	SessionID   uuid.UUID
	GuildID     string
	UserID      string
	Name        string
	Origin      string
	Destination string
	Weather     string
	Mode        string
	Progress    float64
	Remaining   time.Duration
	Encounters  []Encounter
}

// View snapshots the session for a sink.
func (s *Session) View(name string) SessionView {
	return SessionView{
		SessionID:   s.ID,
		GuildID:     s.GuildID,
		UserID:      s.UserID,
		Name:        name,
		Origin:      s.Origin,
		Destination: s.Destination,
		Weather:     s.Weather.Name,
		Mode:        s.Mode.Name,
		Progress:    s.Progress(),
		Remaining:   s.Remaining(),
		Encounters:  s.Encounters(),
	}
}
