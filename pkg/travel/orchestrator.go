package travel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/jcourtner/wayfarer/pkg/character"
	"github.com/jcourtner/wayfarer/pkg/party"
	"github.com/jcourtner/wayfarer/pkg/storage"
	"github.com/jcourtner/wayfarer/pkg/world"
)

const (
	// tickInterval is the loop suspension point and the bound on
	// cancellation latency.
	tickInterval = time.Second

	// updateInterval paces progress notifications and encounter rolls.
	updateInterval = 5 * time.Second

	// minBaseTravelSeconds floors base travel time so even adjacent areas
	// take a perceptible, narratable duration.
	minBaseTravelSeconds = 2

	// connectionMaxAge is how long resolved connectivity is trusted before
	// re-resolving; edits invalidate it explicitly regardless.
	connectionMaxAge = 24 * time.Hour

	characterCacheTTL = 5 * time.Minute

	// shardCount partitions guilds into logical shards. Shards are logged
	// for observability only; all state lives in one shared store.
	shardCount = 16
)

// MsgTravelPossible is the success reason returned by CanTravel.
const MsgTravelPossible = "Travel possible"

// msgGenericFailure is shown for storage and internal failures. Detail
// goes to logs only, never to players.
const msgGenericFailure = "Something went wrong, please try again"

// Config holds the orchestrator's collaborators.
type Config struct {
	Graph      *world.Graph
	Store      storage.Store
	Encounters *Manager
	Sink       Sink
	Narrator   Narrator // optional
	Logger     *slog.Logger
	Rand       *rand.Rand // optional, defaults to a time-seeded source
}

// journeyHandle tracks one in-flight journey so the orchestrator can
// enumerate, cancel, and await its task on shutdown.
type journeyHandle struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

// Orchestrator owns travel state transitions: IDLE -> TRAVELING ->
// ARRIVED or CANCELLED. It validates journeys against the world graph,
// computes timing, spawns tick-loop tasks, and finalizes persisted state.
type Orchestrator struct {
	graph      *world.Graph
	store      storage.Store
	encounters *Manager
	sink       Sink
	narrator   Narrator
	logger     *slog.Logger
	rng        *rand.Rand
	cache      *characterCache

	// Overridable in tests; production uses the package constants.
	tick   time.Duration
	update time.Duration

	mu       sync.Mutex
	journeys map[string]*journeyHandle
	wg       sync.WaitGroup
}

// NewOrchestrator creates an orchestrator from its collaborators.
func NewOrchestrator(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Orchestrator{
		graph:      cfg.Graph,
		store:      cfg.Store,
		encounters: cfg.Encounters,
		sink:       cfg.Sink,
		narrator:   cfg.Narrator,
		logger:     logger,
		rng:        rng,
		cache:      newCharacterCache(characterCacheTTL),
		journeys:   make(map[string]*journeyHandle),
		tick:       tickInterval,
		update:     updateInterval,
	}
}

// CanTravel checks whether the character may travel to destination.
// Read-only: it may be called speculatively by UI validation without side
// effects beyond repairing a corrupt in-memory traveling flag.
func (o *Orchestrator) CanTravel(c *character.Character, destination string) (bool, string) {
	o.graph.EnsureResolved(connectionMaxAge)

	dest, ok := o.graph.Area(destination)
	if !ok {
		if suggestion := o.graph.Suggest(destination); suggestion != "" {
			return false, fmt.Sprintf("There is no area named %q. Did you mean %s?", destination, suggestion)
		}
		return false, fmt.Sprintf("There is no area named %q", destination)
	}

	c.Normalize(o.logger)
	if c.IsTraveling {
		return false, fmt.Sprintf("You are already traveling to %s", c.TravelDestination)
	}

	current, ok := o.graph.Area(c.CurrentArea)
	if !ok {
		o.logger.Warn("Character in unknown area",
			"guild_id", c.GuildID, "user_id", c.UserID, "area", c.CurrentArea)
		return false, "Your current location is not part of the world"
	}

	if !o.graph.Connected(current.Name, dest.Name) {
		return false, fmt.Sprintf("%s is not connected to %s", dest.DisplayName(), current.DisplayName())
	}

	if !world.SameContinent(current, dest) && !current.AllowsIntercontinental {
		return false, fmt.Sprintf("%s has no port for travel to another continent", current.DisplayName())
	}

	return true, MsgTravelPossible
}

// soloSeconds is the journey duration for one member traveling alone:
// base time scaled by the member's speed relative to the default, slowed
// by weather and divided by the travel-mode factor.
func soloSeconds(base float64, m *character.Character, w Weather) float64 {
	t := base * float64(character.DefaultMovementSpeed) / float64(m.Speed())
	return t * w.SpeedModifier / ModeFor(m).SpeedFactor
}

// effectiveTime applies the weakest-link rule: a party never moves faster
// than its slowest member, even when the initiator is fast.
func effectiveTime(base float64, c *character.Character, pty *party.Party, w Weather) time.Duration {
	secs := soloSeconds(base, c, w)
	if pty != nil {
		if slowest := pty.SlowestMember(); slowest != nil {
			if t := soloSeconds(base, slowest, w); t > secs {
				secs = t
			}
		}
	}
	return time.Duration(secs * float64(time.Second))
}

// StartTravel validates and commits a journey. Travel time and weather are
// frozen at departure; mid-journey party changes do not retime the session.
// The traveling state is persisted before any tick loop starts, so a crash
// here still leaves recoverable state in the store.
func (o *Orchestrator) StartTravel(ctx context.Context, c *character.Character, destination string, pty *party.Party) (bool, string, *Session) {
	// Never trust a stale validation from the caller.
	if ok, reason := o.CanTravel(c, destination); !ok {
		return false, reason, nil
	}

	current, _ := o.graph.Area(c.CurrentArea)
	dest, _ := o.graph.Area(destination)

	base := math.Round(current.DistanceTo(dest))
	if base < minBaseTravelSeconds {
		base = minBaseTravelSeconds
	}

	weather := RollWeather(o.rng)
	total := effectiveTime(base, c, pty, weather)
	end := time.Now().Add(total)

	if from, to := shardFor(c.GuildID, current.Name), shardFor(c.GuildID, dest.Name); from != to {
		o.logger.Info("Cross-shard travel",
			"guild_id", c.GuildID, "from_shard", from, "to_shard", to,
			"from", current.Name, "to", dest.Name)
	}

	members := []*character.Character{c}
	if pty != nil {
		members = pty.Members()
	}
	for _, m := range members {
		m.BeginTravel(dest.Name, end)
	}
	if err := o.saveCharacter(ctx, c); err != nil {
		// Roll back the in-memory flags; nothing was persisted.
		for _, m := range members {
			m.ClearTravel()
		}
		o.logger.Error("Failed to persist travel start",
			"guild_id", c.GuildID, "user_id", c.UserID, "error", err)
		return false, msgGenericFailure, nil
	}
	for _, m := range members {
		if m.UserID == c.UserID {
			continue
		}
		if err := o.saveCharacter(ctx, m); err != nil {
			// Best-effort for the rest of the party; the member stays
			// repairable via Normalize on next load.
			o.logger.Error("Failed to persist travel start for party member",
				"guild_id", m.GuildID, "user_id", m.UserID, "error", err)
		}
	}

	session := NewSession(c.GuildID, c.UserID, current.Name, dest.Name, weather, ModeFor(c), total)
	if pty != nil {
		session.LeaderID = pty.LeaderID
	}

	o.mu.Lock()
	o.journeys[session.Key()] = &journeyHandle{session: session}
	o.mu.Unlock()

	o.logger.Info("Travel started",
		"guild_id", c.GuildID, "user_id", c.UserID,
		"from", current.Name, "to", dest.Name,
		"weather", weather.Name, "mode", session.Mode.Name,
		"duration", total, "party", pty != nil)

	msg := fmt.Sprintf("Traveling to %s. Arrival in %s (%s, %s)",
		dest.DisplayName(), total.Round(time.Second), weather.Name, session.Mode.Name)
	return true, msg, session
}

// ProcessTravel spawns the tick-loop task for a started session. The task
// is owned by the orchestrator: its handle is registered for cancellation
// and awaited on Shutdown. The returned channel closes when the journey's
// task finishes, however it ends.
func (o *Orchestrator) ProcessTravel(ctx context.Context, c *character.Character, pty *party.Party, s *Session) <-chan struct{} {
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	o.mu.Lock()
	h, ok := o.journeys[s.Key()]
	if !ok {
		h = &journeyHandle{session: s}
		o.journeys[s.Key()] = h
	}
	h.cancel = cancel
	h.done = done
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer close(done)
		defer cancel()
		defer func() {
			o.mu.Lock()
			delete(o.journeys, s.Key())
			o.mu.Unlock()
		}()
		o.run(runCtx, s, c, pty)
	}()
	return done
}

// run is the tick loop, the only place wall-clock progress is advanced.
// Cancellation is observed at the top of each iteration, bounding latency
// to roughly one tick.
func (o *Orchestrator) run(ctx context.Context, s *Session, c *character.Character, pty *party.Party) {
	nextMark := s.StartTime

	for {
		if s.Cancelled() {
			view := s.View(c.Name)
			if err := o.sink.NotifyCancelled(ctx, view); err != nil {
				o.logger.Error("Failed to send cancellation notice",
					"guild_id", s.GuildID, "user_id", s.UserID, "error", err)
			}
			return
		}

		now := time.Now()
		if !now.Before(s.End()) {
			break
		}

		if !now.Before(nextMark) {
			if err := o.sink.NotifyProgress(ctx, s.View(c.Name)); err != nil {
				if errors.Is(err, ErrTargetNotFound) {
					// The UI target is gone; stop driving this journey.
					// Persisted state still carries the end time, so a
					// later completion pass can finish it.
					o.logger.Warn("Notification target gone, abandoning tick loop",
						"guild_id", s.GuildID, "user_id", s.UserID)
					return
				}
				o.logger.Error("Failed to send progress update",
					"guild_id", s.GuildID, "user_id", s.UserID, "error", err)
			}
			o.rollEncounter(ctx, s, c, pty)
			nextMark = now.Add(o.update)
		}

		select {
		case <-ctx.Done():
			// Shutdown. Leave persisted traveling state untouched so the
			// journey is recoverable on restart.
			o.logger.Info("Travel task stopping",
				"guild_id", s.GuildID, "user_id", s.UserID, "progress", s.Progress())
			return
		case <-time.After(o.tick):
		}
	}

	o.finalizeArrival(ctx, s, c, pty)
}

// rollEncounter consults the encounter manager for this leg and records
// any hit. History caching is best-effort and never blocks the journey.
func (o *Orchestrator) rollEncounter(ctx context.Context, s *Session, c *character.Character, pty *party.Party) {
	from, ok := o.graph.Area(s.Origin)
	if !ok {
		return
	}
	to, ok := o.graph.Area(s.Destination)
	if !ok {
		return
	}

	avgLevel := float64(c.Level)
	leaderID := c.UserID
	if pty != nil {
		avgLevel = pty.AverageLevel()
		leaderID = pty.LeaderID
	}

	enc := o.encounters.Generate(avgLevel, s.Weather, from, to)
	if enc == nil {
		return
	}
	s.RecordEncounter(*enc)
	o.logger.Info("Encounter during travel",
		"guild_id", s.GuildID, "user_id", s.UserID,
		"encounter", enc.Name, "type", enc.Type)

	if entry, err := json.Marshal(enc); err == nil {
		if err := o.store.AppendEncounter(ctx, s.GuildID, leaderID, entry); err != nil {
			o.logger.Warn("Failed to cache encounter history",
				"guild_id", s.GuildID, "leader_id", leaderID, "error", err)
		}
	}
}

// finalizeArrival advances every traveler's persisted state, exactly once
// per session. Party finalization is sequential and best-effort: one
// member's failure is logged and does not abort the rest, and the failed
// member's traveling flag stays set so a retry remains possible.
func (o *Orchestrator) finalizeArrival(ctx context.Context, s *Session, c *character.Character, pty *party.Party) {
	if !s.markFinalized() {
		return
	}

	members := []*character.Character{c}
	if pty != nil {
		members = pty.Members()
	}
	for _, m := range members {
		if ok, msg := o.CompleteTravel(ctx, m, s); !ok {
			o.logger.Error("Failed to finalize travel for member",
				"guild_id", m.GuildID, "user_id", m.UserID, "reason", msg)
		}
	}

	dest, ok := o.graph.Area(s.Destination)
	if !ok {
		return
	}
	scene := dest.Description
	if o.narrator != nil {
		if summary, err := o.narrator.SceneSummary(ctx, c, dest); err == nil && summary != "" {
			scene = summary
		} else if err != nil {
			o.logger.Warn("Narrator failed, using area description",
				"area", dest.Name, "error", err)
		}
	}
	if err := o.sink.NotifyArrival(ctx, c, scene); err != nil {
		o.logger.Error("Failed to send arrival notice",
			"guild_id", s.GuildID, "user_id", s.UserID, "error", err)
	}
}

// CompleteTravel moves one traveler to their destination and clears travel
// state. A failed move leaves travel state intact so the completion can be
// retried; this is the one place partial failure must not be treated as
// success. Pass a nil session when completing outside a live tick loop.
func (o *Orchestrator) CompleteTravel(ctx context.Context, c *character.Character, s *Session) (bool, string) {
	if s != nil && s.Cancelled() {
		// Cancellation already cleared state; this is a safety branch.
		return false, "Travel was cancelled"
	}

	c.Normalize(o.logger)
	if !c.IsTraveling {
		return false, "Not currently traveling"
	}

	destination := c.TravelDestination
	if err := c.MoveTo(o.graph, destination); err != nil {
		o.logger.Error("Failed to move character on arrival",
			"guild_id", c.GuildID, "user_id", c.UserID,
			"destination", destination, "error", err)
		return false, msgGenericFailure
	}

	c.ClearTravel()
	if err := o.saveCharacter(ctx, c); err != nil {
		// The persisted record still says traveling, so the arrival can
		// be retried.
		o.logger.Error("Failed to persist arrival",
			"guild_id", c.GuildID, "user_id", c.UserID, "error", err)
		return false, msgGenericFailure
	}

	dest, _ := o.graph.Area(destination)
	name := destination
	if dest != nil {
		name = dest.DisplayName()
	}
	return true, fmt.Sprintf("Arrived at %s", name)
}

// CancelTravel unconditionally clears travel state for the character (and
// party members, when traveling as a party) and flags the running session.
// Idempotent: cancelling a character who is not traveling succeeds. The
// tick loop observes the flag at its next iteration. Returns false only on
// a storage failure.
func (o *Orchestrator) CancelTravel(ctx context.Context, c *character.Character, pty *party.Party) bool {
	o.mu.Lock()
	h := o.journeys[c.GuildID+":"+c.UserID]
	if h == nil && pty != nil {
		// Party sessions are registered under whichever member started the
		// journey; any member may cancel it.
		for _, m := range pty.Members() {
			if h = o.journeys[c.GuildID+":"+m.UserID]; h != nil {
				break
			}
		}
	}
	o.mu.Unlock()
	if h != nil {
		h.session.Cancel()
	}

	members := []*character.Character{c}
	if pty != nil {
		members = pty.Members()
	}
	ok := true
	for _, m := range members {
		m.ClearTravel()
		if err := o.saveCharacter(ctx, m); err != nil {
			o.logger.Error("Failed to persist travel cancellation",
				"guild_id", m.GuildID, "user_id", m.UserID, "error", err)
			ok = false
		}
	}
	if ok {
		o.logger.Info("Travel cancelled", "guild_id", c.GuildID, "user_id", c.UserID)
	}
	return ok
}

// Session returns the live session for a character, if one is in flight.
func (o *Orchestrator) Session(guildID, userID string) (*Session, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	h, ok := o.journeys[guildID+":"+userID]
	if !ok {
		return nil, false
	}
	return h.session, true
}

// ActiveJourneys returns the number of in-flight journeys.
func (o *Orchestrator) ActiveJourneys() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.journeys)
}

// Shutdown stops every in-flight tick loop and waits for them to finish or
// for ctx to expire. Persisted traveling state is left intact for recovery.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, h := range o.journeys {
		if h.cancel != nil {
			h.cancel()
		}
	}
	o.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("travel tasks did not stop in time: %w", ctx.Err())
	}
}

// LoadCharacter loads through the advisory cache. The store is the source
// of truth; cache hits may be stale and every mutation writes through.
func (o *Orchestrator) LoadCharacter(ctx context.Context, guildID, userID string) (*character.Character, error) {
	if c, ok := o.cache.get(guildID, userID); ok {
		return c, nil
	}
	c, err := o.store.LoadCharacter(ctx, guildID, userID)
	if err != nil || c == nil {
		return c, err
	}
	c.Normalize(o.logger)
	o.cache.put(c)
	return c, nil
}

func (o *Orchestrator) saveCharacter(ctx context.Context, c *character.Character) error {
	if err := o.store.SaveCharacter(ctx, c); err != nil {
		o.cache.invalidate(c.GuildID, c.UserID)
		return err
	}
	o.cache.put(c)
	return nil
}

// shardFor maps a guild and area to a logical shard. Observability only:
// shard identity never changes control flow because all travel state lives
// in one shared store.
func shardFor(guildID, areaName string) int {
	h := fnv.New32a()
	h.Write([]byte(guildID))
	h.Write([]byte{'/'})
	h.Write([]byte(areaName))
	return int(h.Sum32() % shardCount)
}
