package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/jcourtner/wayfarer/internal/queue"
	"github.com/jcourtner/wayfarer/pkg/command"
	"github.com/jcourtner/wayfarer/pkg/party"
	"github.com/jcourtner/wayfarer/pkg/storage"
	"github.com/jcourtner/wayfarer/pkg/travel"
)

const (
	dequeueTimeout = 5 * time.Second
	lockTTL        = 30 * time.Second
)

// Worker consumes travel and party commands from the Redis queue and
// dispatches them to the orchestrator. A per-character lock ensures two
// workers never drive the same character concurrently.
type Worker struct {
	id     string
	queue  *queue.CommandQueue
	orch   *travel.Orchestrator
	store  storage.Store
	rdb    *redis.Client
	log    *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a worker. An empty workerID gets a generated one.
func New(q *queue.CommandQueue, orch *travel.Orchestrator, store storage.Store, rdb *redis.Client, log *slog.Logger, workerID string) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	if workerID == "" {
		workerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}

	return &Worker{
		id:     workerID,
		queue:  q,
		orch:   orch,
		store:  store,
		rdb:    rdb,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins processing commands from the queue.
func (w *Worker) Start() error {
	w.log.Info("Travel worker starting", "worker_id", w.id)

	for {
		select {
		case <-w.ctx.Done():
			w.log.Info("Travel worker shutting down", "worker_id", w.id)
			return nil
		default:
			if err := w.processNext(); err != nil {
				w.log.Error("Error processing command", "error", err, "worker_id", w.id)
				// Continue processing even on error
				time.Sleep(time.Second)
			}
		}
	}
}

// Stop requests a graceful shutdown.
func (w *Worker) Stop() {
	w.log.Info("Travel worker stop requested", "worker_id", w.id)
	w.cancel()
}

func (w *Worker) processNext() error {
	ctx, cancel := context.WithTimeout(w.ctx, dequeueTimeout+time.Second)
	defer cancel()

	cmd, err := w.queue.BlockingDequeue(ctx, dequeueTimeout)
	if err != nil {
		if w.ctx.Err() != nil {
			return nil // shutting down
		}
		return fmt.Errorf("failed to dequeue command: %w", err)
	}
	if cmd == nil {
		// Queue is empty or timeout occurred; this is normal.
		return nil
	}

	w.log.Info("Received command",
		"worker_id", w.id,
		"request_id", cmd.RequestID,
		"type", cmd.Type,
		"guild_id", cmd.GuildID,
		"user_id", cmd.UserID)

	locked, err := w.acquireLock(cmd.GuildID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to acquire character lock: %w", err)
	}
	if !locked {
		// Another worker holds this character; re-queue and move on.
		w.log.Info("Character locked, re-queueing command",
			"worker_id", w.id, "request_id", cmd.RequestID)
		if err := w.queue.Enqueue(w.ctx, cmd); err != nil {
			return fmt.Errorf("failed to re-queue command: %w", err)
		}
		return nil
	}
	defer w.releaseLock(cmd.GuildID, cmd.UserID)

	return w.dispatch(cmd)
}

func lockKey(guildID, userID string) string {
	return fmt.Sprintf("travel-lock:%s:%s", guildID, userID)
}

func (w *Worker) acquireLock(guildID, userID string) (bool, error) {
	return w.rdb.SetNX(w.ctx, lockKey(guildID, userID), w.id, lockTTL).Result()
}

// releaseLock deletes the lock only if this worker still owns it.
func (w *Worker) releaseLock(guildID, userID string) {
	script := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("del", KEYS[1])
		else
			return 0
		end
	`)

	if err := script.Run(context.Background(), w.rdb, []string{lockKey(guildID, userID)}, w.id).Err(); err != nil {
		w.log.Error("Failed to release character lock",
			"error", err, "guild_id", guildID, "user_id", userID)
	}
}

func (w *Worker) dispatch(cmd *command.Command) error {
	switch cmd.Type {
	case command.TypeTravel:
		return w.handleTravel(cmd)
	case command.TypeCancelTravel:
		return w.handleCancelTravel(cmd)
	case command.TypeCreateParty:
		return w.handleCreateParty(cmd)
	case command.TypeInvite:
		return w.handleInvite(cmd)
	case command.TypeJoinParty:
		return w.handleJoinParty(cmd)
	case command.TypeLeaveParty:
		return w.handleLeaveParty(cmd)
	case command.TypeDisbandParty:
		return w.handleDisbandParty(cmd)
	default:
		return fmt.Errorf("unknown command type: %s", cmd.Type)
	}
}

// resolveParty loads the party the command applies to. The gateway fills
// LeaderID for members who are not themselves the leader.
func (w *Worker) resolveParty(cmd *command.Command) (*party.Party, error) {
	leaderID := cmd.LeaderID
	if leaderID == "" {
		leaderID = cmd.UserID
	}
	return w.store.LoadParty(w.ctx, cmd.GuildID, leaderID)
}

func (w *Worker) handleTravel(cmd *command.Command) error {
	c, err := w.orch.LoadCharacter(w.ctx, cmd.GuildID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to load character: %w", err)
	}
	if c == nil {
		w.log.Warn("Travel command for unknown character",
			"guild_id", cmd.GuildID, "user_id", cmd.UserID)
		return nil
	}

	pty, err := w.resolveParty(cmd)
	if err != nil {
		// Unknown, not necessarily absent: proceed as solo travel rather
		// than blocking the command.
		w.log.Warn("Failed to load party, traveling solo",
			"guild_id", cmd.GuildID, "user_id", cmd.UserID, "error", err)
		pty = nil
	}

	ok, msg, session := w.orch.StartTravel(w.ctx, c, cmd.Destination, pty)
	w.log.Info("Travel command handled",
		"worker_id", w.id, "request_id", cmd.RequestID, "ok", ok, "message", msg)
	if !ok {
		return nil
	}
	w.orch.ProcessTravel(w.ctx, c, pty, session)
	return nil
}

func (w *Worker) handleCancelTravel(cmd *command.Command) error {
	c, err := w.orch.LoadCharacter(w.ctx, cmd.GuildID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to load character: %w", err)
	}
	if c == nil {
		return nil
	}
	pty, err := w.resolveParty(cmd)
	if err != nil {
		pty = nil
	}
	w.orch.CancelTravel(w.ctx, c, pty)
	return nil
}

func (w *Worker) handleCreateParty(cmd *command.Command) error {
	existing, err := w.store.LoadParty(w.ctx, cmd.GuildID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to check for existing party: %w", err)
	}
	if existing != nil {
		w.log.Info("Party already exists",
			"guild_id", cmd.GuildID, "leader_id", cmd.UserID)
		return nil
	}

	leader, err := w.orch.LoadCharacter(w.ctx, cmd.GuildID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to load leader character: %w", err)
	}
	if leader == nil {
		return nil
	}

	p := party.New(cmd.GuildID, leader)
	if err := w.store.SaveParty(w.ctx, p); err != nil {
		return fmt.Errorf("failed to save party: %w", err)
	}
	w.log.Info("Party created", "guild_id", cmd.GuildID, "leader_id", cmd.UserID)
	return nil
}

func (w *Worker) handleInvite(cmd *command.Command) error {
	p, err := w.store.LoadParty(w.ctx, cmd.GuildID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to load party: %w", err)
	}
	if p == nil {
		w.log.Info("Invite without a party",
			"guild_id", cmd.GuildID, "user_id", cmd.UserID)
		return nil
	}
	if !p.Invite(cmd.TargetUserID) {
		return nil
	}
	if err := w.store.SaveParty(w.ctx, p); err != nil {
		return fmt.Errorf("failed to save party: %w", err)
	}
	return nil
}

func (w *Worker) handleJoinParty(cmd *command.Command) error {
	p, err := w.store.LoadParty(w.ctx, cmd.GuildID, cmd.LeaderID)
	if err != nil {
		return fmt.Errorf("failed to load party: %w", err)
	}
	if p == nil {
		return nil
	}
	if !p.HasInvite(cmd.UserID) {
		w.log.Info("Join without invite",
			"guild_id", cmd.GuildID, "user_id", cmd.UserID, "leader_id", cmd.LeaderID)
		return nil
	}

	c, err := w.orch.LoadCharacter(w.ctx, cmd.GuildID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to load character: %w", err)
	}
	if c == nil {
		return nil
	}

	ok, msg := p.AddMember(c)
	w.log.Info("Join party handled", "ok", ok, "message", msg)
	if !ok {
		return nil
	}
	if err := w.store.SaveParty(w.ctx, p); err != nil {
		return fmt.Errorf("failed to save party: %w", err)
	}
	return nil
}

func (w *Worker) handleLeaveParty(cmd *command.Command) error {
	p, err := w.resolveParty(cmd)
	if err != nil {
		return fmt.Errorf("failed to load party: %w", err)
	}
	if p == nil {
		return nil
	}

	oldLeaderID := p.LeaderID
	ok, msg := p.RemoveMember(cmd.UserID)
	if !ok {
		w.log.Info("Leave party rejected", "message", msg)
		return nil
	}
	w.log.Info("Member left party", "message", msg)

	if p.Size() == 0 {
		// Last member out; the party record goes away.
		if err := w.store.DeleteParty(w.ctx, cmd.GuildID, oldLeaderID); err != nil {
			return fmt.Errorf("failed to delete empty party: %w", err)
		}
		return nil
	}
	if p.LeaderID != oldLeaderID {
		// The storage key includes the leader; move the record.
		if err := w.store.DeleteParty(w.ctx, cmd.GuildID, oldLeaderID); err != nil {
			return fmt.Errorf("failed to move party record: %w", err)
		}
	}
	if err := w.store.SaveParty(w.ctx, p); err != nil {
		return fmt.Errorf("failed to save party: %w", err)
	}
	return nil
}

func (w *Worker) handleDisbandParty(cmd *command.Command) error {
	p, err := w.store.LoadParty(w.ctx, cmd.GuildID, cmd.UserID)
	if err != nil {
		return fmt.Errorf("failed to load party: %w", err)
	}
	if p == nil {
		return nil
	}
	if err := w.store.DeleteParty(w.ctx, cmd.GuildID, cmd.UserID); err != nil {
		return fmt.Errorf("failed to disband party: %w", err)
	}
	w.log.Info("Party disbanded", "guild_id", cmd.GuildID, "leader_id", cmd.UserID)
	return nil
}
