package worker

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/jcourtner/wayfarer/internal/notify"
	"github.com/jcourtner/wayfarer/internal/queue"
	"github.com/jcourtner/wayfarer/pkg/character"
	"github.com/jcourtner/wayfarer/pkg/command"
	"github.com/jcourtner/wayfarer/pkg/storage"
	"github.com/jcourtner/wayfarer/pkg/travel"
	"github.com/jcourtner/wayfarer/pkg/world"
)

type workerFixture struct {
	worker *Worker
	queue  *queue.CommandQueue
	store  *storage.MockStore
	orch   *travel.Orchestrator
	mr     *miniredis.Miniredis
}

func setupWorker(t *testing.T) *workerFixture {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	client, err := queue.NewClient("redis://"+mr.Addr(), logger)
	if err != nil {
		t.Fatalf("Failed to create queue client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	g := world.NewGraph(logger)
	g.Add(world.NewArea("Marketplace Square", 0, 0, 0))
	g.Add(world.NewArea("Dark Forest", 3, 4, 5))
	if err := g.Connect("Marketplace Square", "Dark Forest"); err != nil {
		t.Fatalf("Failed to connect areas: %v", err)
	}
	g.Resolve()

	store := storage.NewMockStore()
	orch := travel.NewOrchestrator(travel.Config{
		Graph:      g,
		Store:      store,
		Encounters: travel.NewManager(nil, rand.New(rand.NewSource(1)), logger),
		Sink:       notify.NewLogSink(logger),
		Logger:     logger,
	})

	q := queue.NewCommandQueue(client)
	w := New(q, orch, store, client.Redis(), logger, "test-worker")

	return &workerFixture{worker: w, queue: q, store: store, orch: orch, mr: mr}
}

func saveCharacter(t *testing.T, store *storage.MockStore, userID, name string) *character.Character {
	t.Helper()
	c := character.New("guild1", userID, name)
	c.CurrentArea = "Marketplace Square"
	if err := store.SaveCharacter(context.Background(), c); err != nil {
		t.Fatalf("Failed to save character: %v", err)
	}
	return c
}

func enqueueAndProcess(t *testing.T, f *workerFixture, cmd *command.Command) {
	t.Helper()
	cmd.RequestID = uuid.New().String()
	cmd.EnqueuedAt = time.Now().UTC()
	if err := f.queue.Enqueue(context.Background(), cmd); err != nil {
		t.Fatalf("Failed to enqueue command: %v", err)
	}
	if err := f.worker.processNext(); err != nil {
		t.Fatalf("Failed to process command: %v", err)
	}
}

func TestWorker_CreateParty(t *testing.T) {
	f := setupWorker(t)
	ctx := context.Background()

	saveCharacter(t, f.store, "user1", "Aria")
	enqueueAndProcess(t, f, &command.Command{
		Type:    command.TypeCreateParty,
		GuildID: "guild1",
		UserID:  "user1",
	})

	p, err := f.store.LoadParty(ctx, "guild1", "user1")
	if err != nil {
		t.Fatalf("Failed to load party: %v", err)
	}
	if p == nil {
		t.Fatal("Expected party created")
	}
	if p.LeaderID != "user1" || p.Size() != 1 {
		t.Errorf("Unexpected party state: leader=%q size=%d", p.LeaderID, p.Size())
	}
}

func TestWorker_JoinRequiresInvite(t *testing.T) {
	f := setupWorker(t)
	ctx := context.Background()

	saveCharacter(t, f.store, "user1", "Aria")
	saveCharacter(t, f.store, "user2", "Bram")

	enqueueAndProcess(t, f, &command.Command{
		Type:    command.TypeCreateParty,
		GuildID: "guild1",
		UserID:  "user1",
	})

	// Joining without an invite is rejected.
	enqueueAndProcess(t, f, &command.Command{
		Type:     command.TypeJoinParty,
		GuildID:  "guild1",
		UserID:   "user2",
		LeaderID: "user1",
	})
	p, _ := f.store.LoadParty(ctx, "guild1", "user1")
	if p.Size() != 1 {
		t.Errorf("Expected uninvited join rejected, size=%d", p.Size())
	}

	enqueueAndProcess(t, f, &command.Command{
		Type:         command.TypeInvite,
		GuildID:      "guild1",
		UserID:       "user1",
		TargetUserID: "user2",
	})
	enqueueAndProcess(t, f, &command.Command{
		Type:     command.TypeJoinParty,
		GuildID:  "guild1",
		UserID:   "user2",
		LeaderID: "user1",
	})

	p, _ = f.store.LoadParty(ctx, "guild1", "user1")
	if p.Size() != 2 {
		t.Errorf("Expected invited join accepted, size=%d", p.Size())
	}
}

func TestWorker_LeaderLeavingMovesPartyRecord(t *testing.T) {
	f := setupWorker(t)
	ctx := context.Background()

	saveCharacter(t, f.store, "user1", "Aria")
	saveCharacter(t, f.store, "user2", "Bram")

	enqueueAndProcess(t, f, &command.Command{
		Type: command.TypeCreateParty, GuildID: "guild1", UserID: "user1",
	})
	enqueueAndProcess(t, f, &command.Command{
		Type: command.TypeInvite, GuildID: "guild1", UserID: "user1", TargetUserID: "user2",
	})
	enqueueAndProcess(t, f, &command.Command{
		Type: command.TypeJoinParty, GuildID: "guild1", UserID: "user2", LeaderID: "user1",
	})

	// The leader leaves; the record moves under the promoted leader's key.
	enqueueAndProcess(t, f, &command.Command{
		Type: command.TypeLeaveParty, GuildID: "guild1", UserID: "user1", LeaderID: "user1",
	})

	old, _ := f.store.LoadParty(ctx, "guild1", "user1")
	if old != nil {
		t.Error("Expected old party record deleted")
	}
	moved, _ := f.store.LoadParty(ctx, "guild1", "user2")
	if moved == nil {
		t.Fatal("Expected party record under new leader")
	}
	if moved.LeaderID != "user2" || moved.Size() != 1 {
		t.Errorf("Unexpected promoted party: leader=%q size=%d", moved.LeaderID, moved.Size())
	}
}

func TestWorker_LastMemberLeavingDeletesParty(t *testing.T) {
	f := setupWorker(t)
	ctx := context.Background()

	saveCharacter(t, f.store, "user1", "Aria")
	enqueueAndProcess(t, f, &command.Command{
		Type: command.TypeCreateParty, GuildID: "guild1", UserID: "user1",
	})
	enqueueAndProcess(t, f, &command.Command{
		Type: command.TypeLeaveParty, GuildID: "guild1", UserID: "user1", LeaderID: "user1",
	})

	p, err := f.store.LoadParty(ctx, "guild1", "user1")
	if err != nil || p != nil {
		t.Errorf("Expected empty party deleted, got %+v (%v)", p, err)
	}
}

func TestWorker_DisbandParty(t *testing.T) {
	f := setupWorker(t)
	ctx := context.Background()

	saveCharacter(t, f.store, "user1", "Aria")
	enqueueAndProcess(t, f, &command.Command{
		Type: command.TypeCreateParty, GuildID: "guild1", UserID: "user1",
	})
	enqueueAndProcess(t, f, &command.Command{
		Type: command.TypeDisbandParty, GuildID: "guild1", UserID: "user1",
	})

	p, err := f.store.LoadParty(ctx, "guild1", "user1")
	if err != nil || p != nil {
		t.Errorf("Expected party disbanded, got %+v (%v)", p, err)
	}
}

func TestWorker_TravelCommand(t *testing.T) {
	f := setupWorker(t)
	ctx := context.Background()

	saveCharacter(t, f.store, "user1", "Aria")
	enqueueAndProcess(t, f, &command.Command{
		Type:        command.TypeTravel,
		GuildID:     "guild1",
		UserID:      "user1",
		Destination: "Dark Forest",
	})

	saved, err := f.store.LoadCharacter(ctx, "guild1", "user1")
	if err != nil {
		t.Fatalf("Failed to load character: %v", err)
	}
	if !saved.IsTraveling || saved.TravelDestination != "Dark Forest" {
		t.Errorf("Expected persisted travel state, got %+v", saved)
	}

	// Stop the spawned tick loop before the fixture tears down.
	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := f.orch.Shutdown(shutdownCtx); err != nil {
		t.Fatalf("Failed to shut down orchestrator: %v", err)
	}
}

func TestWorker_LockedCharacterRequeues(t *testing.T) {
	f := setupWorker(t)
	ctx := context.Background()

	saveCharacter(t, f.store, "user1", "Aria")

	// Another worker holds the character lock.
	if err := f.mr.Set(lockKey("guild1", "user1"), "other-worker"); err != nil {
		t.Fatalf("Failed to seed lock: %v", err)
	}

	enqueueAndProcess(t, f, &command.Command{
		Type:        command.TypeTravel,
		GuildID:     "guild1",
		UserID:      "user1",
		Destination: "Dark Forest",
	})

	// The command went back on the queue untouched.
	depth, err := f.queue.Depth(ctx)
	if err != nil {
		t.Fatalf("Failed to get depth: %v", err)
	}
	if depth != 1 {
		t.Errorf("Expected command re-queued, depth=%d", depth)
	}
	saved, _ := f.store.LoadCharacter(ctx, "guild1", "user1")
	if saved.IsTraveling {
		t.Error("Expected no travel while character is locked")
	}
}
