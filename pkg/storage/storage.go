package storage

import (
	"context"

	"github.com/jcourtner/wayfarer/pkg/character"
	"github.com/jcourtner/wayfarer/pkg/party"
	"github.com/jcourtner/wayfarer/pkg/world"
)

// Store is the persistence boundary for all travel, party, and world state.
// Values round-trip as JSON; the Redis implementation lives in
// internal/storage and an in-memory mock in this package backs tests.
//
// Lookups return (nil, nil) for "not found". A non-nil error means
// "unknown, not necessarily absent"; callers must not take destructive
// actions on that ambiguity.
type Store interface {
	Ping(ctx context.Context) error
	Close() error

	// Characters, keyed by (guild, user): one character per user per guild.
	SaveCharacter(ctx context.Context, c *character.Character) error
	LoadCharacter(ctx context.Context, guildID, userID string) (*character.Character, error)
	DeleteCharacter(ctx context.Context, guildID, userID string) error

	// Areas. Global records may be shadowed by per-guild overrides;
	// LoadArea checks the override before falling back to the global key.
	SaveArea(ctx context.Context, a *world.Area) error
	SaveGuildArea(ctx context.Context, guildID string, a *world.Area) error
	LoadArea(ctx context.Context, guildID, name string) (*world.Area, error)
	ListAreaNames(ctx context.Context) ([]string, error)

	// Parties, keyed by (guild, leader).
	SaveParty(ctx context.Context, p *party.Party) error
	LoadParty(ctx context.Context, guildID, leaderID string) (*party.Party, error)
	DeleteParty(ctx context.Context, guildID, leaderID string) error

	// Recent-encounter history per party, bounded TTL, advisory only.
	// Entries are opaque blobs; absence must never block gameplay.
	AppendEncounter(ctx context.Context, guildID, leaderID string, entry []byte) error
	RecentEncounters(ctx context.Context, guildID, leaderID string) ([]string, error)
}
