package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/jcourtner/wayfarer/pkg/character"
	"github.com/jcourtner/wayfarer/pkg/party"
	"github.com/jcourtner/wayfarer/pkg/world"
)

// MockStore is an in-memory Store for tests. Values are kept as JSON blobs
// so tests exercise the same serialization path as the Redis store.
type MockStore struct {
	mu         sync.RWMutex
	data       map[string]string
	areaIndex  map[string]bool
	encounters map[string][]string

	// FailWrites makes every write return an error, for storage-failure paths.
	FailWrites bool
}

var _ Store = (*MockStore)(nil)

// NewMockStore creates an empty mock store.
func NewMockStore() *MockStore {
	return &MockStore{
		data:       make(map[string]string),
		areaIndex:  make(map[string]bool),
		encounters: make(map[string][]string),
	}
}

func (m *MockStore) Ping(ctx context.Context) error { return nil }
func (m *MockStore) Close() error                   { return nil }

func (m *MockStore) put(key string, v any) error {
	if m.FailWrites {
		return fmt.Errorf("mock store: writes disabled")
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = string(data)
	return nil
}

func (m *MockStore) get(key string, v any) (bool, error) {
	m.mu.RLock()
	raw, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal([]byte(raw), v)
}

func (m *MockStore) del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

func (m *MockStore) SaveCharacter(ctx context.Context, c *character.Character) error {
	return m.put(CharacterKey(c.GuildID, c.UserID), c)
}

func (m *MockStore) LoadCharacter(ctx context.Context, guildID, userID string) (*character.Character, error) {
	var c character.Character
	ok, err := m.get(CharacterKey(guildID, userID), &c)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

func (m *MockStore) DeleteCharacter(ctx context.Context, guildID, userID string) error {
	m.del(CharacterKey(guildID, userID))
	return nil
}

func (m *MockStore) SaveArea(ctx context.Context, a *world.Area) error {
	if err := m.put(AreaKey(a.Name), a); err != nil {
		return err
	}
	m.mu.Lock()
	m.areaIndex[a.Name] = true
	m.mu.Unlock()
	return nil
}

func (m *MockStore) SaveGuildArea(ctx context.Context, guildID string, a *world.Area) error {
	return m.put(GuildAreaKey(guildID, a.Name), a)
}

func (m *MockStore) LoadArea(ctx context.Context, guildID, name string) (*world.Area, error) {
	var a world.Area
	if guildID != "" {
		ok, err := m.get(GuildAreaKey(guildID, name), &a)
		if err != nil {
			return nil, err
		}
		if ok {
			return &a, nil
		}
	}
	ok, err := m.get(AreaKey(name), &a)
	if err != nil || !ok {
		return nil, err
	}
	return &a, nil
}

func (m *MockStore) ListAreaNames(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.areaIndex))
	for name := range m.areaIndex {
		names = append(names, name)
	}
	return names, nil
}

func (m *MockStore) SaveParty(ctx context.Context, p *party.Party) error {
	return m.put(PartyKey(p.GuildID, p.LeaderID), p)
}

func (m *MockStore) LoadParty(ctx context.Context, guildID, leaderID string) (*party.Party, error) {
	var p party.Party
	ok, err := m.get(PartyKey(guildID, leaderID), &p)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

func (m *MockStore) DeleteParty(ctx context.Context, guildID, leaderID string) error {
	m.del(PartyKey(guildID, leaderID))
	return nil
}

func (m *MockStore) AppendEncounter(ctx context.Context, guildID, leaderID string, entry []byte) error {
	if m.FailWrites {
		return fmt.Errorf("mock store: writes disabled")
	}
	key := EncounterKey(guildID, leaderID)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encounters[key] = append(m.encounters[key], string(entry))
	return nil
}

func (m *MockStore) RecentEncounters(ctx context.Context, guildID, leaderID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.encounters[EncounterKey(guildID, leaderID)]
	out := make([]string, len(entries))
	copy(out, entries)
	return out, nil
}

// Key builders, shared with the Redis implementation so the logical key
// scheme lives in one place.

func CharacterKey(guildID, userID string) string {
	return fmt.Sprintf("character:%s:%s", guildID, userID)
}

func AreaKey(name string) string {
	return "area:" + strings.ToLower(name)
}

func GuildAreaKey(guildID, name string) string {
	return fmt.Sprintf("server:%s:area:%s", guildID, strings.ToLower(name))
}

func PartyKey(guildID, leaderID string) string {
	return fmt.Sprintf("party:%s:%s", guildID, leaderID)
}

func EncounterKey(guildID, leaderID string) string {
	return fmt.Sprintf("encounters:%s:%s", guildID, leaderID)
}

// AreaIndexKey is the set of all global area names.
const AreaIndexKey = "area:index"
