package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/guildwatch/internal/core/domain"
)

// Storage keeps the directory and validation history in process memory.
type Storage struct {
	guilds      map[string]*domain.Guild
	nodes       map[uuid.UUID]*domain.NodeValidation
	validations []*domain.GuildValidation
	mu          sync.RWMutex
}

func NewStorage() *Storage {
	return &Storage{
		guilds: make(map[string]*domain.Guild),
		nodes:  make(map[uuid.UUID]*domain.NodeValidation),
	}
}

func guildKey(chain, name string) string {
	return chain + "/" + name
}

// -----------------------------------------------------------------------------
// Guild Repository
// -----------------------------------------------------------------------------

type GuildRepo struct {
	store *Storage
}

func NewGuildRepo(store *Storage) *GuildRepo {
	return &GuildRepo{store: store}
}

func (r *GuildRepo) Upsert(ctx context.Context, g *domain.Guild) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	now := time.Now()
	key := guildKey(g.Chain, g.Name)
	if existing, ok := r.store.guilds[key]; ok {
		existing.URL = g.URL
		existing.LocationCode = g.LocationCode
		existing.UpdatedAt = now
		return false, nil
	}

	stored := *g
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.store.guilds[key] = &stored
	return true, nil
}

func (r *GuildRepo) ListTracked(ctx context.Context, chain string) ([]*domain.Guild, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var out []*domain.Guild
	for _, g := range r.store.guilds {
		if g.Chain == chain {
			copied := *g
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// -----------------------------------------------------------------------------
// Validation Repository
// -----------------------------------------------------------------------------

type ValidationRepo struct {
	store *Storage
}

func NewValidationRepo(store *Storage) *ValidationRepo {
	return &ValidationRepo{store: store}
}

func (r *ValidationRepo) SaveNodeValidation(ctx context.Context, v *domain.NodeValidation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.nodes[v.ID] = v
	return nil
}

func (r *ValidationRepo) SaveGuildValidation(ctx context.Context, v *domain.GuildValidation) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.validations = append(r.store.validations, v)
	return nil
}

func (r *ValidationRepo) FindLastGuildValidation(ctx context.Context, guild, chain string) (*domain.GuildValidation, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var last *domain.GuildValidation
	for _, v := range r.store.validations {
		if v.Guild != guild || v.Chain != chain {
			continue
		}
		if last == nil || !v.CreatedAt.Before(last.CreatedAt) {
			last = v
		}
	}
	if last == nil {
		return nil, nil
	}

	found := *last
	found.Nodes = nil
	for _, n := range r.store.nodes {
		if n.GuildValidationID == last.ID {
			found.Nodes = append(found.Nodes, n)
		}
	}
	sort.Slice(found.Nodes, func(i, j int) bool {
		if found.Nodes[i].Kind != found.Nodes[j].Kind {
			return found.Nodes[i].Kind < found.Nodes[j].Kind
		}
		return found.Nodes[i].URL < found.Nodes[j].URL
	})
	return &found, nil
}

func (r *ValidationRepo) DeleteOlderThan(ctx context.Context, chain string, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	var deleted int64
	for id, n := range r.store.nodes {
		if n.Chain == chain && n.CreatedAt.Before(before) {
			delete(r.store.nodes, id)
			deleted++
		}
	}

	kept := r.store.validations[:0]
	for _, v := range r.store.validations {
		if v.Chain == chain && v.CreatedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, v)
	}
	r.store.validations = kept
	return deleted, nil
}
