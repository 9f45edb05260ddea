package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/core/severity"
	"github.com/vietddude/guildwatch/internal/core/transition"
	"github.com/vietddude/guildwatch/internal/infra/storage"
)

// ValidationRepo implements storage.ValidationRepository using PostgreSQL.
type ValidationRepo struct {
	db *DB
}

// NewValidationRepo creates a new PostgreSQL validation repository.
func NewValidationRepo(db *DB) *ValidationRepo {
	return &ValidationRepo{db: db}
}

type nodeRow struct {
	ID                uuid.UUID      `db:"id"`
	GuildValidationID uuid.UUID      `db:"guild_validation_id"`
	Guild             string         `db:"guild"`
	Chain             string         `db:"chain"`
	Kind              string         `db:"kind"`
	URL               string         `db:"url"`
	Secure            bool           `db:"secure"`
	LocationOK        sql.NullBool   `db:"location_ok"`
	Checks            []byte         `db:"checks"`
	AllChecksOK       string         `db:"all_checks_ok"`
	P2P               sql.NullString `db:"p2p"`
	CreatedAt         time.Time      `db:"created_at"`
}

type guildRow struct {
	ID          uuid.UUID `db:"id"`
	RoundID     uuid.UUID `db:"round_id"`
	Guild       string    `db:"guild"`
	Chain       string    `db:"chain"`
	URL         string    `db:"url"`
	Checks      []byte    `db:"checks"`
	AllChecksOK string    `db:"all_checks_ok"`
	Messages    []byte    `db:"messages"`
	CreatedAt   time.Time `db:"created_at"`
}

// SaveNodeValidation inserts one node verdict.
func (r *ValidationRepo) SaveNodeValidation(ctx context.Context, v *domain.NodeValidation) error {
	checks, err := json.Marshal(v.Checks)
	if err != nil {
		return fmt.Errorf("%w: failed to encode checks: %v", storage.ErrPersistence, err)
	}
	var p2p sql.NullString
	if v.P2P != nil {
		data, err := json.Marshal(v.P2P)
		if err != nil {
			return fmt.Errorf("%w: failed to encode p2p outcome: %v", storage.ErrPersistence, err)
		}
		p2p = sql.NullString{String: string(data), Valid: true}
	}
	var locationOK sql.NullBool
	if v.LocationOK != nil {
		locationOK = sql.NullBool{Bool: *v.LocationOK, Valid: true}
	}

	query := `
		INSERT INTO node_validations
			(id, guild_validation_id, guild, chain, kind, url, secure, location_ok, checks, all_checks_ok, p2p, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11::jsonb, $12)
	`
	_, err = r.db.ExecContext(ctx, query,
		v.ID,
		v.GuildValidationID,
		v.Guild,
		v.Chain,
		string(v.Kind),
		v.URL,
		v.Secure,
		locationOK,
		string(checks),
		string(v.AllChecksOK),
		p2p,
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save node validation: %v", storage.ErrPersistence, err)
	}
	return nil
}

// SaveGuildValidation inserts one guild verdict. Nodes are saved separately.
func (r *ValidationRepo) SaveGuildValidation(ctx context.Context, v *domain.GuildValidation) error {
	checks, err := json.Marshal(v.Checks)
	if err != nil {
		return fmt.Errorf("%w: failed to encode checks: %v", storage.ErrPersistence, err)
	}
	messages, err := json.Marshal(v.Messages)
	if err != nil {
		return fmt.Errorf("%w: failed to encode messages: %v", storage.ErrPersistence, err)
	}

	query := `
		INSERT INTO guild_validations
			(id, round_id, guild, chain, url, checks, all_checks_ok, messages, created_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8::jsonb, $9)
	`
	_, err = r.db.ExecContext(ctx, query,
		v.ID,
		v.RoundID,
		v.Guild,
		v.Chain,
		v.URL,
		string(checks),
		string(v.AllChecksOK),
		string(messages),
		v.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("%w: failed to save guild validation: %v", storage.ErrPersistence, err)
	}
	return nil
}

// FindLastGuildValidation loads the newest guild verdict and its nodes.
func (r *ValidationRepo) FindLastGuildValidation(ctx context.Context, guild, chain string) (*domain.GuildValidation, error) {
	var row guildRow
	err := r.db.GetContext(ctx, &row, `
		SELECT id, round_id, guild, chain, url, checks, all_checks_ok, messages, created_at
		FROM guild_validations
		WHERE guild = $1 AND chain = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, guild, chain)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load guild validation: %v", storage.ErrPersistence, err)
	}

	v := &domain.GuildValidation{
		ID:          row.ID,
		RoundID:     row.RoundID,
		Guild:       row.Guild,
		Chain:       row.Chain,
		URL:         row.URL,
		AllChecksOK: severity.Level(row.AllChecksOK),
		CreatedAt:   row.CreatedAt,
	}
	if err := json.Unmarshal(row.Checks, &v.Checks); err != nil {
		return nil, fmt.Errorf("%w: bad checks column: %v", storage.ErrPersistence, err)
	}
	var messages []transition.Message
	if err := json.Unmarshal(row.Messages, &messages); err != nil {
		return nil, fmt.Errorf("%w: bad messages column: %v", storage.ErrPersistence, err)
	}
	v.Messages = messages

	var nodes []nodeRow
	err = r.db.SelectContext(ctx, &nodes, `
		SELECT id, guild_validation_id, guild, chain, kind, url, secure, location_ok, checks, all_checks_ok, p2p, created_at
		FROM node_validations
		WHERE guild_validation_id = $1
		ORDER BY kind, url
	`, row.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load node validations: %v", storage.ErrPersistence, err)
	}
	for _, n := range nodes {
		node, err := n.toDomain()
		if err != nil {
			return nil, err
		}
		v.Nodes = append(v.Nodes, node)
	}
	return v, nil
}

func (n nodeRow) toDomain() (*domain.NodeValidation, error) {
	v := &domain.NodeValidation{
		ID:                n.ID,
		GuildValidationID: n.GuildValidationID,
		Guild:             n.Guild,
		Chain:             n.Chain,
		Kind:              domain.NodeKind(n.Kind),
		URL:               n.URL,
		Secure:            n.Secure,
		AllChecksOK:       severity.Level(n.AllChecksOK),
		CreatedAt:         n.CreatedAt,
	}
	if n.LocationOK.Valid {
		ok := n.LocationOK.Bool
		v.LocationOK = &ok
	}
	if err := json.Unmarshal(n.Checks, &v.Checks); err != nil {
		return nil, fmt.Errorf("%w: bad node checks column: %v", storage.ErrPersistence, err)
	}
	if n.P2P.Valid {
		v.P2P = &domain.P2POutcome{}
		if err := json.Unmarshal([]byte(n.P2P.String), v.P2P); err != nil {
			return nil, fmt.Errorf("%w: bad p2p column: %v", storage.ErrPersistence, err)
		}
	}
	return v, nil
}

// DeleteOlderThan prunes validations of a chain created before the threshold.
func (r *ValidationRepo) DeleteOlderThan(ctx context.Context, chain string, before time.Time) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin prune: %v", storage.ErrPersistence, err)
	}
	defer tx.Rollback()

	var total int64
	for _, table := range []string{"node_validations", "guild_validations"} {
		res, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE chain = $1 AND created_at < $2", chain, before)
		if err != nil {
			return 0, fmt.Errorf("%w: failed to prune %s: %v", storage.ErrPersistence, table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: failed to commit prune: %v", storage.ErrPersistence, err)
	}
	return total, nil
}
