// Package report writes the per-guild JSON document produced every round.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/guildwatch/internal/core/domain"
	"github.com/vietddude/guildwatch/internal/core/severity"
	"github.com/vietddude/guildwatch/internal/core/transition"
)

// Document is the human-readable outcome of one guild validation.
type Document struct {
	Guild       string                   `json:"guild"`
	Chain       string                   `json:"chain"`
	ChainLabel  string                   `json:"chain_label"`
	URL         string                   `json:"url"`
	RoundID     uuid.UUID                `json:"round_id"`
	GeneratedAt time.Time                `json:"generated_at"`
	AllChecksOK severity.Level           `json:"all_checks_ok"`
	Checks      []domain.CheckResult     `json:"checks"`
	Nodes       []*domain.NodeValidation `json:"nodes"`
	Messages    []transition.Message     `json:"messages"`
}

// FromValidation builds the report of a guild validation.
func FromValidation(gv *domain.GuildValidation, chainLabel string) *Document {
	return &Document{
		Guild:       gv.Guild,
		Chain:       gv.Chain,
		ChainLabel:  chainLabel,
		URL:         gv.URL,
		RoundID:     gv.RoundID,
		GeneratedAt: gv.CreatedAt,
		AllChecksOK: gv.AllChecksOK,
		Checks:      gv.Checks,
		Nodes:       gv.Nodes,
		Messages:    gv.Messages,
	}
}

// Sink receives reports.
type Sink interface {
	Write(ctx context.Context, doc *Document) error
}

// FileSink writes <dir>/<chain>/<guild>.json.
type FileSink struct {
	dir string
}

// NewFileSink creates a new FileSink rooted at dir.
func NewFileSink(dir string) *FileSink {
	return &FileSink{dir: dir}
}

// Path returns the file a report is written to.
func (s *FileSink) Path(chain, guild string) (string, error) {
	if !safeName(chain) || !safeName(guild) {
		return "", fmt.Errorf("unsafe report name %q/%q", chain, guild)
	}
	return filepath.Join(s.dir, chain, guild+".json"), nil
}

func (s *FileSink) Write(ctx context.Context, doc *Document) error {
	path, err := s.Path(doc.Chain, doc.Guild)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move report into place: %w", err)
	}
	return nil
}

func safeName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// Cache stores the latest encoded report of a guild.
type Cache interface {
	PutReport(ctx context.Context, chain, guild string, data []byte, ttl time.Duration) error
}

// CacheSink keeps the latest report of every guild in a cache.
type CacheSink struct {
	cache Cache
	ttl   time.Duration
}

// NewCacheSink creates a new CacheSink.
func NewCacheSink(cache Cache, ttl time.Duration) *CacheSink {
	return &CacheSink{cache: cache, ttl: ttl}
}

func (s *CacheSink) Write(ctx context.Context, doc *Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return s.cache.PutReport(ctx, doc.Chain, doc.Guild, data, s.ttl)
}

// Multi writes to every sink and joins their errors.
type Multi []Sink

func (m Multi) Write(ctx context.Context, doc *Document) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, doc); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
