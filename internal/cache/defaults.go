// Package cache holds the process-wide SectionTemplate defaults cache.
package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"receiptmaker/internal/logger"
	"receiptmaker/internal/receipt"

	"github.com/sirupsen/logrus"
)

// Repository loads every admin-configured section default keyed by type.
type Repository interface {
	LoadDefaults(ctx context.Context) (map[receipt.Kind]receipt.Section, error)
}

// Store is where resolved defaults live between requests.
type Store interface {
	// Get reports whether the store has been populated and, if so, the entry
	// for kind (nil when the kind is not configured).
	Get(ctx context.Context, kind receipt.Kind) (sec receipt.Section, loaded bool, err error)
	Fill(ctx context.Context, defaults map[receipt.Kind]receipt.Section) error
	Clear(ctx context.Context) error
}

// SectionDefaults resolves kind -> default section. It is lazily populated
// from the repository on first use and must be invalidated on every admin
// write. Kinds without a configured default fall back to the hardcoded one.
type SectionDefaults struct {
	repo  Repository
	store Store
	now   func() time.Time
	log   logrus.FieldLogger
	mu    sync.Mutex
}

func NewSectionDefaults(repo Repository, store Store, log logrus.FieldLogger) *SectionDefaults {
	if store == nil {
		store = NewMemoryStore()
	}
	if log == nil {
		log = logger.Get()
	}
	return &SectionDefaults{repo: repo, store: store, now: time.Now, log: log}
}

// Default never returns a nil section for a known kind. The result is a copy
// the caller may mutate.
func (d *SectionDefaults) Default(ctx context.Context, kind receipt.Kind) (receipt.Section, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", receipt.ErrUnknownKind, kind)
	}

	sec, loaded, err := d.store.Get(ctx, kind)
	if err != nil {
		logger.LogWarn(d.log, "cache", "SectionDefaults.Default", "store get", kind, err)
	} else if loaded {
		return d.resolve(kind, sec)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Another caller may have populated the store while we waited.
	if sec, loaded, err := d.store.Get(ctx, kind); err == nil && loaded {
		return d.resolve(kind, sec)
	}

	all, err := d.repo.LoadDefaults(ctx)
	if err != nil {
		logger.LogWarn(d.log, "cache", "SectionDefaults.Default", "load section templates", kind, err)
		return receipt.HardcodedDefault(kind, d.now())
	}
	if err := d.store.Fill(ctx, all); err != nil {
		logger.LogWarn(d.log, "cache", "SectionDefaults.Default", "store fill", kind, err)
	}
	return d.resolve(kind, all[kind])
}

func (d *SectionDefaults) resolve(kind receipt.Kind, sec receipt.Section) (receipt.Section, error) {
	if sec == nil {
		return receipt.HardcodedDefault(kind, d.now())
	}
	return receipt.CloneSection(sec), nil
}

// Invalidate drops every cached default. The next Default call reloads.
func (d *SectionDefaults) Invalidate(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear section defaults: %w", err)
	}
	return nil
}
