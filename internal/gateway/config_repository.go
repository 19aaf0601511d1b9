package gateway

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"time"

	"payhub/internal/db"

	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

var ErrConfigNotFound = errors.New("gateway config not found")

type ConfigRepository interface {
	List(ctx context.Context) ([]Config, error)
	Get(ctx context.Context, p Provider) (*Config, error)
	// ActivePrimary returns the single row that is both active and primary.
	ActivePrimary(ctx context.Context) (*Config, error)
	// SetPrimary activates p and makes it the only primary row in one transaction.
	SetPrimary(ctx context.Context, p Provider) error
	// Upsert writes everything except the primary flag. Deactivating a row also clears its primary flag.
	Upsert(ctx context.Context, cfg Config) error
}

const configColumns = `provider, display_name, is_active, is_primary, config, supported_methods, updated_at`

type PostgresConfigRepository struct {
	db *sqlx.DB
}

func NewConfigRepository(sqlxDB *sqlx.DB) *PostgresConfigRepository {
	return &PostgresConfigRepository{db: sqlxDB}
}

func (r *PostgresConfigRepository) List(ctx context.Context) ([]Config, error) {
	cfgs := []Config{}
	err := r.db.SelectContext(ctx, &cfgs,
		`SELECT `+configColumns+`
		 FROM payment_gateway_configs
		 ORDER BY is_primary DESC, provider`)
	return cfgs, err
}

func (r *PostgresConfigRepository) Get(ctx context.Context, p Provider) (*Config, error) {
	cfg := &Config{}
	err := r.db.GetContext(ctx, cfg,
		`SELECT `+configColumns+`
		 FROM payment_gateway_configs
		 WHERE provider = $1`, p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrConfigNotFound
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *PostgresConfigRepository) ActivePrimary(ctx context.Context) (*Config, error) {
	cfg := &Config{}
	err := r.db.GetContext(ctx, cfg,
		`SELECT `+configColumns+`
		 FROM payment_gateway_configs
		 WHERE is_active AND is_primary
		 LIMIT 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActiveGateway
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (r *PostgresConfigRepository) SetPrimary(ctx context.Context, p Provider) error {
	return db.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx,
			`UPDATE payment_gateway_configs
			 SET is_primary = FALSE, updated_at = NOW()
			 WHERE is_primary AND provider <> $1`, p)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE payment_gateway_configs
			 SET is_primary = TRUE, is_active = TRUE, updated_at = NOW()
			 WHERE provider = $1`, p)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrConfigNotFound
		}
		return nil
	})
}

func (r *PostgresConfigRepository) Upsert(ctx context.Context, cfg Config) error {
	if len(cfg.Settings) == 0 {
		cfg.Settings = types.JSONText("{}")
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_gateway_configs (provider, display_name, is_active, config, supported_methods, updated_at)
		 VALUES ($1, $2, $3, $4, $5, NOW())
		 ON CONFLICT (provider) DO UPDATE SET
		     display_name = EXCLUDED.display_name,
		     is_active = EXCLUDED.is_active,
		     is_primary = payment_gateway_configs.is_primary AND EXCLUDED.is_active,
		     config = EXCLUDED.config,
		     supported_methods = EXCLUDED.supported_methods,
		     updated_at = NOW()`,
		cfg.Provider, cfg.DisplayName, cfg.IsActive, cfg.Settings, cfg.SupportedMethods,
	)
	return err
}

type MemoryConfigRepository struct {
	mu   sync.RWMutex
	rows map[Provider]Config
}

func NewMemoryConfigRepository(cfgs ...Config) *MemoryConfigRepository {
	r := &MemoryConfigRepository{rows: make(map[Provider]Config)}
	for _, cfg := range cfgs {
		if cfg.UpdatedAt.IsZero() {
			cfg.UpdatedAt = time.Now()
		}
		r.rows[cfg.Provider] = cfg
	}
	return r
}

func (r *MemoryConfigRepository) List(_ context.Context) ([]Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Config, 0, len(r.rows))
	for _, cfg := range r.rows {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsPrimary != out[j].IsPrimary {
			return out[i].IsPrimary
		}
		return out[i].Provider < out[j].Provider
	})
	return out, nil
}

func (r *MemoryConfigRepository) Get(_ context.Context, p Provider) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.rows[p]
	if !ok {
		return nil, ErrConfigNotFound
	}
	return &cfg, nil
}

func (r *MemoryConfigRepository) ActivePrimary(_ context.Context) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, cfg := range r.rows {
		if cfg.IsActive && cfg.IsPrimary {
			c := cfg
			return &c, nil
		}
	}
	return nil, ErrNoActiveGateway
}

func (r *MemoryConfigRepository) SetPrimary(_ context.Context, p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	target, ok := r.rows[p]
	if !ok {
		return ErrConfigNotFound
	}
	now := time.Now()
	for k, cfg := range r.rows {
		if cfg.IsPrimary && k != p {
			cfg.IsPrimary = false
			cfg.UpdatedAt = now
			r.rows[k] = cfg
		}
	}
	target.IsPrimary = true
	target.IsActive = true
	target.UpdatedAt = now
	r.rows[p] = target
	return nil
}

func (r *MemoryConfigRepository) Upsert(_ context.Context, cfg Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.rows[cfg.Provider]
	cfg.IsPrimary = ok && existing.IsPrimary && cfg.IsActive
	cfg.UpdatedAt = time.Now()
	r.rows[cfg.Provider] = cfg
	return nil
}
