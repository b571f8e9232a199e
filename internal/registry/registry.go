// Package registry caches SSDP advertisements seen by a control
// point, keyed by USN. Live services can be queried by search target;
// byebye notifications and expiry evict entries. The cache is backed
// by SQLite so discoveries survive restarts.
package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seattlerb/upnp/internal/store"
	"github.com/seattlerb/upnp/pkg/ssdp"
)

// Entry is one cached advertisement.
type Entry struct {
	USN      string
	Target   string // ST or NT
	Location string
	Server   string
	LastSeen time.Time
	Expires  time.Time // zero when the advertisement had no max-age
}

// Expired reports whether the entry's lifetime has passed.
func (e *Entry) Expired(now time.Time) bool {
	return !e.Expires.IsZero() && now.After(e.Expires)
}

// Registry upserts advertisements into the store and answers queries.
type Registry struct {
	db     *store.SQLiteStore
	logger *zap.Logger
}

var migrations = []store.Migration{
	{
		Version:     1,
		Description: "create advertisements table",
		Up: func(tx *sql.Tx) error {
			stmts := []string{
				`CREATE TABLE advertisements (
					usn       TEXT PRIMARY KEY,
					target    TEXT NOT NULL,
					location  TEXT NOT NULL DEFAULT '',
					server    TEXT NOT NULL DEFAULT '',
					last_seen DATETIME NOT NULL,
					expires   DATETIME
				)`,
				`CREATE INDEX idx_advertisements_target ON advertisements(target)`,
			}
			for _, stmt := range stmts {
				if _, err := tx.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// New migrates the advertisements schema and returns the registry.
func New(ctx context.Context, db *store.SQLiteStore, logger *zap.Logger) (*Registry, error) {
	if err := db.Migrate(ctx, "registry", migrations); err != nil {
		return nil, fmt.Errorf("registry: migrate: %w", err)
	}
	return &Registry{db: db, logger: logger}, nil
}

// Observe folds one advertisement into the cache. Alive notifications
// and search responses upsert; byebye deletes; searches are ignored.
func (r *Registry) Observe(ctx context.Context, adv ssdp.Advertisement) error {
	switch a := adv.(type) {
	case *ssdp.Notification:
		if a.Byebye() {
			return r.remove(ctx, a.Name)
		}
		return r.upsert(ctx, &Entry{
			USN:      a.Name,
			Target:   a.Type,
			Location: a.Location,
			Server:   a.Server,
			LastSeen: a.Date,
			Expires:  expiry(a.Date, a.MaxAge),
		})
	case *ssdp.Response:
		return r.upsert(ctx, &Entry{
			USN:      a.Name,
			Target:   a.Target,
			Location: a.Location,
			Server:   a.Server,
			LastSeen: a.Date,
			Expires:  expiry(a.Date, a.MaxAge),
		})
	default:
		return nil
	}
}

// Consume drains a listener channel into the cache until the channel
// closes or ctx ends. Intended to run in its own goroutine.
func (r *Registry) Consume(ctx context.Context, ch <-chan ssdp.Advertisement) {
	for {
		select {
		case <-ctx.Done():
			return
		case adv, ok := <-ch:
			if !ok {
				return
			}
			if err := r.Observe(ctx, adv); err != nil {
				r.logger.Warn("advertisement not recorded", zap.Error(err))
			}
		}
	}
}

// ByTarget returns the live entries advertising the given target.
func (r *Registry) ByTarget(ctx context.Context, target string) ([]Entry, error) {
	return r.query(ctx,
		`SELECT usn, target, location, server, last_seen, expires
		 FROM advertisements WHERE target = ? ORDER BY usn`, target)
}

// All returns every live entry.
func (r *Registry) All(ctx context.Context) ([]Entry, error) {
	return r.query(ctx,
		`SELECT usn, target, location, server, last_seen, expires
		 FROM advertisements ORDER BY usn`)
}

// Prune deletes expired entries and returns how many were removed.
func (r *Registry) Prune(ctx context.Context) (int, error) {
	res, err := r.db.DB().ExecContext(ctx,
		"DELETE FROM advertisements WHERE expires IS NOT NULL AND expires < ?",
		time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("registry: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		r.logger.Debug("pruned expired advertisements", zap.Int64("count", n))
	}
	return int(n), nil
}

func (r *Registry) upsert(ctx context.Context, e *Entry) error {
	var expires any
	if !e.Expires.IsZero() {
		expires = e.Expires.UTC()
	}
	_, err := r.db.DB().ExecContext(ctx, `
		INSERT INTO advertisements (usn, target, location, server, last_seen, expires)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(usn) DO UPDATE SET
			target = excluded.target,
			location = excluded.location,
			server = excluded.server,
			last_seen = excluded.last_seen,
			expires = excluded.expires`,
		e.USN, e.Target, e.Location, e.Server, e.LastSeen.UTC(), expires)
	if err != nil {
		return fmt.Errorf("registry: upsert %s: %w", e.USN, err)
	}
	return nil
}

func (r *Registry) remove(ctx context.Context, usn string) error {
	_, err := r.db.DB().ExecContext(ctx,
		"DELETE FROM advertisements WHERE usn = ?", usn)
	if err != nil {
		return fmt.Errorf("registry: remove %s: %w", usn, err)
	}
	r.logger.Debug("advertisement removed", zap.String("usn", usn))
	return nil
}

func (r *Registry) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := r.db.DB().QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("registry: query: %w", err)
	}
	defer rows.Close()

	now := time.Now()
	var out []Entry
	for rows.Next() {
		var e Entry
		var expires sql.NullTime
		if err := rows.Scan(&e.USN, &e.Target, &e.Location, &e.Server, &e.LastSeen, &expires); err != nil {
			return nil, fmt.Errorf("registry: scan: %w", err)
		}
		if expires.Valid {
			e.Expires = expires.Time
		}
		if e.Expired(now) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func expiry(date time.Time, maxAge int) time.Time {
	if maxAge <= 0 {
		return time.Time{}
	}
	return date.Add(time.Duration(maxAge) * time.Second)
}
