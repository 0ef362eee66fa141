package repositories

import (
	"context"
	"database/sql"
	"github.com/myrjola/pinearchives/internal/errors"
	"github.com/myrjola/pinearchives/internal/kvstore"
	"github.com/myrjola/pinearchives/internal/sqlite"
	"log/slog"
	"time"
)

// SnapshotRepository persists case file snapshots in the snapshots table. It satisfies kvstore.Store.
type SnapshotRepository struct {
	db     *sqlite.Database
	logger *slog.Logger
}

func NewSnapshotRepository(db *sqlite.Database, logger *slog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:     db,
		logger: logger.With("source", "SnapshotRepository"),
	}
}

func (r *SnapshotRepository) Get(ctx context.Context, key string) ([]byte, error) {
	var (
		value []byte
		err   error
	)
	stmt := `SELECT value FROM snapshots WHERE key = ?`
	if err = r.db.ReadOnly.GetContext(ctx, &value, stmt, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, kvstore.ErrNotFound
		}
		return nil, errors.Wrap(err, "read snapshot", slog.String("key", key))
	}
	return value, nil
}

func (r *SnapshotRepository) Put(ctx context.Context, key string, value []byte) error {
	stmt := `INSERT INTO snapshots (key, value) VALUES (:key, :value)
ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated = STRFTIME('%Y-%m-%dT%H:%M:%fZ')`
	if _, err := r.db.ReadWrite.NamedExecContext(ctx, stmt, map[string]any{
		"key":   key,
		"value": value,
	}); err != nil {
		return errors.Wrap(err, "upsert snapshot", slog.String("key", key))
	}
	return nil
}

func (r *SnapshotRepository) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ReadWrite.ExecContext(ctx, `DELETE FROM snapshots WHERE key = ?`, key); err != nil {
		return errors.Wrap(err, "delete snapshot", slog.String("key", key))
	}
	return nil
}

// SnapshotInfo describes a stored snapshot without its payload.
type SnapshotInfo struct {
	Key     string    `db:"key"`
	Size    int       `db:"size"`
	Updated time.Time `db:"updated"`
}

// List returns the stored snapshots whose key starts with prefix, most recently updated first.
func (r *SnapshotRepository) List(ctx context.Context, prefix string) ([]SnapshotInfo, error) {
	var (
		rows []struct {
			Key     string `db:"key"`
			Size    int    `db:"size"`
			Updated string `db:"updated"`
		}
		err error
	)
	stmt := `SELECT key, LENGTH(value) AS size, updated FROM snapshots
WHERE SUBSTR(key, 1, LENGTH(?)) = ?
ORDER BY updated DESC, key`
	if err = r.db.ReadOnly.SelectContext(ctx, &rows, stmt, prefix, prefix); err != nil {
		return nil, errors.Wrap(err, "list snapshots", slog.String("prefix", prefix))
	}
	infos := make([]SnapshotInfo, 0, len(rows))
	for _, row := range rows {
		var updated time.Time
		if updated, err = time.Parse(time.RFC3339Nano, row.Updated); err != nil {
			return nil, errors.Wrap(err, "parse updated", slog.String("key", row.Key))
		}
		infos = append(infos, SnapshotInfo{Key: row.Key, Size: row.Size, Updated: updated})
	}
	return infos, nil
}
