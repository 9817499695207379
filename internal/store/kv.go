package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
)

// Get returns the value stored under key. ok is false when the key is absent.
func (d *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM local_storage WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading %s: %w", key, err)
	}
	return value, true, nil
}

// Update writes every entry of set and removes every key in remove in a
// single transaction: either all of it lands or none of it does.
func (d *DB) Update(ctx context.Context, set map[string]string, remove []string) error {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return d.withTx(ctx, func(tx execer) error {
		for _, k := range keys {
			if _, err := tx.ExecContext(ctx, `INSERT INTO local_storage (key, value) VALUES (?, ?)
				ON CONFLICT(key) DO UPDATE SET value = excluded.value`, k, set[k]); err != nil {
				return fmt.Errorf("writing %s: %w", k, err)
			}
		}
		for _, k := range remove {
			if _, err := tx.ExecContext(ctx, `DELETE FROM local_storage WHERE key = ?`, k); err != nil {
				return fmt.Errorf("deleting %s: %w", k, err)
			}
		}
		return nil
	})
}
