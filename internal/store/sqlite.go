package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// IntTable is a SQLite-backed store over a two-column table
// (id INTEGER PRIMARY KEY AUTOINCREMENT, data TEXT NOT NULL). Values travel
// as JSON payloads, matching the original schema's converter-mapped columns.
type IntTable[V any] struct {
	DB    *sql.DB
	Table string
	// SetID embeds the assigned row id into the value before it is stored,
	// so decoded values carry their own key.
	SetID func(*V, int64)
}

func (t *IntTable[V]) Get(ctx context.Context, key int64) (V, error) {
	var zero V
	var data string
	err := t.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE id=?`, t.Table), key).Scan(&data)
	if err == sql.ErrNoRows {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, err
	}
	return decode[V](data)
}

func (t *IntTable[V]) Has(ctx context.Context, key int64) (bool, error) {
	var n int
	err := t.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE id=? LIMIT 1`, t.Table), key).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (t *IntTable[V]) Insert(ctx context.Context, value V) (int64, error) {
	tx, err := t.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()
	payload, err := json.Marshal(value)
	if err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(data) VALUES (?)`, t.Table), string(payload))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if t.SetID != nil {
		t.SetID(&value, id)
		payload, err = json.Marshal(value)
		if err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET data=? WHERE id=?`, t.Table), string(payload), id); err != nil {
			return 0, err
		}
	}
	return id, tx.Commit()
}

func (t *IntTable[V]) InsertWithKey(ctx context.Context, key int64, value V) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = t.DB.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(id,data) VALUES (?,?)`, t.Table), key, string(payload))
	return mapConstraint(err)
}

func (t *IntTable[V]) Update(ctx context.Context, key int64, value V) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	res, err := t.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET data=? WHERE id=?`, t.Table), string(payload), key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *IntTable[V]) Delete(ctx context.Context, key int64) error {
	res, err := t.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id=?`, t.Table), key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *IntTable[V]) Select(ctx context.Context, pred func(V) bool) ([]V, error) {
	return selectScan[V](ctx, t.DB, t.Table, pred)
}

// NameTable is a SQLite-backed store keyed by a caller-assigned string
// (key TEXT PRIMARY KEY, data TEXT NOT NULL).
type NameTable[V any] struct {
	DB    *sql.DB
	Table string
}

func (t *NameTable[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V
	var data string
	err := t.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT data FROM %s WHERE key=?`, t.Table), key).Scan(&data)
	if err == sql.ErrNoRows {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, err
	}
	return decode[V](data)
}

func (t *NameTable[V]) Has(ctx context.Context, key string) (bool, error) {
	var n int
	err := t.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT 1 FROM %s WHERE key=? LIMIT 1`, t.Table), key).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (t *NameTable[V]) Insert(_ context.Context, _ V) (string, error) {
	return "", ErrKeyRequired
}

func (t *NameTable[V]) InsertWithKey(ctx context.Context, key string, value V) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	_, err = t.DB.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s(key,data) VALUES (?,?)`, t.Table), key, string(payload))
	return mapConstraint(err)
}

func (t *NameTable[V]) Update(ctx context.Context, key string, value V) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	res, err := t.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET data=? WHERE key=?`, t.Table), string(payload), key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *NameTable[V]) Delete(ctx context.Context, key string) error {
	res, err := t.DB.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key=?`, t.Table), key)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *NameTable[V]) Select(ctx context.Context, pred func(V) bool) ([]V, error) {
	return selectScan[V](ctx, t.DB, t.Table, pred)
}

func selectScan[V any](ctx context.Context, db *sql.DB, table string, pred func(V) bool) ([]V, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf(`SELECT data FROM %s`, table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []V
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		v, err := decode[V](data)
		if err != nil {
			return nil, err
		}
		if pred == nil || pred(v) {
			out = append(out, v)
		}
	}
	return out, rows.Err()
}

func decode[V any](data string) (V, error) {
	var v V
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return v, fmt.Errorf("decode row: %w", err)
	}
	return v, nil
}

func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint") {
		return ErrDuplicateKey
	}
	return err
}
