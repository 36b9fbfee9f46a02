package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// Record is any document with a stable identifier.
type Record interface {
	RecordID() string
}

// Collection is a typed view over one table of JSON documents. Queries
// decode each row and apply Go predicates; at this store's scale a scan
// under the lock is the intended access pattern.
type Collection[T Record] struct {
	table string
}

func collection[T Record](table string) Collection[T] {
	tables = append(tables, table)
	return Collection[T]{table: table}
}

func (c Collection[T]) Get(tx *Tx, id string) (T, bool, error) {
	var zero T
	var doc string
	row := tx.tx.QueryRow(fmt.Sprintf(`SELECT doc FROM %q WHERE id = ?`, c.table), id)
	if err := row.Scan(&doc); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return zero, false, nil
		}
		return zero, false, fmt.Errorf("%s get: %w", c.table, err)
	}
	var rec T
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return zero, false, fmt.Errorf("%s decode %s: %w", c.table, id, err)
	}
	return rec, true, nil
}

func (c Collection[T]) scan(tx *Tx, visit func(T) (stop bool)) error {
	rows, err := tx.tx.Query(fmt.Sprintf(`SELECT doc FROM %q`, c.table))
	if err != nil {
		return fmt.Errorf("%s scan: %w", c.table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("%s scan: %w", c.table, err)
		}
		var rec T
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			return fmt.Errorf("%s decode: %w", c.table, err)
		}
		if visit(rec) {
			break
		}
	}
	return rows.Err()
}

func (c Collection[T]) FindOne(tx *Tx, pred func(T) bool) (T, bool, error) {
	var out T
	var found bool
	err := c.scan(tx, func(rec T) bool {
		if pred(rec) {
			out, found = rec, true
			return true
		}
		return false
	})
	return out, found, err
}

func (c Collection[T]) Find(tx *Tx, pred func(T) bool) ([]T, error) {
	var out []T
	err := c.scan(tx, func(rec T) bool {
		if pred(rec) {
			out = append(out, rec)
		}
		return false
	})
	return out, err
}

func (c Collection[T]) All(tx *Tx) ([]T, error) {
	return c.Find(tx, func(T) bool { return true })
}

func (c Collection[T]) Exists(tx *Tx, pred func(T) bool) (bool, error) {
	_, found, err := c.FindOne(tx, pred)
	return found, err
}

func (c Collection[T]) Count(tx *Tx, pred func(T) bool) (int, error) {
	n := 0
	err := c.scan(tx, func(rec T) bool {
		if pred(rec) {
			n++
		}
		return false
	})
	return n, err
}

// Insert fails if a record with the same id already exists.
func (c Collection[T]) Insert(tx *Tx, rec T) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s encode: %w", c.table, err)
	}
	if _, err := tx.tx.Exec(fmt.Sprintf(`INSERT INTO %q (id, doc) VALUES (?, ?)`, c.table), rec.RecordID(), string(doc)); err != nil {
		return fmt.Errorf("%s insert %s: %w", c.table, rec.RecordID(), err)
	}
	return nil
}

// Update replaces the stored document for the record's id.
func (c Collection[T]) Update(tx *Tx, rec T) error {
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("%s encode: %w", c.table, err)
	}
	res, err := tx.tx.Exec(fmt.Sprintf(`UPDATE %q SET doc = ? WHERE id = ?`, c.table), string(doc), rec.RecordID())
	if err != nil {
		return fmt.Errorf("%s update %s: %w", c.table, rec.RecordID(), err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s update %s: no such record", c.table, rec.RecordID())
	}
	return nil
}

func (c Collection[T]) Delete(tx *Tx, id string) error {
	if _, err := tx.tx.Exec(fmt.Sprintf(`DELETE FROM %q WHERE id = ?`, c.table), id); err != nil {
		return fmt.Errorf("%s delete %s: %w", c.table, id, err)
	}
	return nil
}

// DeleteWhere removes every matching record and reports how many went.
func (c Collection[T]) DeleteWhere(tx *Tx, pred func(T) bool) (int, error) {
	matches, err := c.Find(tx, pred)
	if err != nil {
		return 0, err
	}
	for _, rec := range matches {
		if err := c.Delete(tx, rec.RecordID()); err != nil {
			return 0, err
		}
	}
	return len(matches), nil
}
