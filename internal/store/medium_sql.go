// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/sndie3/LABAN/internal/logger"
)

// createMediumTable is idempotent on SQLite and Postgres. The shared table is
// created in place rather than through versioned migrations because every
// device opening the medium would race on the version table.
const createMediumTable = `CREATE TABLE IF NOT EXISTS mesh_entries (
	entry_key TEXT PRIMARY KEY,
	value     TEXT NOT NULL
)`

// SQLMedium is a [Medium] over a SQL table shared by every device: a SQLite
// file on a common volume or a Postgres database on the local network.
type SQLMedium struct {
	db      *DB
	builder sq.StatementBuilderType
}

// NewSQLMedium prepares the shared table on db. placeholder must match the
// driver: [sq.Question] for SQLite, [sq.Dollar] for Postgres.
func NewSQLMedium(ctx context.Context, db *DB, placeholder sq.PlaceholderFormat) (*SQLMedium, error) {
	if _, err := db.ExecContext(ctx, createMediumTable); err != nil {
		return nil, fmt.Errorf("%w: create medium table: %w", ErrExecutingStatement, err)
	}
	return &SQLMedium{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(placeholder),
	}, nil
}

func (m *SQLMedium) Put(ctx context.Context, key string, value []byte) error {
	query, args, err := m.builder.
		Insert(mediumTable).
		Columns("entry_key", "value").
		Values(key, string(value)).
		Suffix("ON CONFLICT (entry_key) DO UPDATE SET value = excluded.value").
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	err = m.db.withRetry(ctx, func() error {
		_, execErr := m.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "SQLMedium.Put").Str("key", key).Msg("failed to write medium entry")
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (m *SQLMedium) Get(ctx context.Context, key string) ([]byte, error) {
	query, args, err := m.builder.
		Select("value").
		From(mediumTable).
		Where(sq.Eq{"entry_key": key}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	var value string
	err = m.db.withRetry(ctx, func() error {
		return m.db.QueryRowContext(ctx, query, args...).Scan(&value)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return []byte(value), nil
}

func (m *SQLMedium) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	// substr instead of LIKE: keys contain '_' which LIKE treats as a wildcard
	query, args, err := m.builder.
		Select("entry_key").
		From(mediumTable).
		Where(sq.Expr("substr(entry_key, 1, ?) = ?", len(prefix), prefix)).
		OrderBy("entry_key ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	var keys []string
	err = m.db.withRetry(ctx, func() error {
		keys = keys[:0]
		rows, queryErr := m.db.QueryContext(ctx, query, args...)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		for rows.Next() {
			var k string
			if scanErr := rows.Scan(&k); scanErr != nil {
				return scanErr
			}
			keys = append(keys, k)
		}
		return rows.Err()
	})
	if err != nil {
		logger.FromContext(ctx).Err(err).Str("func", "SQLMedium.ListKeys").Str("prefix", prefix).Msg("failed to list medium keys")
		return nil, fmt.Errorf("%w: %w", ErrExecutingQuery, err)
	}
	return keys, nil
}

func (m *SQLMedium) Delete(ctx context.Context, key string) error {
	query, args, err := m.builder.
		Delete(mediumTable).
		Where(sq.Eq{"entry_key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBuildingSQLQuery, err)
	}

	err = m.db.withRetry(ctx, func() error {
		_, execErr := m.db.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrExecutingStatement, err)
	}
	return nil
}

func (m *SQLMedium) Close() error {
	return m.db.Close()
}
