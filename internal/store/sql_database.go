// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/migrations"
)

// DB is a database handle with the driver's error classifier attached.
type DB struct {
	*sql.DB
	errorClassificator ErrorClassificator
	logger             *logger.Logger
}

// Migrate applies the private schema. Only meaningful for the SQLite store.
func (db *DB) Migrate() error {
	return migrations.Migrate(db.DB)
}

// withRetry runs op and runs it once more when the first failure is
// classified [Retryable].
func (db *DB) withRetry(ctx context.Context, op func() error) error {
	err := op()
	if err == nil || db.errorClassificator == nil {
		return err
	}
	if db.errorClassificator.Classify(err) != Retryable || ctx.Err() != nil {
		return err
	}

	db.logger.Debug().Err(err).Str("func", "DB.withRetry").Msg("retrying after transient database error")
	return op()
}
