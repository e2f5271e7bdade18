// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/sndie3/LABAN/internal/config"
	"github.com/sndie3/LABAN/internal/logger"
)

// NewMedium opens the shared medium selected by cfg.Driver.
func NewMedium(ctx context.Context, cfg config.Medium, log *logger.Logger) (Medium, error) {
	switch cfg.Driver {
	case config.MediumMemory:
		return NewMemoryMedium(), nil

	case config.MediumSQLite:
		db, err := NewConnectSQLite(ctx, cfg.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("sqlite medium: %w", err)
		}
		m, err := NewSQLMedium(ctx, db, sq.Question)
		if err != nil {
			db.Close()
			return nil, err
		}
		return m, nil

	case config.MediumPostgres:
		db, err := NewConnectPostgres(ctx, cfg.DSN, log)
		if err != nil {
			return nil, fmt.Errorf("postgres medium: %w", err)
		}
		m, err := NewSQLMedium(ctx, db, sq.Dollar)
		if err != nil {
			db.Close()
			return nil, err
		}
		return m, nil

	case config.MediumRedis:
		return NewRedisMedium(ctx, cfg.DSN)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownMediumDriver, cfg.Driver)
}
