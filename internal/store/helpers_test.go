// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/utils"
)

var testStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

// seqIDs hands out predictable ids.
type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("rec-%03d", g.n)
}

func newSQLiteDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewConnectSQLite(context.Background(), inMemoryDSN, logger.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStorages(t *testing.T) (*ClientStorages, *utils.ManualClock) {
	t.Helper()
	clock := utils.NewManualClock(testStart)
	return newClientStorages(newSQLiteDB(t), &seqIDs{}, clock, logger.Nop()), clock
}

func newMockDB(t *testing.T, classifier ErrorClassificator) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return newDBFromSQL(conn, classifier), mock
}

func newDBFromSQL(conn *sql.DB, classifier ErrorClassificator) *DB {
	return &DB{
		DB:                 conn,
		errorClassificator: classifier,
		logger:             logger.Nop(),
	}
}
