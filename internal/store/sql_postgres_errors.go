// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package store

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrorClassification tells the SQL medium whether a failed statement is
// worth a second attempt.
type ErrorClassification int

const (
	// NonRetryable is the default for anything not known to be transient.
	NonRetryable ErrorClassification = iota
	// Retryable marks contention and connection hiccups that typically clear
	// on their own when many devices share one database.
	Retryable
)

// PostgresErrorClassifier implements [ErrorClassificator] for a medium kept
// in PostgreSQL.
type PostgresErrorClassifier struct{}

func NewPostgresErrorClassifier() *PostgresErrorClassifier {
	return &PostgresErrorClassifier{}
}

func (c *PostgresErrorClassifier) Classify(err error) ErrorClassification {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return NonRetryable
	}
	return ClassifyPgError(pgErr)
}

// ClassifyPgError treats connection exceptions (class 08), transaction
// rollbacks such as deadlocks (class 40), lock and connection-slot
// exhaustion and a server that cannot accept connections yet as retryable.
// Every other code is not.
func ClassifyPgError(pgErr *pgconn.PgError) ErrorClassification {
	code := pgErr.Code
	switch {
	case pgerrcode.IsConnectionException(code),
		pgerrcode.IsTransactionRollback(code):
		return Retryable
	}

	switch code {
	case pgerrcode.CannotConnectNow,
		pgerrcode.LockNotAvailable,
		pgerrcode.TooManyConnections:
		return Retryable
	}

	return NonRetryable
}
