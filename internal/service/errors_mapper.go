// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import (
	"errors"

	"github.com/sndie3/LABAN/internal/adapter"
)

// shouldQueue decides whether a failed remote insert falls back to the
// pending queue. The backend refusing the record, or having accepted it
// without a readable answer, must not lead to a resubmission.
func shouldQueue(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, adapter.ErrRejected),
		errors.Is(err, adapter.ErrUnauthorized),
		errors.Is(err, adapter.ErrMalformedResponse),
		errors.Is(err, adapter.ErrEmptyTableName):
		return false
	default:
		return true
	}
}
