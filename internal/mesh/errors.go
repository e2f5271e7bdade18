// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package mesh

import "errors"

var (
	// ErrEnvelopeParse marks a medium entry that is not a relay envelope of
	// the expected kind. Such entries are skipped.
	ErrEnvelopeParse = errors.New("malformed relay envelope")
	ErrEmptyDeviceID = errors.New("empty device id")
	ErrEmptyMessage  = errors.New("record message is empty")
)
