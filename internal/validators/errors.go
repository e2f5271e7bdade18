// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import "errors"

var (
	ErrUnsupportedType = errors.New("unsupported type for validation")
	ErrUnknownField    = errors.New("unknown field for validation")

	ErrInvalidLatitude      = errors.New("latitude must be within [-90, 90]")
	ErrInvalidLongitude     = errors.New("longitude must be within [-180, 180]")
	ErrEmptyMessage         = errors.New("message is required")
	ErrInvalidAccessVehicle = errors.New("access vehicles cannot contain blank entries")
	ErrInvalidColumn        = errors.New("invalid column name")
	ErrInvalidLimit         = errors.New("limit cannot be negative")
	ErrInvalidTTL           = errors.New("ttl cannot be negative")
)
