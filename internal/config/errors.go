// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package config

import "errors"

// Validation errors returned by [AgentConfig.validate] when required
// configuration groups are incomplete or invalid.
var (
	// ErrInvalidBackendConfigs indicates invalid remote backend settings
	// (for example, a malformed URL or a URL without an API key).
	ErrInvalidBackendConfigs = errors.New("invalid backend configuration")
	// ErrInvalidStorageConfigs indicates invalid storage settings
	// (for example, empty DSN or an unknown medium driver).
	ErrInvalidStorageConfigs = errors.New("invalid storage configuration")
	// ErrInvalidMeshConfigs indicates invalid relay settings
	// (for example, non-positive range or intervals).
	ErrInvalidMeshConfigs = errors.New("invalid mesh configuration")
	// ErrInvalidWorkerConfigs indicates invalid background worker settings
	// (for example, an unparsable maintenance schedule).
	ErrInvalidWorkerConfigs = errors.New("invalid worker configuration")
)
