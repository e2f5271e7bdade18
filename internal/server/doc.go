// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package server runs the agent's local status API listener, including
// startup and graceful shutdown when the run context ends.
package server
