// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package client assembles the device agent process.
//
// It opens the local storages and the shared medium, connects the remote
// backend when one is configured, and runs the sync coordinator, the mesh
// relay, connectivity probing, maintenance and the status API as a single
// lifecycle.
package client
