// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package http implements the agent's local status API.
//
// Collaborators on the device (a UI, a field script) use it to submit and
// read records through the sync coordinator, force a drain, inspect the
// connection and queue, and work with the mesh relay. Request tracing,
// access logging, metrics and response compression are handled here before
// requests reach the coordinator or the relay.
package http
