// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import "strings"

// EntityType names a kind of record the agent can submit and queue.
// Pending-queue rows and cache keys are namespaced by it.
type EntityType = string

const (
	// HelpRequest is a civilian's request for rescue or supplies.
	HelpRequest EntityType = "help-request"
	// RoadReport is a rescuer's report about road passability.
	RoadReport EntityType = "road-report"
)

// KnownEntityTypes lists the entity types drained on every reconnect even when
// the queue has never seen them.
var KnownEntityTypes = []EntityType{HelpRequest, RoadReport}

var entityTables = map[EntityType]string{
	HelpRequest: "help_requests",
	RoadReport:  "road_reports",
}

// TableFor maps an entity type to its backend table. Unknown types follow the
// same convention: dashes become underscores and an "s" is appended.
func TableFor(entityType EntityType) string {
	if table, ok := entityTables[entityType]; ok {
		return table
	}
	return strings.ReplaceAll(entityType, "-", "_") + "s"
}
