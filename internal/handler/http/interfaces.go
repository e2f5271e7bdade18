// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package http

//go:generate mockgen -source=interfaces.go -destination=../../mock/handler_mock.go -package=mock

import (
	"context"

	"github.com/sndie3/LABAN/models"
)

// Relay is the part of the mesh relay exposed over the status API.
// [mesh.Relay] implements it.
type Relay interface {
	Status() models.MeshStatus
	Peers() []models.MeshPeer
	Records() []models.MeshRecord
	StoreLocalRequest(ctx context.Context, rec models.MeshRecord) (models.MeshRecord, error)
	UpdateLocation(location models.Location)
}
