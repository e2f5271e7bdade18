// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package client

import (
	"context"
	"time"

	"github.com/sndie3/LABAN/internal/logger"
	"github.com/sndie3/LABAN/internal/metrics"
	"github.com/sndie3/LABAN/internal/store"
	"github.com/sndie3/LABAN/internal/utils"
	"github.com/sndie3/LABAN/internal/workers"
)

const (
	jobPruneCache  = "prune-cache"
	jobPurgeSynced = "purge-synced"
)

// maintenanceJobs prunes expired cache entries and drops queue rows synced
// more than purgeAfter ago.
func maintenanceJobs(storages *store.ClientStorages, clock utils.Clock, purgeAfter time.Duration, log *logger.Logger) []workers.MaintenanceJob {
	return []workers.MaintenanceJob{
		{
			Name: jobPruneCache,
			Run: func(ctx context.Context) error {
				n, err := storages.Cache.Prune(ctx)
				metrics.RecordMaintenance(jobPruneCache, err == nil)
				if err != nil {
					return err
				}
				log.Debug().Str("job", jobPruneCache).Int64("removed", n).Msg("expired cache entries removed")
				return nil
			},
		},
		{
			Name: jobPurgeSynced,
			Run: func(ctx context.Context) error {
				n, err := storages.Queue.PurgeSynced(ctx, clock.Now().Add(-purgeAfter))
				metrics.RecordMaintenance(jobPurgeSynced, err == nil)
				if err != nil {
					return err
				}
				log.Debug().Str("job", jobPurgeSynced).Int64("removed", n).Msg("synced queue rows removed")
				return nil
			},
		},
	}
}
