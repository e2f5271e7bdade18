// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package service

import "github.com/sndie3/LABAN/models"

func recordCacheKey(entityType models.EntityType, id string) string {
	return entityType + ":record:" + id
}

func allCacheKey(entityType models.EntityType) string {
	return entityType + ":all"
}

// queryCacheKey maps an unfiltered read onto the type's full list, so
// records confirmed by Submit are visible to it offline.
func queryCacheKey(entityType models.EntityType, filter models.FilterSpec) string {
	if isUnfiltered(filter) {
		return allCacheKey(entityType)
	}
	return entityType + ":" + filter.CacheKey()
}

func isUnfiltered(filter models.FilterSpec) bool {
	return (filter.Select == "" || filter.Select == "*") &&
		len(filter.Eq) == 0 &&
		(filter.Order == nil || filter.Order.Column == "") &&
		filter.Limit <= 0
}
