// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// FilterSpec describes a read against a backend table. It mirrors the subset
// of PostgREST the agent uses: column selection, equality filters, a single
// ordering column and a row limit.
type FilterSpec struct {
	Select string            `json:"select,omitempty"`
	Eq     map[string]string `json:"eq,omitempty"`
	Order  *Order            `json:"order,omitempty"`
	Limit  int               `json:"limit,omitempty"`

	// TTL overrides how long the result stays in the offline cache.
	// It does not take part in the cache key.
	TTL time.Duration `json:"-"`
}

// Order is an ORDER BY clause on one column.
type Order struct {
	Column    string `json:"column"`
	Ascending bool   `json:"ascending"`
}

// CacheKey renders the filter deterministically so equal filters share one
// cache entry regardless of map iteration order.
func (f FilterSpec) CacheKey() string {
	var b strings.Builder

	sel := f.Select
	if sel == "" {
		sel = "*"
	}
	b.WriteString("select=")
	b.WriteString(sel)

	if len(f.Eq) > 0 {
		cols := make([]string, 0, len(f.Eq))
		for col := range f.Eq {
			cols = append(cols, col)
		}
		sort.Strings(cols)

		b.WriteString(";eq=")
		for i, col := range cols {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(col)
			b.WriteByte(':')
			b.WriteString(f.Eq[col])
		}
	}

	if f.Order != nil && f.Order.Column != "" {
		b.WriteString(";order=")
		b.WriteString(f.Order.Column)
		if f.Order.Ascending {
			b.WriteString(".asc")
		} else {
			b.WriteString(".desc")
		}
	}

	if f.Limit > 0 {
		b.WriteString(";limit=")
		b.WriteString(strconv.Itoa(f.Limit))
	}

	return b.String()
}

// EventFilter narrows a live subscription.
type EventFilter struct {
	// Event is INSERT, UPDATE, DELETE or "*" for all of them.
	Event string `json:"event"`
	// Filter is an optional PostgREST-style row filter such as "region=eq.NCR".
	Filter string `json:"filter,omitempty"`
}

// ChangeEvent is a single row change delivered by a live subscription.
type ChangeEvent struct {
	Type      string    `json:"type"`
	Table     string    `json:"table"`
	Record    Payload   `json:"record,omitempty"`
	OldRecord Payload   `json:"old_record,omitempty"`
	At        time.Time `json:"commit_timestamp"`
}
