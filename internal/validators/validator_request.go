// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package validators

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sndie3/LABAN/models"
)

// Field name constants used to restrict validation to a subset of fields.
const (
	// FieldLatitude targets Location.Latitude.
	FieldLatitude = "latitude"
	// FieldLongitude targets Location.Longitude.
	FieldLongitude = "longitude"

	// FieldMessage targets the text of a mesh record.
	FieldMessage = "message"
	// FieldCoordinates targets both coordinates of a mesh record.
	FieldCoordinates    = "coordinates"
	FieldAccessVehicles = "access_vehicles"

	FieldSelect = "select"
	FieldEq     = "eq"
	FieldOrder  = "order"
	FieldLimit  = "limit"
	FieldTTL    = "ttl"
)

var columnPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type RequestValidator struct {
}

func NewRequestValidator() Validator {
	return &RequestValidator{}
}

func (v *RequestValidator) Validate(ctx context.Context, obj any, fields ...string) error {
	switch value := obj.(type) {
	case models.Location:
		return v.validateLocation(ctx, value, fields...)
	case *models.Location:
		return v.validateLocation(ctx, *value, fields...)

	case models.MeshRecord:
		return v.validateMeshRecord(ctx, value, fields...)
	case *models.MeshRecord:
		return v.validateMeshRecord(ctx, *value, fields...)

	case models.FilterSpec:
		return v.validateFilter(ctx, value, fields...)
	case *models.FilterSpec:
		return v.validateFilter(ctx, *value, fields...)

	default:
		return ErrUnsupportedType
	}
}

func (v *RequestValidator) validateLocation(_ context.Context, loc models.Location, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldLatitude, FieldLongitude}
	}

	for _, f := range fields {
		switch f {
		case FieldLatitude:
			if loc.Latitude < -90 || loc.Latitude > 90 {
				return ErrInvalidLatitude
			}
		case FieldLongitude:
			if loc.Longitude < -180 || loc.Longitude > 180 {
				return ErrInvalidLongitude
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

func (v *RequestValidator) validateMeshRecord(ctx context.Context, rec models.MeshRecord, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldMessage, FieldCoordinates, FieldAccessVehicles}
	}

	for _, f := range fields {
		switch f {
		case FieldMessage:
			if strings.TrimSpace(rec.Message) == "" {
				return ErrEmptyMessage
			}
		case FieldCoordinates:
			if err := v.validateLocation(ctx, rec.Location()); err != nil {
				return err
			}
		case FieldAccessVehicles:
			for i, vehicle := range rec.AccessVehicles {
				if strings.TrimSpace(vehicle) == "" {
					return fmt.Errorf("validation error at index %d: %w", i, ErrInvalidAccessVehicle)
				}
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}

// validateFilter keeps column names to plain identifiers; they end up in
// backend query strings and cache keys.
func (v *RequestValidator) validateFilter(_ context.Context, filter models.FilterSpec, fields ...string) error {
	if len(fields) == 0 {
		fields = []string{FieldSelect, FieldEq, FieldOrder, FieldLimit, FieldTTL}
	}

	for _, f := range fields {
		switch f {
		case FieldSelect:
			if filter.Select == "" || filter.Select == "*" {
				continue
			}
			for _, column := range strings.Split(filter.Select, ",") {
				if !columnPattern.MatchString(strings.TrimSpace(column)) {
					return fmt.Errorf("%w: %q", ErrInvalidColumn, column)
				}
			}
		case FieldEq:
			for column := range filter.Eq {
				if !columnPattern.MatchString(column) {
					return fmt.Errorf("%w: %q", ErrInvalidColumn, column)
				}
			}
		case FieldOrder:
			if filter.Order != nil && !columnPattern.MatchString(filter.Order.Column) {
				return fmt.Errorf("%w: %q", ErrInvalidColumn, filter.Order.Column)
			}
		case FieldLimit:
			if filter.Limit < 0 {
				return ErrInvalidLimit
			}
		case FieldTTL:
			if filter.TTL < 0 {
				return ErrInvalidTTL
			}
		default:
			return ErrUnknownField
		}
	}

	return nil
}
