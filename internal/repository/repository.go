// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g. postgres) inside this directory.
package repository

import "errors"

// ErrClaimLost is returned when a conditional write finds the record no longer
// claimed by the caller: it was processed, reset, or reclaimed after the lease expired.
var ErrClaimLost = errors.New("claim lost")

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
