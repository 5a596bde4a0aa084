package repository

import "errors"

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) inside this directory.

// ErrVersionConflict is returned by VersionRepository.Append when the
// uniqueness constraint on (document_id, version_number) keeps rejecting the
// insert after retries. Callers translate it to their own conflict error.
var ErrVersionConflict = errors.New("version number conflict")

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
