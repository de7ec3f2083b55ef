// Package store persists users, tasks and scan results.
//
// Store methods translate driver failures into two sentinels callers can rely
// on: ErrNotFound for absent or foreign rows and ErrAlreadyExists for unique
// conflicts. Everything else is logged at the store boundary and returned wrapped.
package store

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrAlreadyExists
	default:
		return err
	}
}
