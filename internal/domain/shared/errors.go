package shared

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds surfaced to callers. Typed errors below unwrap to one of these.
var (
	ErrInvalidUnits           = errors.New("units must be a positive integer")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrSameGroup              = errors.New("cannot exchange a blood group with itself")
	ErrDuplicateBagNumber     = errors.New("blood bag number already exists")
	ErrAlreadyUsed            = errors.New("blood bag already used")
	ErrNotFound               = errors.New("not found")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrInvalidBloodGroup      = errors.New("invalid blood group")
	ErrBloodGroupMismatch     = errors.New("blood group mismatch")
	ErrIneligible             = errors.New("donor is not eligible")
	ErrForbidden              = errors.New("operation not permitted for role")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// InsufficientStockError carries the group and amounts of a rejected debit
type InsufficientStockError struct {
	Group     BloodGroup
	Requested int
	Available int
}

func (e InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d", e.Group, e.Requested, e.Available)
}

func (e InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// InvalidTransitionError describes a rejected status change
type InvalidTransitionError struct {
	Entity string
	From   string
	To     string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s status transition: %s -> %s", e.Entity, e.From, e.To)
}

func (e InvalidTransitionError) Unwrap() error {
	return ErrInvalidTransition
}

// NotFoundError indicates a missing entity
type NotFoundError struct {
	Entity string
	ID     string
}

func (e NotFoundError) Error() string {
	return e.Entity + " not found: " + e.ID
}

func (e NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DuplicateBagNumberError indicates bag number uniqueness violation
type DuplicateBagNumberError struct {
	BagNumber string
}

func (e DuplicateBagNumberError) Error() string {
	return "blood bag number already exists: " + e.BagNumber
}

func (e DuplicateBagNumberError) Unwrap() error {
	return ErrDuplicateBagNumber
}

// AlreadyUsedError indicates a bag that has left the available state
type AlreadyUsedError struct {
	BagID string
}

func (e AlreadyUsedError) Error() string {
	return "blood bag already used: " + e.BagID
}

func (e AlreadyUsedError) Unwrap() error {
	return ErrAlreadyUsed
}

// IneligibleError lists every eligibility rule a donor failed
type IneligibleError struct {
	Reasons []string
}

func (e IneligibleError) Error() string {
	return "donor is not eligible: " + strings.Join(e.Reasons, "; ")
}

func (e IneligibleError) Unwrap() error {
	return ErrIneligible
}

// ConcurrentModificationError indicates optimistic lock failure
type ConcurrentModificationError struct {
	Entity string
	ID     string
}

func (e ConcurrentModificationError) Error() string {
	return "concurrent modification detected for " + e.Entity + ": " + e.ID
}

func (e ConcurrentModificationError) Unwrap() error {
	return ErrConcurrentModification
}
