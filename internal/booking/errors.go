package booking

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/codr1/roombook/internal/db/queries"
)

var (
	ErrInvalidInterval = errors.New("start must be before end")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("reservation conflicts with an existing reservation")
	ErrBeyondHorizon   = errors.New("start is beyond the team's advance booking horizon")
	ErrRoomInUse       = errors.New("room has upcoming reservations")
	ErrStorage         = errors.New("storage failure")
)

// NotFoundError names the missing entity. It matches ErrNotFound.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports the reservations a request overlaps. Overridable is
// true when resubmitting with override set would succeed.
type ConflictError struct {
	Overridable bool
	Conflicts   []queries.ReservationDetail
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = strconv.FormatInt(c.ID, 10)
	}
	kind := "fatal"
	if e.Overridable {
		kind = "overridable"
	}
	return fmt.Sprintf("%s conflict with reservations %s", kind, strings.Join(ids, ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// ConflictIDs returns the ids of the conflicting reservations in order.
func (e *ConflictError) ConflictIDs() []int64 {
	ids := make([]int64, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = c.ID
	}
	return ids
}

func storageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// classify passes domain errors through and marks everything else,
// including commit failures and cancellation, as a storage failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var conflict *ConflictError
	if errors.As(err, &conflict) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrBeyondHorizon) ||
		errors.Is(err, ErrRoomInUse) ||
		errors.Is(err, ErrStorage) {
		return err
	}
	return storageError("transaction", err)
}
