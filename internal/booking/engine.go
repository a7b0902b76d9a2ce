package booking

import (
	"github.com/codr1/roombook/internal/db/queries"
	"github.com/codr1/roombook/internal/teamtype"
)

type Outcome int

const (
	// OutcomeCommit means nothing overlaps.
	OutcomeCommit Outcome = iota
	// OutcomeOverride means the incumbents are deleted before the write.
	OutcomeOverride
	// OutcomeOverridable rejects a request that would win with override set.
	OutcomeOverridable
	// OutcomeFatal rejects a request that cannot outrank every incumbent.
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCommit:
		return "commit"
	case OutcomeOverride:
		return "override"
	case OutcomeOverridable:
		return "overridable"
	case OutcomeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

type Decision struct {
	Outcome              Outcome
	Conflicts            []queries.ReservationDetail
	MaxIncumbentPriority int64
}

// Resolve classifies a request against the reservations it overlaps. It has
// no side effects; the caller performs any deletes and the write.
//
// The requester must strictly outrank the highest-priority incumbent to
// override. Equal priority is a fatal conflict.
func Resolve(requester teamtype.TeamType, incumbents []queries.ReservationDetail, override bool) Decision {
	if len(incumbents) == 0 {
		return Decision{Outcome: OutcomeCommit}
	}

	maxPriority := incumbents[0].TeamPriority
	for _, r := range incumbents[1:] {
		if r.TeamPriority > maxPriority {
			maxPriority = r.TeamPriority
		}
	}

	decision := Decision{Conflicts: incumbents, MaxIncumbentPriority: maxPriority}
	switch {
	case !requester.Outranks(teamtype.TeamType{Priority: maxPriority}):
		decision.Outcome = OutcomeFatal
	case !override:
		decision.Outcome = OutcomeOverridable
	default:
		decision.Outcome = OutcomeOverride
	}
	return decision
}

// Err returns the rejection as a *ConflictError, or nil when the decision
// allows the write.
func (d Decision) Err() error {
	switch d.Outcome {
	case OutcomeOverridable:
		return &ConflictError{Overridable: true, Conflicts: d.Conflicts}
	case OutcomeFatal:
		return &ConflictError{Overridable: false, Conflicts: d.Conflicts}
	default:
		return nil
	}
}
