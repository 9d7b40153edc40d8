package ruleerrors

import (
	"fmt"

	"github.com/kaspanet/reachability/domain/consensus/model/externalapi"
	"github.com/pkg/errors"
)

// These constants are used to identify a specific RuleError.
var (
	// ErrDataOverflow indicates that the reachability interval space ran
	// out: a subtree grew beyond the capacity of its ancestors up to the
	// reindex root, or beyond 2^64 blocks.
	ErrDataOverflow = newRuleError("ErrDataOverflow")

	// ErrDataInconsistency indicates that the reachability data violates
	// one of its structural invariants, e.g. a block missing from the
	// children list of its own parent.
	ErrDataInconsistency = newRuleError("ErrDataInconsistency")

	// ErrBadQuery indicates a reachability query whose arguments do not
	// satisfy its preconditions.
	ErrBadQuery = newRuleError("ErrBadQuery")

	// ErrDuplicateBlock indicates a block with the same hash already
	// exists.
	ErrDuplicateBlock = newRuleError("ErrDuplicateBlock")

	// ErrNoParents indicates that the block is missing parents
	ErrNoParents = newRuleError("ErrNoParents")

	// ErrUnknownBlock indicates a query about a block that was never
	// added, or was already deleted.
	ErrUnknownBlock = newRuleError("ErrUnknownBlock")

	// ErrDeleteOrigin indicates an attempt to delete the origin.
	ErrDeleteOrigin = newRuleError("ErrDeleteOrigin")
)

// RuleError identifies a rule violation. It is used to indicate that
// processing of a block failed due to one of the reachability or DAG
// rules. The caller can use errors.Is and errors.As to determine if a
// failure was specifically due to a rule violation.
type RuleError struct {
	message string
	inner   error
}

// Error satisfies the error interface and prints human-readable errors.
func (e RuleError) Error() string {
	if e.inner != nil {
		return e.message + ": " + e.inner.Error()
	}
	return e.message
}

// Unwrap satisfies the errors.Unwrap interface
func (e RuleError) Unwrap() error {
	return e.inner
}

// Cause satisfies the github.com/pkg/errors.Cause interface
func (e RuleError) Cause() error {
	return e.inner
}

func newRuleError(message string) RuleError {
	return RuleError{message: message, inner: nil}
}

// ErrMissingParents indicates a block points to unknown parent(s).
type ErrMissingParents struct {
	MissingParentHashes []*externalapi.DomainHash
}

func (e ErrMissingParents) Error() string {
	return fmt.Sprintf("missing the following parent hashes: %v", e.MissingParentHashes)
}

// NewErrMissingParents creates a new ErrMissingParents error wrapped in a RuleError
func NewErrMissingParents(missingParentHashes []*externalapi.DomainHash) error {
	return errors.WithStack(RuleError{
		message: "ErrMissingParents",
		inner:   ErrMissingParents{missingParentHashes},
	})
}
