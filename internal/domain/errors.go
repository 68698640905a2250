package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidationError rejects malformed input before any write happens.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NotFoundError reports an absent expense, settlement, member, trip or
// activity.
type NotFoundError struct {
	Resource string
	ID       int32
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Resource, e.ID)
}

func NewNotFoundError(resource string, id int32) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ConflictError surfaces integrity-guard violations, double
// confirmations and blocked removals. Amounts carries the supporting
// numbers so the caller can show a human what is blocking.
type ConflictError struct {
	Reason  string
	Amounts map[string]decimal.Decimal
}

func (e *ConflictError) Error() string {
	if len(e.Amounts) == 0 {
		return e.Reason
	}
	names := make([]string, 0, len(e.Amounts))
	for name := range e.Amounts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, e.Amounts[name].StringFixed(2)))
	}
	return fmt.Sprintf("%s (%s)", e.Reason, strings.Join(parts, ", "))
}

func NewConflictError(reason string, amounts map[string]decimal.Decimal) *ConflictError {
	return &ConflictError{Reason: reason, Amounts: amounts}
}

// InconsistencyError reports a broken internal invariant: a split sum
// drifting from its expense amount, or balances that do not net to
// zero. It is never swallowed; callers log it and refuse the result.
type InconsistencyError struct {
	Msg string
}

func (e *InconsistencyError) Error() string { return e.Msg }

func NewInconsistencyError(format string, args ...any) *InconsistencyError {
	return &InconsistencyError{Msg: fmt.Sprintf(format, args...)}
}
