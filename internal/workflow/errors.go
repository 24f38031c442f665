package workflow

import (
	"errors"
	"fmt"

	"outreach-engine/internal/store"
)

var (
	ErrNotFound       = store.ErrNotFound
	ErrValidation     = errors.New("validation failed")
	ErrInvalidStage   = errors.New("campaign is not at the required stage")
	ErrTaskInProgress = errors.New("a task of this type is already running for the campaign")
	ErrCompanyBusy    = errors.New("company enrichment is in progress")
	ErrQuotaExceeded  = errors.New("daily contact lookup quota exceeded")
	ErrUnavailable    = errors.New("collaborator not configured")
)

// ValidationError reports a bad or missing input field.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }

// QuotaExceededError rejects a contact enrichment before any lookup is made.
type QuotaExceededError struct {
	Current   int
	Requested int
	Limit     int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("daily contact lookup quota exceeded: %d used, %d requested, limit %d",
		e.Current, e.Requested, e.Limit)
}

func (e *QuotaExceededError) Unwrap() error { return ErrQuotaExceeded }

func stageError(c campaignRef, need string) error {
	return fmt.Errorf("%w: campaign %d is %s, needs %s", ErrInvalidStage, c.id, c.status, need)
}

type campaignRef struct {
	id     int64
	status string
}
