package model

import (
	"errors"
	"fmt"
)

// Error categories. Every specific error below wraps exactly one of them so
// callers can classify with errors.Is.
var (
	// ErrConfiguration marks problems with the environment (board templates,
	// columns, labels). A run cannot continue past one.
	ErrConfiguration = errors.New("configuration error")
	// ErrMissingMapping marks a user that cannot be placed on the board.
	// The user is skipped and the run continues.
	ErrMissingMapping = errors.New("missing mapping")
)

var (
	ErrMalformedPeriodLabel = fmt.Errorf("%w: malformed period label", ErrConfiguration)
	ErrNoPriorMonth         = fmt.Errorf("%w: no prior month", ErrConfiguration)
	ErrTemplateNotFound     = fmt.Errorf("%w: template board not found", ErrConfiguration)
	ErrColumnNotFound       = fmt.Errorf("%w: column not found", ErrConfiguration)
	ErrContainerMissing     = fmt.Errorf("%w: board does not exist", ErrConfiguration)

	ErrNoGrouping        = fmt.Errorf("%w: no team grouping configured", ErrMissingMapping)
	ErrRecordNotEligible = fmt.Errorf("%w: no record and not eligible to create", ErrMissingMapping)
)
