package schedule

import "errors"

// Domain errors for the schedule package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, schedule.ErrNotFound) {
//	    // handle not found case
//	}
var (
	// ErrNotFound is returned when a sequence ID or slug does not exist.
	ErrNotFound = errors.New("schedule: sequence not found")

	// ErrExists is returned when creating a sequence whose ID or slug is taken.
	ErrExists = errors.New("schedule: sequence already exists")

	// ErrInvalidDefinition is returned when sequence validation fails.
	ErrInvalidDefinition = errors.New("schedule: invalid definition")

	// ErrInvalidName is returned when a name is empty or too long.
	ErrInvalidName = errors.New("schedule: invalid name")

	// ErrInvalidSlug is returned when a slug format is invalid.
	ErrInvalidSlug = errors.New("schedule: invalid slug")

	// ErrInvalidGroup is returned when a group is malformed.
	ErrInvalidGroup = errors.New("schedule: invalid group")

	// ErrInvalidStep is returned when a step or one of its phases is malformed.
	ErrInvalidStep = errors.New("schedule: invalid step")

	// ErrInvalidShowfile is returned when a showfile cannot be decoded.
	ErrInvalidShowfile = errors.New("schedule: invalid showfile")

	// ErrExecutionNotFound is returned when an execution ID does not exist.
	ErrExecutionNotFound = errors.New("schedule: execution not found")
)
