package strategy

import "errors"

// Sentinel errors for strategy management.
var (
	// ErrUnknownStrategy is returned when a name does not refer to a registered strategy.
	ErrUnknownStrategy = errors.New("strategy: unknown strategy")

	// ErrStrategyExists is returned by Add when the name is already registered.
	ErrStrategyExists = errors.New("strategy: strategy already exists")

	// ErrDefaultStrategy is returned when removing the default strategy.
	ErrDefaultStrategy = errors.New("strategy: cannot remove the default strategy")

	// ErrInvalidStrategy is returned when a strategy definition fails validation.
	ErrInvalidStrategy = errors.New("strategy: invalid strategy")

	// ErrInvalidRule is returned when a rule definition fails validation.
	ErrInvalidRule = errors.New("strategy: invalid rule")

	// ErrInvalidConfig is returned when a strategy file cannot be parsed.
	ErrInvalidConfig = errors.New("strategy: invalid configuration")

	// ErrClosed is returned when the manager has been cleaned up.
	ErrClosed = errors.New("strategy: manager closed")

	// ErrAlreadyStarted is returned when Start is called twice.
	ErrAlreadyStarted = errors.New("strategy: rule engine already started")

	// ErrInvalidSchedule is returned when the rule schedule cannot be parsed.
	ErrInvalidSchedule = errors.New("strategy: invalid rule schedule")
)
