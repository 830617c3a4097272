package cmd

// Exit codes for the flakespec CLI
const (
	// ExitSuccess indicates the command completed
	ExitSuccess = 0

	// ExitValidationFailure indicates a report failed schema validation
	ExitValidationFailure = 1

	// ExitReadError indicates a report or history file could not be read
	ExitReadError = 2

	// ExitUsageError indicates invalid CLI usage
	ExitUsageError = 64
)
