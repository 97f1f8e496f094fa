package shell

import "errors"

var (
	// ErrBashNotFound is returned when no usable bash interpreter can be located
	ErrBashNotFound = errors.New("no usable bash executable found")

	// ErrStartFailed is returned when the bash subprocess could not be spawned
	ErrStartFailed = errors.New("failed to start bash session")

	// ErrWriteFailed is returned when writing to the bash stdin pipe fails
	ErrWriteFailed = errors.New("failed to write to bash stdin")

	// ErrSessionTerminated is returned when an operation hits a terminated session
	ErrSessionTerminated = errors.New("bash session is terminated")

	// ErrCommandBlocked is returned when a command is rejected by the security gate
	ErrCommandBlocked = errors.New("command blocked by security policy")
)
