package services

import "errors"

var (
	// ErrSessionNotReady is returned when a send targets an absent or not-yet-ready session
	ErrSessionNotReady = errors.New("session not ready")
	// ErrNoValidRecipients is returned when no address survives canonicalization
	ErrNoValidRecipients = errors.New("no valid phone numbers")
	// ErrInvalidScheduleTime is returned for a missing, unparsable or past schedule time
	ErrInvalidScheduleTime = errors.New("invalid schedule time")
	// ErrMessageRequired is returned when neither text nor media is supplied
	ErrMessageRequired = errors.New("message is required")
	// ErrInvalidSessionID is returned for empty or unsafe session identifiers
	ErrInvalidSessionID = errors.New("invalid session id")
	// ErrInitialization is returned when the messaging client could not be created
	ErrInitialization = errors.New("session initialization failed")
	// ErrScheduleNotFound is returned when cancelling an unknown or already fired job
	ErrScheduleNotFound = errors.New("scheduled send not found")
	// ErrGroupNotFound is returned when a group is not among the session's joined groups
	ErrGroupNotFound = errors.New("group not found")
	// ErrManagerStopped is returned once the session manager has shut down
	ErrManagerStopped = errors.New("session manager stopped")
	// ErrSchedulerStopped is returned when scheduling while the scheduler is not running
	ErrSchedulerStopped = errors.New("scheduler is not running")
)
