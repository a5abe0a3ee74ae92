package scheduler

import "errors"

// Configuration errors are returned synchronously by the registration facade;
// a rejected item never enters the scheduler.
var (
	ErrEmptyID          = errors.New("scheduler: item id required")
	ErrReservedID       = errors.New("scheduler: item id is reserved")
	ErrNilJob           = errors.New("scheduler: job required")
	ErrNegativeInterval = errors.New("scheduler: repeat interval must be >= 0 minutes")
	ErrNegativeDelay    = errors.New("scheduler: once delay must be >= 0")
	ErrInvalidTimestamp = errors.New("scheduler: timestamp must be positive epoch seconds")
)
