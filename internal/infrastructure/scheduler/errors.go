package scheduler

import "errors"

// ErrInvalidConfig wraps every NewScheduler validation failure
var ErrInvalidConfig = errors.New("scheduler: invalid configuration")
