package storage

import "errors"

// ErrDayFinalized is returned when writing to a risk day whose end-of-day
// settlement has already run.
var ErrDayFinalized = errors.New("risk day already finalized")
