package service

import "errors"

// ErrNotStarted is returned by service operations before Start.
var ErrNotStarted = errors.New("service not started")
