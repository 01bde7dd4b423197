package alligator

import "time"

const (
	defaultEventuallyTimeout = 500 * time.Millisecond
	defaultEventuallyTick    = 5 * time.Millisecond
)
