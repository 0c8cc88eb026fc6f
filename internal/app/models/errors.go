package models

import "errors"

// Domain specific errors for scheduling and visit sessions.
var (
	ErrNotFound           = errors.New("requested item not found")
	ErrTourNotFound       = errors.New("tour not found")
	ErrNoPOIsFound        = errors.New("tour has no points of interest")
	ErrMaxRegionsExceeded = errors.New("monitored regions exceed platform budget")
	ErrNoActiveSession    = errors.New("no active visit session")
	ErrMonitoringActive   = errors.New("monitoring already active")
	ErrNoTourConfigured   = errors.New("no tour configured")
)
