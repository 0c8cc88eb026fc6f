package models

import "time"

// RegionEventType distinguishes boundary crossings.
type RegionEventType string

const (
	RegionEntered RegionEventType = "entry"
	RegionExited  RegionEventType = "exit"
)

// RegionEvent is emitted when the user crosses a monitored region boundary.
type RegionEvent struct {
	Type      RegionEventType  `json:"type"`
	POI       *PointOfInterest `json:"poi"`
	Position  *Position        `json:"position,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
}

// VisitEventType enumerates visit lifecycle notifications.
type VisitEventType string

const (
	VisitSessionStarted   VisitEventType = "sessionStarted"
	VisitCompleted        VisitEventType = "visitCompleted"
	VisitSessionCancelled VisitEventType = "sessionCancelled"
)

// VisitEvent is emitted on visit lifecycle transitions.
type VisitEvent struct {
	Type      VisitEventType   `json:"type"`
	POI       *PointOfInterest `json:"poi"`
	Session   *VisitSession    `json:"session,omitempty"`
	Completed *CompletedVisit  `json:"completed,omitempty"`
	Reason    string           `json:"reason,omitempty"` // cancellation reason
	Timestamp time.Time        `json:"timestamp"`
}

// SchedulerState enumerates scheduler status notifications.
type SchedulerState string

const (
	SchedulerStarted        SchedulerState = "started"
	SchedulerStopped        SchedulerState = "stopped"
	SchedulerRegionsUpdated SchedulerState = "regionsUpdated"
)

// SchedulerStatus reports scheduler lifecycle and region replacement counts.
type SchedulerStatus struct {
	State       SchedulerState `json:"state"`
	RegionCount int            `json:"region_count,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}
