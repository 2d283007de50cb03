package transport

import (
	"strings"
)

// Status is the lifecycle state of a transport request.
type Status string

const (
	StatusPending       Status = "pending"
	StatusAccepted      Status = "accepted"
	StatusDriverEnroute Status = "driver_enroute"
	StatusArrived       Status = "arrived"
	StatusInProgress    Status = "in_progress"
	StatusCompleted     Status = "completed"
	StatusCancelled     Status = "cancelled"
)

// forward lifecycle; cancelled sits outside it
var lifecycle = []Status{
	StatusPending,
	StatusAccepted,
	StatusDriverEnroute,
	StatusArrived,
	StatusInProgress,
	StatusCompleted,
}

// ActiveStatuses are the states in which a driver is assigned and working.
var ActiveStatuses = []Status{StatusAccepted, StatusDriverEnroute, StatusArrived, StatusInProgress}

// ParseStatus normalizes (lowercases+trims) and validates a status string.
func ParseStatus(in string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(in)))
	if s.Valid() {
		return s, nil
	}
	return "", ErrInvalidStatus
}

// Valid reports whether status is one of the known states.
func (s Status) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	for _, st := range lifecycle {
		if s == st {
			return true
		}
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Next returns the immediate forward successor, if any.
func (s Status) Next() (Status, bool) {
	for i, st := range lifecycle {
		if st == s && i+1 < len(lifecycle) {
			return lifecycle[i+1], true
		}
	}
	return "", false
}

// CanTransitionTo reports whether next is a legal successor of s.
func (s Status) CanTransitionTo(next Status) bool {
	if s.Terminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	succ, ok := s.Next()
	return ok && succ == next
}

// Terminal indicates completed or cancelled.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Active reports whether a driver is currently working the request.
func (s Status) Active() bool {
	for _, st := range ActiveStatuses {
		if s == st {
			return true
		}
	}
	return false
}
