package ui

import "time"

// busMsg wraps one event bus delivery as a Bubble Tea message.
type busMsg struct {
	ev any
}

// busClosedMsg signals that the bus subscription ended.
type busClosedMsg struct{}

// toastExpiredMsg clears a transient toast.
type toastExpiredMsg struct {
	at time.Time
}

// askSubmittedMsg carries the ticket id of a submitted request.
type askSubmittedMsg struct {
	id  string
	err error
}
