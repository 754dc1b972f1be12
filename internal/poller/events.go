package poller

import "time"

// State is the poller state machine: POLLING or ERROR_BACKOFF
type State int

const (
	StatePolling State = iota
	StateErrorBackoff
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "POLLING"
	case StateErrorBackoff:
		return "ERROR_BACKOFF"
	default:
		return "UNKNOWN"
	}
}

// EventKind tells a notifier what a poll iteration observed
type EventKind int

const (
	// EventBaseline is the first successful poll of a run
	EventBaseline EventKind = iota
	// EventChange means the total grew since the previous poll
	EventChange
	// EventNoChange means the total did not grow. Delta is zero or negative.
	EventNoChange
	// EventError means the poll failed and the poller is backing off
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventBaseline:
		return "baseline"
	case EventChange:
		return "change"
	case EventNoChange:
		return "no-change"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is emitted once per poll iteration
type Event struct {
	Kind     EventKind
	State    State
	Snapshot Snapshot
	Previous int
	Delta    int
	Err      error
	RetryIn  time.Duration
}

// Notifier receives poll events. Notify is called from the polling
// goroutine and should return quickly.
type Notifier interface {
	Notify(Event)
}

// NotifierFunc adapts a function to Notifier
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }
