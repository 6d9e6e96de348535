// Package events provides an event system for pool lifecycle and task failure notifications.
package events

import "time"

// EventType represents the type of event
type EventType string

const (
	// EventPoolStarted is emitted once all workers of a pool are running
	EventPoolStarted EventType = "pool_started"
	// EventPoolStopping is emitted when shutdown begins and the queue is closed
	EventPoolStopping EventType = "pool_stopping"
	// EventPoolStopped is emitted after every worker has terminated
	EventPoolStopped EventType = "pool_stopped"
	// EventTaskFailed is emitted when a job panics or a result task fails
	EventTaskFailed EventType = "task_failed"
	// EventTaskRejected is emitted when a submission is refused by a stopped pool
	EventTaskRejected EventType = "task_rejected"
	// EventFaultInjected is emitted when the fault injector alters a task
	EventFaultInjected EventType = "fault_injected"
	// EventTaskRecovered is emitted when a retried computation finally succeeds
	EventTaskRecovered EventType = "task_recovered"
	// EventRecoveryFailed is emitted when a computation still fails after all retries
	EventRecoveryFailed EventType = "recovery_failed"
)

// Event represents a pool or task event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Pool      string    `json:"pool"`
	Data      EventData `json:"data,omitempty"`
}

// EventData contains event-specific data
type EventData struct {
	TaskID    string `json:"task_id,omitempty"`
	WorkerID  int    `json:"worker_id,omitempty"`
	Workers   int    `json:"workers,omitempty"`
	Pending   int    `json:"pending,omitempty"`
	FaultType string `json:"fault_type,omitempty"`
	Panicked  bool   `json:"panicked,omitempty"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
}

// NewPoolStartedEvent creates a pool started event
func NewPoolStartedEvent(pool string, workers int) Event {
	return Event{
		Type:      EventPoolStarted,
		Timestamp: time.Now(),
		Pool:      pool,
		Data: EventData{
			Workers: workers,
		},
	}
}

// NewPoolStoppingEvent creates a pool stopping event carrying the number of jobs left to drain
func NewPoolStoppingEvent(pool string, pending int) Event {
	return Event{
		Type:      EventPoolStopping,
		Timestamp: time.Now(),
		Pool:      pool,
		Data: EventData{
			Pending: pending,
		},
	}
}

// NewPoolStoppedEvent creates a pool stopped event
func NewPoolStoppedEvent(pool string) Event {
	return Event{
		Type:      EventPoolStopped,
		Timestamp: time.Now(),
		Pool:      pool,
	}
}

// NewTaskFailedEvent creates a task failed event
func NewTaskFailedEvent(pool, taskID string, workerID int, err error, panicked bool) Event {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	return Event{
		Type:      EventTaskFailed,
		Timestamp: time.Now(),
		Pool:      pool,
		Data: EventData{
			TaskID:   taskID,
			WorkerID: workerID,
			Panicked: panicked,
			Error:    errMsg,
		},
	}
}

// NewTaskRejectedEvent creates a task rejected event
func NewTaskRejectedEvent(pool, taskID string) Event {
	return Event{
		Type:      EventTaskRejected,
		Timestamp: time.Now(),
		Pool:      pool,
		Data: EventData{
			TaskID: taskID,
		},
	}
}

// NewFaultInjectedEvent creates a fault injection event
func NewFaultInjectedEvent(faultType string) Event {
	return Event{
		Type:      EventFaultInjected,
		Timestamp: time.Now(),
		Data: EventData{
			FaultType: faultType,
		},
	}
}

// NewTaskRecoveredEvent creates a recovery success event
func NewTaskRecoveredEvent(attempts int) Event {
	return Event{
		Type:      EventTaskRecovered,
		Timestamp: time.Now(),
		Data: EventData{
			Attempts: attempts,
		},
	}
}

// NewRecoveryFailedEvent creates a recovery failure event
func NewRecoveryFailedEvent(attempts int, err error) Event {
	return Event{
		Type:      EventRecoveryFailed,
		Timestamp: time.Now(),
		Data: EventData{
			Attempts: attempts,
			Error:    err.Error(),
		},
	}
}
