package worker

// WorkerState はワーカーの状態
// Idle -> Running -> Idle を繰り返し、キューのクローズを検知すると Terminated になる
type WorkerState int32

const (
	StateIdle WorkerState = iota
	StateRunning
	StateTerminated
)

func (s WorkerState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}
