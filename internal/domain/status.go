package domain

import (
	"encoding/json"
	"fmt"
)

// Status labels used in ProgressUpdate and persisted job rows.
const (
	StatusLabelRunning   = "running"
	StatusLabelCompleted = "completed"
	StatusLabelFailed    = "failed"
)

// BacktestStatus is the closed set of job states: Running, Completed or Failed.
// Only types in this package implement it.
type BacktestStatus interface {
	// Label returns "running", "completed" or "failed".
	Label() string
	// Terminal reports whether no further transition is allowed.
	Terminal() bool

	isBacktestStatus()
}

// Running is the only non-terminal state.
type Running struct {
	Progress float64 // in [0, 1]
}

// Completed holds the trades in the order their positions closed.
// The slice is frozen at transition time and must not be modified by readers.
type Completed struct {
	Trades []Trade
}

// Failed holds a human-readable error message.
type Failed struct {
	Error string
}

var (
	_ BacktestStatus = Running{}
	_ BacktestStatus = Completed{}
	_ BacktestStatus = Failed{}
)

func (Running) Label() string   { return StatusLabelRunning }
func (Completed) Label() string { return StatusLabelCompleted }
func (Failed) Label() string    { return StatusLabelFailed }

func (Running) Terminal() bool   { return false }
func (Completed) Terminal() bool { return true }
func (Failed) Terminal() bool    { return true }

func (Running) isBacktestStatus()   {}
func (Completed) isBacktestStatus() {}
func (Failed) isBacktestStatus()    {}

// Externally tagged encoding: {"Running":0.5}, {"Completed":[...]}, {"Failed":"msg"}.

func (s Running) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]float64{"Running": s.Progress})
}

func (s Completed) MarshalJSON() ([]byte, error) {
	trades := s.Trades
	if trades == nil {
		trades = []Trade{}
	}
	return json.Marshal(map[string][]Trade{"Completed": trades})
}

func (s Failed) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"Failed": s.Error})
}

// DecodeStatus parses the externally tagged BacktestStatus encoding.
func DecodeStatus(data []byte) (BacktestStatus, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("decode status: expected exactly one tag, got %d", len(raw))
	}

	for tag, body := range raw {
		switch tag {
		case "Running":
			var p float64
			if err := json.Unmarshal(body, &p); err != nil {
				return nil, fmt.Errorf("decode Running: %w", err)
			}
			return Running{Progress: p}, nil
		case "Completed":
			var trades []Trade
			if err := json.Unmarshal(body, &trades); err != nil {
				return nil, fmt.Errorf("decode Completed: %w", err)
			}
			return Completed{Trades: trades}, nil
		case "Failed":
			var msg string
			if err := json.Unmarshal(body, &msg); err != nil {
				return nil, fmt.Errorf("decode Failed: %w", err)
			}
			return Failed{Error: msg}, nil
		default:
			return nil, fmt.Errorf("decode status: unknown tag %q", tag)
		}
	}
	return nil, fmt.Errorf("decode status: empty object")
}

// ProgressUpdate is the wire projection of a job's status.
type ProgressUpdate struct {
	ID       string  `json:"id"`
	Progress float64 `json:"progress"`
	Status   string  `json:"status"` // running | completed | failed
}

// NewProgressUpdate projects a status. Terminal states report progress 1.0.
func NewProgressUpdate(id string, s BacktestStatus) ProgressUpdate {
	u := ProgressUpdate{ID: id, Status: s.Label(), Progress: 1}
	if r, ok := s.(Running); ok {
		u.Progress = r.Progress
	}
	return u
}

// Terminal reports whether the update describes a finished job.
func (u ProgressUpdate) Terminal() bool {
	return u.Status == StatusLabelCompleted || u.Status == StatusLabelFailed
}
