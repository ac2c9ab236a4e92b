package poller

import (
	"sync"
	"time"

	"github.com/anicoll/vevor-integration/internal/pkg/classifier"
	"github.com/anicoll/vevor-integration/internal/pkg/model"
)

// Status is a copy of the latest poll outcome.
type Status struct {
	Snapshot  *model.Snapshot     `json:"snapshot,omitempty"`
	Mode      model.OperatingMode `json:"mode,omitempty"`
	Flags     classifier.Flags    `json:"flags"`
	UpdatedAt time.Time           `json:"updated_at"`
	Cycles    uint64              `json:"cycles"`
	Failures  uint64              `json:"failures"`
	LastError string              `json:"last_error,omitempty"`
}

type State struct {
	mu     sync.RWMutex
	status Status
}

func NewState() *State {
	return &State{}
}

// Latest returns the most recent status and whether a snapshot has been decoded yet.
func (s *State) Latest() (Status, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status, s.status.Snapshot != nil
}

func (s *State) update(snap model.Snapshot, mode model.OperatingMode, flags classifier.Flags) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Snapshot = &snap
	s.status.Mode = mode
	s.status.Flags = flags
	s.status.UpdatedAt = snap.Timestamp
}

func (s *State) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Cycles++
	if err != nil {
		s.status.Failures++
		s.status.LastError = err.Error()
		return
	}
	s.status.LastError = ""
}
