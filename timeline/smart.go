// SPDX-License-Identifier: EPL-2.0

package timeline

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// SmartTrack holds alternative takes and plays the selected one.
type SmartTrack struct {
	attrs

	id string

	mu       sync.RWMutex
	name     string
	takes    []*Track
	selected int
}

func NewSmartTrack(name string) *SmartTrack {
	return &SmartTrack{
		attrs:    attrs{a: DefaultAttributes},
		id:       uuid.NewString(),
		name:     name,
		selected: -1,
	}
}

func (st *SmartTrack) ID() string { return st.id }

func (st *SmartTrack) Name() string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.name
}

// AddTake appends a take and returns its index. The first take added
// becomes the selection.
func (st *SmartTrack) AddTake(t *Track) int {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.takes = append(st.takes, t)
	if st.selected < 0 {
		st.selected = 0
	}
	return len(st.takes) - 1
}

// RemoveTake detaches take i without closing it.
func (st *SmartTrack) RemoveTake(i int) (*Track, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if i < 0 || i >= len(st.takes) {
		return nil, ErrNoTake
	}
	t := st.takes[i]
	st.takes = append(st.takes[:i], st.takes[i+1:]...)
	switch {
	case len(st.takes) == 0:
		st.selected = -1
	case st.selected > i || st.selected == len(st.takes):
		st.selected--
	}
	return t, nil
}

func (st *SmartTrack) Takes() []*Track {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]*Track, len(st.takes))
	copy(out, st.takes)
	return out
}

func (st *SmartTrack) Select(i int) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	if i < 0 || i >= len(st.takes) {
		return ErrNoTake
	}
	st.selected = i
	return nil
}

// Selected returns the selected take index, -1 when there are no takes.
func (st *SmartTrack) Selected() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.selected
}

func (st *SmartTrack) CurrentTrack() *Track {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.selected < 0 {
		return nil
	}
	return st.takes[st.selected]
}

func (st *SmartTrack) IsAudible() bool {
	cur := st.CurrentTrack()
	return cur != nil && !cur.Closed()
}

// Close closes every take.
func (st *SmartTrack) Close() error {
	st.mu.Lock()
	takes := st.takes
	st.takes = nil
	st.selected = -1
	st.mu.Unlock()

	var errs []error
	for _, t := range takes {
		errs = append(errs, t.Close())
	}
	return errors.Join(errs...)
}
