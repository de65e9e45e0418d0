// SPDX-License-Identifier: EPL-2.0

package timeline

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Track is a Store with identity and lane attributes.
type Track struct {
	*Store
	attrs

	id     string
	nameMu sync.RWMutex
	name   string
}

func NewTrack(name string, rate, channels int) (*Track, error) {
	st, err := NewStore(rate, channels)
	if err != nil {
		return nil, fmt.Errorf("new track %q: %w", name, err)
	}
	return &Track{
		Store: st,
		attrs: attrs{a: DefaultAttributes},
		id:    uuid.NewString(),
		name:  name,
	}, nil
}

func (t *Track) ID() string { return t.id }

func (t *Track) Name() string {
	t.nameMu.RLock()
	defer t.nameMu.RUnlock()
	return t.name
}

func (t *Track) SetName(name string) {
	t.nameMu.Lock()
	t.name = name
	t.nameMu.Unlock()
}

func (t *Track) CurrentTrack() *Track { return t }

func (t *Track) IsAudible() bool { return !t.Closed() }

func (t *Track) String() string {
	return fmt.Sprintf("Track(%s %q rate=%d channels=%d)", t.id, t.Name(), t.SampleRate(), t.Channels())
}
