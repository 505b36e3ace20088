// Package registry maintains the authoritative set of currently tracked
// audio sources, fed by observer events and swept for liveness.
package registry

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// Default volume assigned to a newly observed source.
const DefaultVolume = 100

// ErrUnknownSource is returned for operations on an id not in the registry.
var ErrUnknownSource = errors.New("unknown source")

// AudioSource is one tracked source. Volume is an integer in [0,100].
type AudioSource struct {
	ID         string    `json:"id"`
	Volume     int       `json:"volume"`
	Muted      bool      `json:"muted"`
	LastSeenAt time.Time `json:"lastSeenAt"`
}

// ChangeType indicates the kind of registry change.
type ChangeType int

const (
	// ChangeAdded indicates a source started being tracked.
	ChangeAdded ChangeType = iota
	// ChangeRemoved indicates a source stopped being tracked.
	ChangeRemoved
	// ChangeSwept indicates sources were removed by the liveness sweep.
	ChangeSwept
)

// ChangeEvent signals a tracking change. Count is the number of sources
// tracked after the change.
type ChangeEvent struct {
	Type     ChangeType
	SourceID string
	Count    int
}

// Registry owns all AudioSource state. Other components read and write
// through it and never cache copies.
type Registry struct {
	mu          sync.RWMutex
	sources     map[string]*AudioSource
	subscribers []chan ChangeEvent

	now func() time.Time // injectable for sweep tests
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		sources: make(map[string]*AudioSource),
		now:     time.Now,
	}
}

// ObserveStarted records that a source is playing. A previously unknown
// id is created with default volume and unmuted; a known id only has its
// liveness refreshed so user-chosen levels survive pause/resume cycles.
// Returns true when a new source was created.
func (r *Registry) ObserveStarted(sourceID string) bool {
	r.mu.Lock()

	if src, ok := r.sources[sourceID]; ok {
		src.LastSeenAt = r.now()
		r.mu.Unlock()
		return false
	}

	r.sources[sourceID] = &AudioSource{
		ID:         sourceID,
		Volume:     DefaultVolume,
		Muted:      false,
		LastSeenAt: r.now(),
	}
	event := ChangeEvent{Type: ChangeAdded, SourceID: sourceID, Count: len(r.sources)}
	r.mu.Unlock()

	r.notify(event)
	return true
}

// ObserveStopped removes a source and all bookkeeping tied to it. An id
// reappearing after removal is treated as a brand-new source.
// Returns true when the id was tracked.
func (r *Registry) ObserveStopped(sourceID string) bool {
	r.mu.Lock()
	if _, ok := r.sources[sourceID]; !ok {
		r.mu.Unlock()
		return false
	}
	delete(r.sources, sourceID)
	event := ChangeEvent{Type: ChangeRemoved, SourceID: sourceID, Count: len(r.sources)}
	r.mu.Unlock()

	r.notify(event)
	return true
}

// Get returns a copy of the source, if tracked.
func (r *Registry) Get(sourceID string) (AudioSource, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.sources[sourceID]
	if !ok {
		return AudioSource{}, false
	}
	return *src, true
}

// All returns a snapshot of every tracked source, sorted by id so that
// redistribution arithmetic iterates deterministically.
func (r *Registry) All() []AudioSource {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]AudioSource, 0, len(r.sources))
	for _, src := range r.sources {
		out = append(out, *src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Count returns the number of tracked sources.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sources)
}

// SetVolume updates one source's volume.
func (r *Registry) SetVolume(sourceID string, volume int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.sources[sourceID]
	if !ok {
		return ErrUnknownSource
	}
	src.Volume = volume
	return nil
}

// SetMuted updates one source's mute state.
func (r *Registry) SetMuted(sourceID string, muted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	src, ok := r.sources[sourceID]
	if !ok {
		return ErrUnknownSource
	}
	src.Muted = muted
	return nil
}

// SweepInactive removes sources not refreshed within maxAge and returns
// the removed ids. This is a liveness mechanism: a removed source that
// reports again is simply tracked as new.
func (r *Registry) SweepInactive(maxAge time.Duration) []string {
	r.mu.Lock()

	cutoff := r.now().Add(-maxAge)
	var removed []string
	for id, src := range r.sources {
		if src.LastSeenAt.Before(cutoff) {
			removed = append(removed, id)
		}
	}
	sort.Strings(removed)

	// Remove in sorted order so each event carries the count at the
	// moment of that removal, matching ChangeAdded/ChangeRemoved.
	events := make([]ChangeEvent, 0, len(removed))
	for _, id := range removed {
		delete(r.sources, id)
		events = append(events, ChangeEvent{Type: ChangeSwept, SourceID: id, Count: len(r.sources)})
	}
	r.mu.Unlock()

	for _, ev := range events {
		r.notify(ev)
	}
	return removed
}

// Subscribe returns a channel receiving tracking change events.
func (r *Registry) Subscribe() <-chan ChangeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch := make(chan ChangeEvent, 16)
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (r *Registry) Unsubscribe(ch <-chan ChangeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, sub := range r.subscribers {
		if sub == ch {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// notify sends a change event to all subscribers without blocking.
func (r *Registry) notify(event ChangeEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			// Subscriber is slow; drop rather than stall source events.
		}
	}
}
