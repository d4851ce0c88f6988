// Package viewport holds the scroll position of whatever is displaying the
// feed and notifies listeners when it changes.
package viewport

import "sync"

// Position describes the visible window over the rendered content
type Position struct {
	// Offset is how far the window has been scrolled from the top
	Offset int
	// Height is the size of the visible window
	Height int
	// ContentHeight is the size of all rendered content
	ContentHeight int
}

// Bottom is the position of the lower edge of the visible window
func (p Position) Bottom() int {
	return p.Offset + p.Height
}

type listener struct {
	id int
	fn func(Position)
}

type Viewport struct {
	sync.RWMutex
	pos       Position
	listeners []listener
	nextID    int
}

func New() *Viewport {
	return &Viewport{}
}

func (v *Viewport) Position() Position {
	v.RLock()
	defer v.RUnlock()
	return v.pos
}

// Set records the position and notifies every listener
func (v *Viewport) Set(pos Position) {
	v.Lock()
	v.pos = pos
	listeners := make([]listener, len(v.listeners))
	copy(listeners, v.listeners)
	v.Unlock()

	for _, l := range listeners {
		l.fn(pos)
	}
}

// Subscribe registers fn for position changes. The returned func removes it.
func (v *Viewport) Subscribe(fn func(Position)) func() {
	v.Lock()
	defer v.Unlock()

	id := v.nextID
	v.nextID++
	v.listeners = append(v.listeners, listener{id: id, fn: fn})

	return func() {
		v.Lock()
		defer v.Unlock()
		for i, l := range v.listeners {
			if l.id == id {
				v.listeners = append(v.listeners[:i], v.listeners[i+1:]...)
				return
			}
		}
	}
}

// Listeners returns the number of subscribed listeners
func (v *Viewport) Listeners() int {
	v.RLock()
	defer v.RUnlock()
	return len(v.listeners)
}
