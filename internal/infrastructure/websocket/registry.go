package websocket

import "xopt/internal/application/port"

// handlerRef is one registered callback. Identity is the pointer, so the same
// function subscribed twice is removed one registration at a time.
type handlerRef struct {
	key string
	fn  port.EventHandler
}

// registry maps logical stream keys to their callbacks, keeping first-subscribe order.
type registry struct {
	entries map[string][]*handlerRef
	order   []string
}

func newRegistry() *registry {
	return &registry{entries: make(map[string][]*handlerRef)}
}

// add appends ref and reports whether its stream was not present before.
func (r *registry) add(ref *handlerRef) (created bool) {
	hs, ok := r.entries[ref.key]
	if !ok {
		r.order = append(r.order, ref.key)
	}
	r.entries[ref.key] = append(hs, ref)
	return !ok
}

// remove drops exactly ref. emptied is true when the stream lost its last handler.
func (r *registry) remove(ref *handlerRef) (found, emptied bool) {
	hs, ok := r.entries[ref.key]
	if !ok {
		return false, false
	}
	idx := -1
	for i, h := range hs {
		if h == ref {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, false
	}

	if len(hs) == 1 {
		delete(r.entries, ref.key)
		for i, k := range r.order {
			if k == ref.key {
				r.order = append(r.order[:i], r.order[i+1:]...)
				break
			}
		}
		return true, true
	}

	next := make([]*handlerRef, 0, len(hs)-1)
	next = append(next, hs[:idx]...)
	next = append(next, hs[idx+1:]...)
	r.entries[ref.key] = next
	return true, false
}

// handlers returns the callbacks of key. The slice is never mutated in place, so the
// caller may range over it after releasing the lock.
func (r *registry) handlers(key string) []*handlerRef {
	return r.entries[key]
}

func (r *registry) keys() []string {
	return append([]string(nil), r.order...)
}

func (r *registry) len() int { return len(r.entries) }

func (r *registry) reset() {
	r.entries = make(map[string][]*handlerRef)
	r.order = nil
}
