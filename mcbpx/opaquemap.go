package mcbpx

import (
	"sync"
	"time"
)

// DispatchCallback is a one-shot continuation for a dispatched request.
// It is invoked exactly once, with either the matching response packet
// or an error (cancellation, session stop).
type DispatchCallback func(*Packet, error)

// OpaqueMap maps 32-bit request identifiers to their one-shot
// continuations.  It upholds two guarantees: an opaque is registered at
// most once at any time, and a continuation fires exactly once (a
// matching response, a cancel, or a drain on close).  Entries are
// removed before their continuation fires so a continuation can
// re-register from within itself.
type OpaqueMap struct {
	lock sync.Mutex

	entries map[uint32]*opaqueMapEntry
}

type opaqueMapEntry struct {
	handler    DispatchCallback
	enqueuedAt time.Time
}

func NewOpaqueMap() *OpaqueMap {
	return &OpaqueMap{
		entries: make(map[uint32]*opaqueMapEntry),
	}
}

// Register stores a continuation under the given opaque.  Registering
// an opaque that is already pending is a protocol error.
func (m *OpaqueMap) Register(opaqueID uint32, handler DispatchCallback) error {
	// the handler escapes here, keep the allocation outside the lock
	entry := &opaqueMapEntry{
		handler:    handler,
		enqueuedAt: time.Now(),
	}

	m.lock.Lock()
	defer m.lock.Unlock()

	if _, ok := m.entries[opaqueID]; ok {
		return protocolError{"duplicate opaque registration"}
	}

	m.entries[opaqueID] = entry
	return nil
}

func (m *OpaqueMap) getAndRemove(opaqueID uint32) (*opaqueMapEntry, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	entry, ok := m.entries[opaqueID]
	if !ok {
		return nil, false
	}

	delete(m.entries, opaqueID)
	return entry, true
}

// Invoke removes the continuation registered under opaqueID and fires
// it with the given packet and error.  Returns false if no continuation
// was registered (an orphan response).
func (m *OpaqueMap) Invoke(opaqueID uint32, pak *Packet, err error) bool {
	entry, ok := m.getAndRemove(opaqueID)
	if !ok {
		return false
	}

	entry.handler(pak, err)
	return true
}

// Cancel removes the continuation registered under opaqueID and fires
// it with err.  Unregistered opaques are a no-op.
func (m *OpaqueMap) Cancel(opaqueID uint32, err error) bool {
	entry, ok := m.getAndRemove(opaqueID)
	if !ok {
		return false
	}

	entry.handler(nil, err)
	return true
}

func (m *OpaqueMap) stealAllEntries() map[uint32]*opaqueMapEntry {
	m.lock.Lock()
	defer m.lock.Unlock()

	entries := m.entries
	m.entries = make(map[uint32]*opaqueMapEntry)

	return entries
}

// CancelAll drains every pending continuation, firing each exactly once
// with err.
func (m *OpaqueMap) CancelAll(err error) {
	entries := m.stealAllEntries()
	for _, entry := range entries {
		entry.handler(nil, err)
	}
}

// Len reports the number of currently pending continuations.
func (m *OpaqueMap) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.entries)
}
