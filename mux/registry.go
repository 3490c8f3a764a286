package mux

import (
	"github.com/lcx/linkmux/utils"
)

// AcceptResult is the outcome of ConnectionRegistry.Accept.
type AcceptResult uint8

const (
	// Accepted means the connection was registered.
	Accepted AcceptResult = iota
	// RejectedCapacity means the registry is at maxClients; the caller
	// must tear the driver link down. No partial state is left behind.
	RejectedCapacity
)

// registryEntry is the bookkeeping for one registered connection.
type registryEntry struct {
	driverConn ConnectionID
	generation uint32
	order      uint64
	live       bool
}

// ConnectionRegistry owns the server socket's handle space. It mints
// generation-tagged handles independent of driver identity, bounds the
// concurrent connection count, and sweeps entries whose driver resource
// was observed dead without a disconnect event.
type ConnectionRegistry struct {
	slots      []registryEntry
	free       []uint32
	byDriver   map[ConnectionID]ConnectionHandle
	maxClients int
	count      int
	nextOrder  uint64
}

// NewConnectionRegistry creates a registry bounded by maxClients.
func NewConnectionRegistry(maxClients int) *ConnectionRegistry {
	return &ConnectionRegistry{
		byDriver:   make(map[ConnectionID]ConnectionHandle),
		maxClients: maxClients,
	}
}

// Count returns the number of live entries.
func (r *ConnectionRegistry) Count() int {
	return r.count
}

// MaxClients returns the capacity bound.
func (r *ConnectionRegistry) MaxClients() int {
	return r.maxClients
}

// SetMaxClients applies a new bound. Existing connections above the new
// bound stay; only new accepts are refused.
func (r *ConnectionRegistry) SetMaxClients(n int) {
	r.maxClients = n
}

// Accept registers a new driver link and mints its handle. At capacity it
// registers nothing and returns RejectedCapacity.
func (r *ConnectionRegistry) Accept(driverConn ConnectionID) (ConnectionHandle, AcceptResult) {
	if r.count >= r.maxClients {
		return InvalidConnection, RejectedCapacity
	}

	var index uint32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
		r.slots[index].generation++
	} else {
		index = uint32(len(r.slots))
		r.slots = append(r.slots, registryEntry{})
	}

	slot := &r.slots[index]
	slot.driverConn = driverConn
	slot.order = r.nextOrder
	slot.live = true
	r.nextOrder++
	r.count++

	handle := ConnectionHandle(utils.PackHandle(index, slot.generation))
	r.byDriver[driverConn] = handle
	return handle, Accepted
}

// Lookup resolves a handle to its driver connection. Handles from a
// previous occupant of the slot fail the generation check.
func (r *ConnectionRegistry) Lookup(handle ConnectionHandle) (ConnectionID, bool) {
	slot := r.slot(handle)
	if slot == nil {
		return 0, false
	}
	return slot.driverConn, true
}

// LookupByDriver resolves a driver connection to its live handle.
func (r *ConnectionRegistry) LookupByDriver(driverConn ConnectionID) (ConnectionHandle, bool) {
	handle, ok := r.byDriver[driverConn]
	return handle, ok
}

// Remove deregisters a handle. Unknown or stale handles are a no-op.
func (r *ConnectionRegistry) Remove(handle ConnectionHandle) bool {
	slot := r.slot(handle)
	if slot == nil {
		return false
	}

	index, _ := utils.UnpackHandle(uint64(handle))
	delete(r.byDriver, slot.driverConn)
	slot.live = false
	r.free = append(r.free, index)
	r.count--
	return true
}

// Sweep removes entries whose driver link is no longer valid, calling
// onRemove for each so the owning socket can dispose per-connection
// state. Returns the number of entries removed.
func (r *ConnectionRegistry) Sweep(isValid func(ConnectionID) bool, onRemove func(ConnectionHandle)) int {
	removed := 0
	for index := range r.slots {
		slot := &r.slots[index]
		if !slot.live || isValid(slot.driverConn) {
			continue
		}
		handle := ConnectionHandle(utils.PackHandle(uint32(index), slot.generation))
		r.Remove(handle)
		if onRemove != nil {
			onRemove(handle)
		}
		removed++
	}
	return removed
}

// Handles appends all live handles to dst in creation order and returns
// it. The socket uses this for deterministic iteration.
func (r *ConnectionRegistry) Handles(dst []ConnectionHandle) []ConnectionHandle {
	type liveSlot struct {
		order  uint64
		handle ConnectionHandle
	}
	live := make([]liveSlot, 0, r.count)
	for index := range r.slots {
		slot := &r.slots[index]
		if !slot.live {
			continue
		}
		live = append(live, liveSlot{
			order:  slot.order,
			handle: ConnectionHandle(utils.PackHandle(uint32(index), slot.generation)),
		})
	}
	for i := 1; i < len(live); i++ {
		for j := i; j > 0 && live[j-1].order > live[j].order; j-- {
			live[j-1], live[j] = live[j], live[j-1]
		}
	}
	for _, s := range live {
		dst = append(dst, s.handle)
	}
	return dst
}

// slot validates a handle and returns its live entry, or nil.
func (r *ConnectionRegistry) slot(handle ConnectionHandle) *registryEntry {
	if !utils.IsHandleValid(uint64(handle)) {
		return nil
	}
	index, generation := utils.UnpackHandle(uint64(handle))
	if int(index) >= len(r.slots) {
		return nil
	}
	slot := &r.slots[index]
	if !slot.live || slot.generation != generation {
		return nil
	}
	return slot
}
