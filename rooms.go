package main

import (
	"sync"
	"time"
)

const maxRooms = 100

// RoomIdleTimeout is how long a room may sit with no connections
// before the janitor tears it down. Variable so tests can shorten it.
var RoomIdleTimeout = 5 * time.Minute

// RoomManager creates and looks up rooms by id. Rooms run their own
// tick loops; the manager only owns their lifecycle.
type RoomManager struct {
	mu         sync.RWMutex
	rooms      map[string]*Room
	emptySince map[string]time.Time

	db        *DB
	analytics *Analytics
	stop      chan struct{}
}

// NewRoomManager creates a manager and starts its idle-room janitor
func NewRoomManager(db *DB, analytics *Analytics) *RoomManager {
	m := &RoomManager{
		rooms:      make(map[string]*Room),
		emptySince: make(map[string]time.Time),
		db:         db,
		analytics:  analytics,
		stop:       make(chan struct{}),
	}
	go m.janitor()
	return m
}

// GetOrCreate returns the room with the given id, creating and
// starting it on first use. Returns nil when the room cap is reached.
func (m *RoomManager) GetOrCreate(id string) *Room {
	if id == "" {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[id]; ok {
		return r
	}
	if len(m.rooms) >= maxRooms {
		return nil
	}
	r := NewRoom(id, m.db, m.analytics)
	m.rooms[id] = r
	go r.Run()
	return r
}

// Get returns an existing room or nil
func (m *RoomManager) Get(id string) *Room {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rooms[id]
}

// List returns directory info for all rooms
func (m *RoomManager) List() []RoomInfo {
	m.mu.RLock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.RUnlock()

	out := make([]RoomInfo, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Info())
	}
	return out
}

// Stop halts the janitor and every room
func (m *RoomManager) Stop() {
	close(m.stop)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		r.Stop()
		delete(m.rooms, id)
	}
}

// janitor removes rooms that have had no connections for the idle
// timeout. Disconnected players' records die with the room; that is
// the whole of the teardown policy.
func (m *RoomManager) janitor() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

func (m *RoomManager) sweep(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, r := range m.rooms {
		if r.ConnCount() > 0 {
			delete(m.emptySince, id)
			continue
		}
		since, ok := m.emptySince[id]
		if !ok {
			m.emptySince[id] = now
			continue
		}
		if now.Sub(since) >= RoomIdleTimeout {
			r.Stop()
			delete(m.rooms, id)
			delete(m.emptySince, id)
		}
	}
}
