package server

import (
	"sync"

	"github.com/npezzotti/go-studychat/internal/stats"
)

// RoomManager tracks which connections are subscribed to which rooms. A room
// exists while it has at least one subscriber.
type RoomManager struct {
	mu    sync.RWMutex
	rooms map[string]map[Connection]struct{}
	stats stats.StatsProvider
}

func NewRoomManager(sp stats.StatsProvider) *RoomManager {
	return &RoomManager{
		rooms: make(map[string]map[Connection]struct{}),
		stats: sp,
	}
}

// Join subscribes conn to roomId. Joining twice is a no-op.
func (rm *RoomManager) Join(roomId string, conn Connection) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	subs, ok := rm.rooms[roomId]
	if !ok {
		subs = make(map[Connection]struct{})
		rm.rooms[roomId] = subs
		rm.stats.Incr(stats.NumActiveRooms)
	}
	subs[conn] = struct{}{}
}

// Leave unsubscribes conn from roomId. Leaving a room that was never joined
// is a no-op.
func (rm *RoomManager) Leave(roomId string, conn Connection) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.leave(roomId, conn)
}

// LeaveAll removes conn from every room.
func (rm *RoomManager) LeaveAll(conn Connection) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	for roomId := range rm.rooms {
		rm.leave(roomId, conn)
	}
}

func (rm *RoomManager) leave(roomId string, conn Connection) {
	subs, ok := rm.rooms[roomId]
	if !ok {
		return
	}

	delete(subs, conn)
	if len(subs) == 0 {
		delete(rm.rooms, roomId)
		rm.stats.Decr(stats.NumActiveRooms)
	}
}

// Subscribers returns a snapshot of the connections subscribed to roomId.
func (rm *RoomManager) Subscribers(roomId string) []Connection {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	subs := make([]Connection, 0, len(rm.rooms[roomId]))
	for c := range rm.rooms[roomId] {
		subs = append(subs, c)
	}
	return subs
}

func (rm *RoomManager) IsSubscribed(roomId string, conn Connection) bool {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	_, ok := rm.rooms[roomId][conn]
	return ok
}
