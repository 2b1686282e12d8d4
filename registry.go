/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"crypto/rand"
	"sync"
	"time"
)

// Participant is one seat in a room. The display name is the durable
// identity; the connection ID is volatile and replaced on every rejoin.
type Participant struct {
	ConnID     string `json:"conn_id"`
	Username   string `json:"username"`
	Assignment string `json:"assignment,omitempty"`
	Connected  bool   `json:"connected"`
}

type Room struct {
	mu         sync.Mutex
	id         string
	variant    string
	host       string // connID of the current host, follows identity on rejoin
	players    []*Participant
	game       Game
	lastActive time.Time
}

type roomUpdate struct {
	RoomID    string         `json:"room_id"`
	Variant   string         `json:"variant"`
	Host      string         `json:"host"`
	Players   []*Participant `json:"players"`
	GameState any            `json:"game_state"`
}

// roomUpdateLocked assumes r.mu is held.
func (r *Room) roomUpdateLocked() roomUpdate {
	return roomUpdate{
		RoomID:    r.id,
		Variant:   r.variant,
		Host:      r.host,
		Players:   r.players,
		GameState: r.game.Snapshot(),
	}
}

// rosterLocked assumes r.mu is held.
func (r *Room) rosterLocked() []Seat {
	seats := make([]Seat, 0, len(r.players))
	for _, p := range r.players {
		seats = append(seats, Seat{ConnID: p.ConnID, Username: p.Username})
	}
	return seats
}

// transportBinder lets the registry tag a connection with the room it
// joined, so room-wide broadcasts reach it.
type transportBinder interface {
	setRoom(connID, roomID string)
}

// Registry owns the set of live rooms and the disconnect grace timers.
// Mutations of a single room are serialized by that room's mutex; timer
// callbacks take the same path as player actions.
type Registry struct {
	cfg    *Config
	sender Sender
	binder transportBinder
	gen    Generator

	mu          sync.Mutex
	rooms       map[string]*Room
	graceTimers map[string]*time.Timer // roomID/username -> pending removal
}

func newRegistry(cfg *Config, sender Sender, binder transportBinder, gen Generator) *Registry {
	reg := &Registry{
		cfg:         cfg,
		sender:      sender,
		binder:      binder,
		gen:         gen,
		rooms:       make(map[string]*Room),
		graceTimers: make(map[string]*time.Timer),
	}
	if cfg.sessionTimeout > 0 {
		go reg.reaperLoop()
	}
	return reg
}

// newRoomID generates a crypto-random room code and ensures it doesn't
// collide with existing rooms.
func (reg *Registry) newRoomID() string {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	for {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 4)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		reg.mu.Lock()
		_, exists := reg.rooms[id]
		reg.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// CreateRoom allocates a fresh room bound to a new machine of the requested
// variant and seats the creator as host.
func (reg *Registry) CreateRoom(connID, username, variant string) (string, error) {
	roomID := reg.newRoomID()

	room := &Room{
		id:         roomID,
		variant:    variant,
		host:       connID,
		lastActive: time.Now(),
	}
	room.game = newGame(reg.cfg, variant, roomID, reg.sender, &room.mu, reg.gen)
	if room.game == nil {
		return "", errUnknownVariant
	}

	reg.mu.Lock()
	reg.rooms[roomID] = room
	reg.mu.Unlock()

	logf(reg.cfg, "ROOMS: Created %s room %s", variant, roomID)

	if err := reg.Join(connID, roomID, username); err != nil {
		return "", err
	}

	return roomID, nil
}

// Join admits a new participant, or re-admits a returning one by display
// name: the connection ID is replaced, the grace timer cancelled, and every
// in-game reference migrated to the new connection.
func (reg *Registry) Join(connID, roomID, username string) error {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	if !ok {
		reg.mu.Unlock()
		return errRoomNotFound
	}

	if t, pending := reg.graceTimers[graceKey(roomID, username)]; pending {
		t.Stop()
		delete(reg.graceTimers, graceKey(roomID, username))
	}
	reg.mu.Unlock()

	room.mu.Lock()
	room.lastActive = time.Now()

	var existing *Participant
	for _, p := range room.players {
		if p.Username == username {
			existing = p
			break
		}
	}

	if existing != nil {
		oldID := existing.ConnID
		if existing.Connected && oldID != connID {
			room.mu.Unlock()
			return errNameTaken
		}

		existing.ConnID = connID
		existing.Connected = true
		room.game.Migrate(oldID, connID)
		if room.host == oldID {
			room.host = connID
		}
		logf(reg.cfg, "ROOMS: %q rejoined %s", username, roomID)
	} else {
		assignment := room.game.Admit(connID)
		room.players = append(room.players, &Participant{
			ConnID:     connID,
			Username:   username,
			Assignment: assignment,
			Connected:  true,
		})
		logf(reg.cfg, "ROOMS: %q joined %s", username, roomID)
	}

	update := room.roomUpdateLocked()
	room.mu.Unlock()

	if reg.binder != nil {
		reg.binder.setRoom(connID, roomID)
	}
	reg.sender.Broadcast(roomID, "room_update", update)

	return nil
}

// Leave marks the participant owning this connection as disconnected and
// arms the grace timer. The seat and all game state survive until the timer
// fires or a rejoin cancels it.
func (reg *Registry) Leave(connID string) {
	room, p := reg.findByConn(connID)
	if room == nil {
		return
	}

	room.mu.Lock()
	room.lastActive = time.Now()
	p.Connected = false
	username := p.Username
	roomID := room.id
	update := room.roomUpdateLocked()
	room.mu.Unlock()

	reg.sender.Broadcast(roomID, "room_update", update)
	logf(reg.cfg, "ROOMS: %q disconnected from %s, grace period started", username, roomID)

	reg.mu.Lock()
	if t, pending := reg.graceTimers[graceKey(roomID, username)]; pending {
		t.Stop()
	}
	reg.graceTimers[graceKey(roomID, username)] = time.AfterFunc(reg.cfg.gracePeriod, func() {
		reg.expel(roomID, username)
	})
	reg.mu.Unlock()
}

// graceKey scopes pending removals to a single room; display names are
// only unique per room.
func graceKey(roomID, username string) string {
	return roomID + "/" + username
}

// expel permanently removes a participant after the grace period. Safe to
// fire against a room that has already been destroyed, or a participant who
// reconnected in the meantime.
func (reg *Registry) expel(roomID, username string) {
	reg.mu.Lock()
	delete(reg.graceTimers, graceKey(roomID, username))
	room, ok := reg.rooms[roomID]
	reg.mu.Unlock()
	if !ok {
		return
	}

	room.mu.Lock()
	idx := -1
	for i, p := range room.players {
		if p.Username == username {
			idx = i
			break
		}
	}
	if idx == -1 || room.players[idx].Connected {
		room.mu.Unlock()
		return
	}

	connID := room.players[idx].ConnID
	room.players = append(room.players[:idx], room.players[idx+1:]...)
	room.game.Remove(connID)
	empty := len(room.players) == 0
	var update roomUpdate
	if !empty {
		update = room.roomUpdateLocked()
	}
	room.mu.Unlock()

	logf(reg.cfg, "ROOMS: Grace period ended for %q, removed from %s", username, roomID)

	if empty {
		reg.destroyRoom(roomID)
		return
	}
	reg.sender.Broadcast(roomID, "room_update", update)
}

// Dispatch routes an action into the room's machine. Accepted actions
// broadcast the new state to the whole room; rejections go back privately
// to the acting connection and leave shared state untouched.
func (reg *Registry) Dispatch(connID, roomID string, act *Action) {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	reg.mu.Unlock()
	if !ok {
		reg.sender.Send(connID, "error", map[string]string{"message": errRoomNotFound.Error()})
		return
	}

	room.mu.Lock()
	seated := false
	for _, p := range room.players {
		if p.ConnID == connID {
			seated = true
			break
		}
	}
	if !seated {
		room.mu.Unlock()
		reg.sender.Send(connID, "error", map[string]string{"message": errNotInRoom.Error()})
		return
	}

	room.lastActive = time.Now()
	act.roster = room.rosterLocked()
	res := room.game.Apply(act, connID)

	var snapshot any
	if res.OK {
		snapshot = room.game.Snapshot()
	}
	room.mu.Unlock()

	if res.OK {
		reg.sender.Broadcast(roomID, "game_update", snapshot)
	} else {
		reg.sender.Send(connID, "error", map[string]string{"message": res.Reason})
	}
}

// FindRoomByUser reports the room a display name currently occupies, for
// the active-game lookup endpoint.
func (reg *Registry) FindRoomByUser(username string) (roomID, variant string, found bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, room := range reg.rooms {
		room.mu.Lock()
		for _, p := range room.players {
			if p.Username == username {
				roomID, variant, found = room.id, room.variant, true
				break
			}
		}
		room.mu.Unlock()
		if found {
			return
		}
	}
	return "", "", false
}

func (reg *Registry) destroyRoom(roomID string) {
	reg.mu.Lock()
	room, ok := reg.rooms[roomID]
	if ok {
		delete(reg.rooms, roomID)
	}
	reg.mu.Unlock()
	if !ok {
		return
	}

	if c, ok := room.game.(Closer); ok {
		c.Close()
	}

	logf(reg.cfg, "ROOMS: Destroyed room %s", roomID)
}

func (reg *Registry) findByConn(connID string) (*Room, *Participant) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	for _, room := range reg.rooms {
		room.mu.Lock()
		for _, p := range room.players {
			if p.ConnID == connID {
				room.mu.Unlock()
				return room, p
			}
		}
		room.mu.Unlock()
	}
	return nil, nil
}

// reaperLoop periodically destroys rooms that have been idle longer than
// the configured session timeout.
func (reg *Registry) reaperLoop() {
	ticker := time.NewTicker(reg.cfg.sessionTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-reg.cfg.sessionTimeout)

		reg.mu.Lock()
		stale := make([]string, 0)
		for id, room := range reg.rooms {
			room.mu.Lock()
			last := room.lastActive
			room.mu.Unlock()

			if last.Before(cutoff) {
				stale = append(stale, id)
			}
		}
		reg.mu.Unlock()

		for _, id := range stale {
			reg.destroyRoom(id)
		}
	}
}
