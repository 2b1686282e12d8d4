/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"sync"
	"time"
)

func testConfig() *Config {
	return &Config{
		port:           8080,
		gracePeriod:    time.Hour,
		contentTimeout: time.Second,
		turnSeconds:    5,
		relayRounds:    2,
	}
}

type sentEvent struct {
	ConnID  string // empty for broadcasts
	RoomID  string // empty for private sends
	Event   string
	Payload any
}

// fakeSender records every delivery so tests can assert on fanout and on
// private traffic.
type fakeSender struct {
	mu     sync.Mutex
	events []sentEvent
}

func (s *fakeSender) Broadcast(roomID string, event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sentEvent{RoomID: roomID, Event: event, Payload: payload})
}

func (s *fakeSender) Send(connID string, event string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, sentEvent{ConnID: connID, Event: event, Payload: payload})
}

// lastTo returns the most recent private event of the given type sent to
// a connection, or nil.
func (s *fakeSender) lastTo(connID, event string) *sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.events) - 1; i >= 0; i-- {
		if s.events[i].ConnID == connID && s.events[i].Event == event {
			e := s.events[i]
			return &e
		}
	}
	return nil
}

func (s *fakeSender) broadcasts(event string) []sentEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sentEvent
	for _, e := range s.events {
		if e.RoomID != "" && e.Event == event {
			out = append(out, e)
		}
	}
	return out
}

type fakeBinder struct {
	mu    sync.Mutex
	rooms map[string]string
}

func newFakeBinder() *fakeBinder {
	return &fakeBinder{rooms: make(map[string]string)}
}

func (b *fakeBinder) setRoom(connID, roomID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.rooms[connID] = roomID
}

// fakeGenerator serves canned rounds, or fails when err is set.
type fakeGenerator struct {
	words       []WordRound
	questions   []QuestionRound
	definitions []DefinitionRound
	err         error
}

func (g *fakeGenerator) WordRounds(_ context.Context, count int, _ string) ([]WordRound, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.words != nil {
		return g.words, nil
	}
	return fallbackWordRounds(count), nil
}

func (g *fakeGenerator) QuestionRounds(_ context.Context, count int, _ string) ([]QuestionRound, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.questions != nil {
		return g.questions, nil
	}
	return fallbackQuestionRounds(count), nil
}

func (g *fakeGenerator) DefinitionRounds(_ context.Context, count int, _ string) ([]DefinitionRound, error) {
	if g.err != nil {
		return nil, g.err
	}
	if g.definitions != nil {
		return g.definitions, nil
	}
	return fallbackDefinitionRounds(count), nil
}
