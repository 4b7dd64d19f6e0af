package store

import (
	"context"
	"sync"
	"time"

	"github.com/maxklim/huddle/internal/domain"
)

// ParticipantRecord is the durable trace of one user's stay in a meeting.
type ParticipantRecord struct {
	UserID      domain.UserID
	DisplayName string
	IsHost      bool
	JoinedAt    time.Time
	LeftAt      *time.Time
}

// LocalStore is an in-memory MeetingStore for development and tests.
type LocalStore struct {
	mu           sync.RWMutex
	meetings     map[domain.RoomID]*domain.MeetingInfo
	participants map[domain.RoomID]map[domain.UserID]*ParticipantRecord
}

func NewLocalStore() *LocalStore {
	return &LocalStore{
		meetings:     make(map[domain.RoomID]*domain.MeetingInfo),
		participants: make(map[domain.RoomID]map[domain.UserID]*ParticipantRecord),
	}
}

func (s *LocalStore) CreateMeeting(_ context.Context, roomID domain.RoomID, hostUserID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.meetings[roomID]; ok {
		return ErrMeetingExists
	}
	s.meetings[roomID] = &domain.MeetingInfo{
		RoomID:     roomID,
		HostUserID: hostUserID,
		Status:     domain.StatusScheduled,
	}
	return nil
}

func (s *LocalStore) MeetingExists(_ context.Context, roomID domain.RoomID) (*domain.MeetingInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[roomID]
	if !ok {
		return nil, nil
	}
	cp := *m
	return &cp, nil
}

func (s *LocalStore) RecordParticipantJoin(_ context.Context, roomID domain.RoomID, userID domain.UserID, displayName string, isHost bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	recs, ok := s.participants[roomID]
	if !ok {
		recs = make(map[domain.UserID]*ParticipantRecord)
		s.participants[roomID] = recs
	}
	recs[userID] = &ParticipantRecord{
		UserID:      userID,
		DisplayName: displayName,
		IsHost:      isHost,
		JoinedAt:    time.Now(),
	}
	return nil
}

func (s *LocalStore) RecordParticipantLeave(_ context.Context, roomID domain.RoomID, userID domain.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.participants[roomID][userID]; ok && rec.LeftAt == nil {
		now := time.Now()
		rec.LeftAt = &now
	}
	return nil
}

func (s *LocalStore) SetMeetingStatus(_ context.Context, roomID domain.RoomID, status domain.MeetingStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meetings[roomID]; ok {
		m.Status = status
	}
	return nil
}

// Meeting returns the stored record, for tests and the dev HTTP surface.
func (s *LocalStore) Meeting(roomID domain.RoomID) (*domain.MeetingInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.meetings[roomID]
	if !ok {
		return nil, false
	}
	cp := *m
	return &cp, true
}

// Participant returns the stored record for one user in one meeting.
func (s *LocalStore) Participant(roomID domain.RoomID, userID domain.UserID) (*ParticipantRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.participants[roomID][userID]
	if !ok {
		return nil, false
	}
	cp := *rec
	return &cp, true
}
