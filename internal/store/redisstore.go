package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maxklim/huddle/internal/domain"
)

const (
	// hash of room id => meeting JSON
	meetingsKey = "huddle:meetings"
	// hash of user id => participant record JSON, one per room
	participantsKeyFmt = "huddle:meeting:%s:participants"
)

type redisMeeting struct {
	RoomID     domain.RoomID        `json:"room_id"`
	HostUserID domain.UserID        `json:"host_user_id"`
	Status     domain.MeetingStatus `json:"status"`
}

type redisParticipant struct {
	UserID      domain.UserID `json:"user_id"`
	DisplayName string        `json:"display_name"`
	IsHost      bool          `json:"is_host"`
	JoinedAt    int64         `json:"joined_at"`
	LeftAt      int64         `json:"left_at,omitempty"`
}

// RedisStore is a MeetingStore backed by redis hashes, one field per meeting
// or participant, JSON values.
type RedisStore struct {
	rc *redis.Client
}

func NewRedisStore(rc *redis.Client) *RedisStore {
	return &RedisStore{rc: rc}
}

func participantsKey(roomID domain.RoomID) string {
	return fmt.Sprintf(participantsKeyFmt, roomID)
}

func (s *RedisStore) CreateMeeting(ctx context.Context, roomID domain.RoomID, hostUserID domain.UserID) error {
	data, err := json.Marshal(redisMeeting{
		RoomID:     roomID,
		HostUserID: hostUserID,
		Status:     domain.StatusScheduled,
	})
	if err != nil {
		return err
	}
	set, err := s.rc.HSetNX(ctx, meetingsKey, string(roomID), data).Result()
	if err != nil {
		return fmt.Errorf("create meeting: %w", err)
	}
	if !set {
		return ErrMeetingExists
	}
	return nil
}

func (s *RedisStore) MeetingExists(ctx context.Context, roomID domain.RoomID) (*domain.MeetingInfo, error) {
	data, err := s.rc.HGet(ctx, meetingsKey, string(roomID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load meeting: %w", err)
	}
	var m redisMeeting
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return nil, err
	}
	return &domain.MeetingInfo{RoomID: m.RoomID, HostUserID: m.HostUserID, Status: m.Status}, nil
}

func (s *RedisStore) RecordParticipantJoin(ctx context.Context, roomID domain.RoomID, userID domain.UserID, displayName string, isHost bool) error {
	data, err := json.Marshal(redisParticipant{
		UserID:      userID,
		DisplayName: displayName,
		IsHost:      isHost,
		JoinedAt:    time.Now().Unix(),
	})
	if err != nil {
		return err
	}
	if err := s.rc.HSet(ctx, participantsKey(roomID), string(userID), data).Err(); err != nil {
		return fmt.Errorf("record join: %w", err)
	}
	return nil
}

func (s *RedisStore) RecordParticipantLeave(ctx context.Context, roomID domain.RoomID, userID domain.UserID) error {
	key := participantsKey(roomID)
	data, err := s.rc.HGet(ctx, key, string(userID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("record leave: %w", err)
	}
	var p redisParticipant
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return err
	}
	p.LeftAt = time.Now().Unix()
	out, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.rc.HSet(ctx, key, string(userID), out).Err(); err != nil {
		return fmt.Errorf("record leave: %w", err)
	}
	return nil
}

func (s *RedisStore) SetMeetingStatus(ctx context.Context, roomID domain.RoomID, status domain.MeetingStatus) error {
	data, err := s.rc.HGet(ctx, meetingsKey, string(roomID)).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	var m redisMeeting
	if err := json.Unmarshal([]byte(data), &m); err != nil {
		return err
	}
	m.Status = status
	out, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := s.rc.HSet(ctx, meetingsKey, string(roomID), out).Err(); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	return nil
}
