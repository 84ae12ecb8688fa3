package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vovakirdan/wiredraw-server/internal/store"
)

const defaultKeyPrefix = "wiredraw"

// RedisStore implements store.Store on Redis lists and hashes.
// RPUSH keeps every list in insertion order, which is the creation order.
type RedisStore struct {
	client *goredis.Client
	prefix string
	now    func() time.Time
}

// Options configures the Redis connection.
type Options struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, opts Options) (*RedisStore, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewWithClient(client, opts.KeyPrefix), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(client *goredis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) sessionKey(roomID string) string {
	return s.prefix + ":session:" + roomID
}

func (s *RedisStore) strokesKey(roomID string) string {
	return s.prefix + ":strokes:" + roomID
}

func (s *RedisStore) chatKey(roomID string) string {
	return s.prefix + ":chat:" + roomID
}

// CreateOrUpdateSession sets the host and keeps the first creation time.
func (s *RedisStore) CreateOrUpdateSession(ctx context.Context, roomID, hostID string) error {
	key := s.sessionKey(roomID)
	_, err := s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSetNX(ctx, key, "created_at", s.now().UTC().Format(time.RFC3339Nano))
		pipe.HSet(ctx, key, "host_id", hostID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// GetSession reads the session hash.
func (s *RedisStore) GetSession(ctx context.Context, roomID string) (*store.Session, error) {
	fields, err := s.client.HGetAll(ctx, s.sessionKey(roomID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("session %s: %w", roomID, store.ErrNotFound)
	}

	sess := &store.Session{RoomID: roomID, HostID: fields["host_id"]}
	if raw := fields["created_at"]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			sess.CreatedAt = ts
		}
	}
	return sess, nil
}

// AppendStroke pushes the JSON-encoded stroke to the room list.
func (s *RedisStore) AppendStroke(ctx context.Context, roomID string, stroke store.Stroke) error {
	data, err := json.Marshal(stroke)
	if err != nil {
		return fmt.Errorf("marshal stroke: %w", err)
	}
	if err := s.client.RPush(ctx, s.strokesKey(roomID), data).Err(); err != nil {
		return fmt.Errorf("push stroke: %w", err)
	}
	return nil
}

// ListStrokes returns the whole stroke list.
func (s *RedisStore) ListStrokes(ctx context.Context, roomID string) ([]store.Stroke, error) {
	raw, err := s.client.LRange(ctx, s.strokesKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read strokes: %w", err)
	}

	strokes := make([]store.Stroke, 0, len(raw))
	for _, item := range raw {
		var stroke store.Stroke
		if err := json.Unmarshal([]byte(item), &stroke); err != nil {
			return nil, fmt.Errorf("decode stroke: %w", err)
		}
		strokes = append(strokes, stroke)
	}
	return strokes, nil
}

// DeleteStrokes drops the stroke list. Deleting a missing key is not an error.
func (s *RedisStore) DeleteStrokes(ctx context.Context, roomID string) error {
	if err := s.client.Del(ctx, s.strokesKey(roomID)).Err(); err != nil {
		return fmt.Errorf("delete strokes: %w", err)
	}
	return nil
}

// AppendChatMessage pushes the chat line and returns its timestamp.
func (s *RedisStore) AppendChatMessage(ctx context.Context, roomID string, msg store.ChatMessage) (time.Time, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	data, err := json.Marshal(msg)
	if err != nil {
		return time.Time{}, fmt.Errorf("marshal chat message: %w", err)
	}
	if err := s.client.RPush(ctx, s.chatKey(roomID), data).Err(); err != nil {
		return time.Time{}, fmt.Errorf("push chat message: %w", err)
	}
	return msg.CreatedAt, nil
}

// ListChatMessages returns the whole chat list.
func (s *RedisStore) ListChatMessages(ctx context.Context, roomID string) ([]store.ChatMessage, error) {
	raw, err := s.client.LRange(ctx, s.chatKey(roomID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read chat messages: %w", err)
	}

	messages := make([]store.ChatMessage, 0, len(raw))
	for _, item := range raw {
		var msg store.ChatMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			return nil, fmt.Errorf("decode chat message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
