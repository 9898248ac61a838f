package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lxlibrary/lx-backend/pkg/config"
	"github.com/lxlibrary/lx-backend/pkg/storage"
	"github.com/redis/go-redis/v9"
)

func TestSessionSlotsRoundTripAndTTL(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	slots := client.SessionSlots("sess-1", 2*time.Hour)

	if _, ok, err := slots.Load(ctx, storage.KeyChatMessages); err != nil || ok {
		t.Fatalf("expected empty slot, got ok=%v err=%v", ok, err)
	}

	if err := slots.Save(ctx, storage.KeyChatMessages, []byte(`[{"id":"1"}]`)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	payload, ok, err := slots.Load(ctx, storage.KeyChatMessages)
	if err != nil || !ok {
		t.Fatalf("load failed ok=%v err=%v", ok, err)
	}
	if string(payload) != `[{"id":"1"}]` {
		t.Fatalf("unexpected payload %s", payload)
	}

	key := "lx:session:sess-1:chat_messages"
	if mock.ttl[key] != 2*time.Hour {
		t.Fatalf("expected ttl refresh on save, got %v", mock.ttl[key])
	}
}

func TestSessionSlotsPropagatesErrors(t *testing.T) {
	mock := newMockCmdable()
	mock.getErr = errors.New("conn reset")
	client := &Client{store: mock}

	if _, _, err := client.SessionSlots("s", time.Minute).Load(context.Background(), "k"); err == nil {
		t.Fatal("expected error to surface")
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error for uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on empty client should be a no-op, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.SessionKey("abc", "chat_messages"); got != "lx:session:abc:chat_messages" {
		t.Fatalf("unexpected session key %s", got)
	}
	if got := client.SessionKey("", "chat_messages"); got != "lx:session:chat_messages" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/3", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 3 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}
}

type mockCmdable struct {
	data   map[string]string
	ttl    map[string]time.Duration
	getErr error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		ttl:  make(map[string]time.Duration),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
