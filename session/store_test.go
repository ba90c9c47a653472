package session

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/room4-2/interactive-avatar/llm"
)

func redisHarness(t *testing.T) (*harness, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	cfg := testConfig()
	cfg.RedisURL = mr.Addr()
	h := newHarness(t, cfg, &fakeHandler{})
	require.NotNil(t, h.manager.store)
	return h, mr
}

func TestStore_SessionMirroredOnCreate(t *testing.T) {
	h, mr := redisHarness(t)
	hello := readEvent(t, h.dial(t))
	id := hello.SessionID

	assert.Eventually(t, func() bool {
		return mr.Exists(sessionKey(id))
	}, 3*time.Second, 20*time.Millisecond)

	assert.Equal(t, "active", mr.HGet(sessionKey(id), "status"))
	assert.NotEmpty(t, mr.HGet(sessionKey(id), "remote_addr"))
	_, err := time.Parse(time.RFC3339, mr.HGet(sessionKey(id), "created_at"))
	assert.NoError(t, err)

	member, err := mr.IsMember(activeSessionsKey, id)
	require.NoError(t, err)
	assert.True(t, member)
	assert.Equal(t, time.Minute, mr.TTL(sessionKey(id)))
}

func TestStore_HistoryWrittenAfterRequest(t *testing.T) {
	h, mr := redisHarness(t)
	conn := h.dial(t)
	id := readEvent(t, conn).SessionID

	sendText(t, conn, "Hello")
	readEvent(t, conn)
	readEvent(t, conn)

	var raw string
	assert.Eventually(t, func() bool {
		v, err := mr.Get(historyKey(id))
		raw = v
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	var history []llm.Message
	require.NoError(t, sonic.UnmarshalString(raw, &history))
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "Hello"},
		{Role: llm.RoleAssistant, Content: "reply"},
	}, history)
	assert.Equal(t, time.Minute, mr.TTL(historyKey(id)))
}

func TestStore_KeysRemovedOnDisconnect(t *testing.T) {
	h, mr := redisHarness(t)
	conn := h.dial(t)
	id := readEvent(t, conn).SessionID

	sendText(t, conn, "Hello")
	readEvent(t, conn)
	readEvent(t, conn)
	assert.Eventually(t, func() bool {
		return mr.Exists(historyKey(id))
	}, 3*time.Second, 20*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool {
		member, _ := mr.IsMember(activeSessionsKey, id)
		return !mr.Exists(sessionKey(id)) && !mr.Exists(historyKey(id)) && !member
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStore_UnreachableRedisFallsBackToMemory(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	require.NoError(t, mr.Start())
	addr := mr.Addr()
	mr.Close()

	cfg := testConfig()
	cfg.RedisURL = addr
	m := NewManager(cfg, &fakeHandler{}, zerolog.Nop())
	assert.Nil(t, m.store)
}

func TestStore_NilIsNoop(t *testing.T) {
	var s *redisStore
	assert.NoError(t, s.remove(t.Context(), "session_x"))
	assert.NoError(t, s.close())
}
