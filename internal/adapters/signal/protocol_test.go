package signal

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codesketch/hub/internal/app"
	"github.com/codesketch/hub/internal/app/orch"
	"github.com/codesketch/hub/internal/config"
	"github.com/codesketch/hub/internal/core"
	"github.com/codesketch/hub/internal/domain"
)

const (
	roomA = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"
	roomB = "9b2d7a62-0f2b-4c5e-8f0a-6d2b9c1e4a77"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrConnClosed
	}
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

// messages decodes every received frame into a generic map.
func (f *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, 0, len(f.frames))
	for _, fr := range f.frames {
		var m map[string]any
		require.NoError(t, json.Unmarshal(fr, &m))
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) byType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, m := range f.messages(t) {
		if m["type"] == typ {
			out = append(out, m)
		}
	}
	return out
}

func newTestController(t *testing.T, rates config.Rates) *Controller {
	t.Helper()
	cfg := &config.Config{
		Mode:       "debug",
		ReadLimit:  1 << 20,
		PingPeriod: time.Minute,
		RateWindow: time.Minute,
		Rates:      rates,
	}
	store := core.NewRoomStore(core.StoreConfig{
		MaxRooms:       1000,
		MaxRoomMembers: 50,
		RoomTTL:        time.Hour,
	})
	t.Cleanup(store.Shutdown)

	limiter := NewOpLimiter(cfg.RateWindow, cfg.Rates)
	t.Cleanup(limiter.Stop)

	o := &orch.Orchestrator{Registry: app.NewRegistry(), Rooms: store}
	return NewController(o, limiter, nil, cfg)
}

func defaultRates() config.Rates {
	return config.Rates{Join: 10, CodeChange: 1000, LanguageChange: 20, InputChange: 1000, ExecuteCode: 10}
}

func connect(ctl *Controller, sid core.SessionID, identity *domain.Identity) *fakeConn {
	f := &fakeConn{}
	ctl.Orch.Registry.Bind(sid, f, identity, func() {})
	return f
}

func dispatch(ctl *Controller, sid core.SessionID, conn *fakeConn, format string, args ...any) {
	ctl.handleSignal(sid, "client-"+string(sid), conn, []byte(fmt.Sprintf(format, args...)))
}

func join(ctl *Controller, sid core.SessionID, conn *fakeConn, roomID, username string) {
	dispatch(ctl, sid, conn, `{"type":"join","roomId":%q,"username":%q}`, roomID, username)
}

func TestJoinCreatesRoomAndSyncs(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	a := connect(ctl, "sid-a", &domain.Identity{ID: "u-a", Email: "a@example.com"})

	join(ctl, "sid-a", a, roomA, "alice")

	require.True(t, ctl.Orch.Rooms.RoomExists(roomA))

	joined := a.byType(t, "userJoined")
	require.Len(t, joined, 1)
	assert.Equal(t, "alice", joined[0]["username"])
	assert.Equal(t, "sid-a", joined[0]["socketId"])
	assert.Len(t, joined[0]["clients"], 1)

	syncs := a.byType(t, "syncCode")
	require.Len(t, syncs, 1)
	assert.Equal(t, "", syncs[0]["code"])
	assert.Equal(t, "cpp", syncs[0]["language"])
	assert.Equal(t, false, syncs[0]["isError"])
}

func TestJoinValidation(t *testing.T) {
	ctl := newTestController(t, defaultRates())

	cases := []struct {
		name    string
		payload string
	}{
		{"bad room id", `{"type":"join","roomId":"not-a-uuid","username":"alice"}`},
		{"username too short", fmt.Sprintf(`{"type":"join","roomId":%q,"username":"a"}`, roomA)},
		{"username too long", fmt.Sprintf(`{"type":"join","roomId":%q,"username":%q}`, roomA, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")},
		{"username bad charset", fmt.Sprintf(`{"type":"join","roomId":%q,"username":"al<ice>"}`, roomA)},
		{"missing username", fmt.Sprintf(`{"type":"join","roomId":%q}`, roomA)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			conn := connect(ctl, core.SessionID("sid-"+tc.name), nil)
			ctl.handleSignal(core.SessionID("sid-"+tc.name), "client-"+tc.name, conn, []byte(tc.payload))

			errs := conn.byType(t, "error")
			require.Len(t, errs, 1)
			assert.Equal(t, "join", errs[0]["event"])
			assert.Empty(t, conn.byType(t, "syncCode"))
		})
	}
	assert.False(t, ctl.Orch.Rooms.RoomExists(roomA), "rejected joins must not create rooms")
}

func TestLateJoinerReceivesDocument(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	a := connect(ctl, "sid-a", nil)
	join(ctl, "sid-a", a, roomA, "alice")

	dispatch(ctl, "sid-a", a, `{"type":"codeChange","roomId":%q,"code":"x=1"}`, roomA)
	dispatch(ctl, "sid-a", a, `{"type":"languageChange","roomId":%q,"language":"python"}`, roomA)

	b := connect(ctl, "sid-b", nil)
	join(ctl, "sid-b", b, roomA, "bob")

	syncs := b.byType(t, "syncCode")
	require.Len(t, syncs, 1)
	assert.Equal(t, "x=1", syncs[0]["code"])
	assert.Equal(t, "python", syncs[0]["language"])

	// The sync is unicast: A saw exactly its own join sync.
	assert.Len(t, a.byType(t, "syncCode"), 1)

	// Both observed the arrival with a two-member roster.
	joinedA := a.byType(t, "userJoined")
	require.Len(t, joinedA, 2)
	assert.Len(t, joinedA[1]["clients"], 2)
	require.Len(t, b.byType(t, "userJoined"), 1)
}

func TestCodeChangeExcludesSender(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	a := connect(ctl, "sid-a", nil)
	b := connect(ctl, "sid-b", nil)
	join(ctl, "sid-a", a, roomA, "alice")
	join(ctl, "sid-b", b, roomA, "bob")

	dispatch(ctl, "sid-a", a, `{"type":"codeChange","roomId":%q,"code":"print(1)"}`, roomA)

	changed := b.byType(t, "codeChanged")
	require.Len(t, changed, 1)
	assert.Equal(t, "print(1)", changed[0]["code"])
	assert.Empty(t, a.byType(t, "codeChanged"), "sender must not see its own change echoed")

	room, err := ctl.Orch.Rooms.GetOrCreateRoom(roomA, nil)
	require.NoError(t, err)
	assert.Equal(t, "print(1)", room.Code)
}

func TestMutationsRequireRoom(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	c := connect(ctl, "sid-c", nil)

	for _, payload := range []string{
		fmt.Sprintf(`{"type":"codeChange","roomId":%q,"code":"x"}`, roomA),
		fmt.Sprintf(`{"type":"languageChange","roomId":%q,"language":"java"}`, roomA),
		fmt.Sprintf(`{"type":"inputChange","roomId":%q,"stdin":"x"}`, roomA),
	} {
		ctl.handleSignal("sid-c", "client-c", c, []byte(payload))
	}

	errs := c.byType(t, "error")
	require.Len(t, errs, 3)
	for _, e := range errs {
		assert.Contains(t, e["message"], "not in a room")
	}
}

func TestJoinWhileJoinedLeavesFirst(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	a := connect(ctl, "sid-a", nil)
	b := connect(ctl, "sid-b", nil)
	join(ctl, "sid-a", a, roomA, "alice")
	join(ctl, "sid-b", b, roomA, "bob")

	join(ctl, "sid-a", a, roomB, "alice")

	left := b.byType(t, "userLeft")
	require.Len(t, left, 1)
	assert.Equal(t, "alice", left[0]["username"])
	assert.Equal(t, "sid-a", left[0]["socketId"])

	gotRoom, ok := ctl.Orch.RoomOf("sid-a")
	require.True(t, ok)
	assert.Equal(t, domain.RoomID(roomB), gotRoom)

	assert.True(t, ctl.Orch.Rooms.RoomExists(roomA))
	assert.Len(t, ctl.Orch.Rooms.Members(roomA), 1)
	assert.Len(t, ctl.Orch.Rooms.Members(roomB), 1)
}

func TestLanguageChangeRateLimited(t *testing.T) {
	rates := defaultRates()
	rates.LanguageChange = 2
	ctl := newTestController(t, rates)
	a := connect(ctl, "sid-a", nil)
	join(ctl, "sid-a", a, roomA, "alice")

	dispatch(ctl, "sid-a", a, `{"type":"languageChange","roomId":%q,"language":"java"}`, roomA)
	dispatch(ctl, "sid-a", a, `{"type":"languageChange","roomId":%q,"language":"c"}`, roomA)
	dispatch(ctl, "sid-a", a, `{"type":"languageChange","roomId":%q,"language":"python"}`, roomA)

	errs := a.byType(t, "error")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0]["message"], "rate limit")

	room, err := ctl.Orch.Rooms.GetOrCreateRoom(roomA, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.LangC, room.Language, "throttled operation must not mutate state")
}

func TestExecuteCodeBroadcastsToAll(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	a := connect(ctl, "sid-a", nil)
	b := connect(ctl, "sid-b", nil)
	join(ctl, "sid-a", a, roomA, "alice")
	join(ctl, "sid-b", b, roomA, "bob")

	dispatch(ctl, "sid-a", a, `{"type":"executeCode","roomId":%q,"code":"print(1)","language":"python"}`, roomA)

	for _, conn := range []*fakeConn{a, b} {
		started := conn.byType(t, "executionStarted")
		require.Len(t, started, 1)
		assert.Equal(t, "alice", started[0]["username"])
	}

	room, err := ctl.Orch.Rooms.GetOrCreateRoom(roomA, nil)
	require.NoError(t, err)
	assert.Empty(t, room.Output, "executeCode itself must not mutate document state")
}

func TestExecutionResultPersistsAndBroadcasts(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	a := connect(ctl, "sid-a", nil)
	b := connect(ctl, "sid-b", nil)
	join(ctl, "sid-a", a, roomA, "alice")
	join(ctl, "sid-b", b, roomA, "bob")

	dispatch(ctl, "sid-b", b, `{"type":"executionResult","roomId":%q,"output":"1\n","isError":false}`, roomA)

	for _, conn := range []*fakeConn{a, b} {
		results := conn.byType(t, "executionResult")
		require.Len(t, results, 1)
		assert.Equal(t, "1\n", results[0]["output"])
		assert.Equal(t, false, results[0]["isError"])
		assert.Equal(t, "bob", results[0]["username"])
	}

	room, err := ctl.Orch.Rooms.GetOrCreateRoom(roomA, nil)
	require.NoError(t, err)
	assert.Equal(t, "1\n", room.Output)
}

func TestExecutionResultRequiresOutputField(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	a := connect(ctl, "sid-a", nil)
	join(ctl, "sid-a", a, roomA, "alice")

	dispatch(ctl, "sid-a", a, `{"type":"executionResult","roomId":%q,"isError":true}`, roomA)

	errs := a.byType(t, "error")
	require.Len(t, errs, 1)
	assert.Equal(t, "executionResult", errs[0]["event"])
}

func TestUnknownOpIsIgnored(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	a := connect(ctl, "sid-a", nil)

	dispatch(ctl, "sid-a", a, `{"type":"mystery"}`)

	assert.Empty(t, a.messages(t))
}

func TestPing(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	a := connect(ctl, "sid-a", nil)

	dispatch(ctl, "sid-a", a, `{"type":"ping"}`)

	require.Len(t, a.byType(t, "pong"), 1)
}

func TestEndToEndScenario(t *testing.T) {
	ctl := newTestController(t, defaultRates())

	// A joins a new room.
	a := connect(ctl, "sid-a", nil)
	join(ctl, "sid-a", a, roomA, "alice")
	require.True(t, ctl.Orch.Rooms.RoomExists(roomA))
	syncs := a.byType(t, "syncCode")
	require.Len(t, syncs, 1)
	assert.Equal(t, "", syncs[0]["code"])
	assert.Equal(t, "cpp", syncs[0]["language"])

	// B joins: both see a two-member arrival, B gets a private sync.
	b := connect(ctl, "sid-b", nil)
	join(ctl, "sid-b", b, roomA, "bob")
	require.Len(t, a.byType(t, "userJoined"), 2)
	require.Len(t, b.byType(t, "userJoined"), 1)
	assert.Len(t, b.byType(t, "userJoined")[0]["clients"], 2)
	require.Len(t, b.byType(t, "syncCode"), 1)

	// A edits: only B observes the change.
	dispatch(ctl, "sid-a", a, `{"type":"codeChange","roomId":%q,"code":"print(1)"}`, roomA)
	require.Len(t, b.byType(t, "codeChanged"), 1)
	assert.Equal(t, "print(1)", b.byType(t, "codeChanged")[0]["code"])
	assert.Empty(t, a.byType(t, "codeChanged"))

	// B disconnects: A is notified, the room survives.
	ctl.handleDisconnect("sid-b")
	left := a.byType(t, "userLeft")
	require.Len(t, left, 1)
	assert.Equal(t, "bob", left[0]["username"])
	assert.True(t, ctl.Orch.Rooms.RoomExists(roomA))
	assert.Len(t, ctl.Orch.Rooms.Members(roomA), 1)

	// A disconnects: the room is deleted.
	ctl.handleDisconnect("sid-a")
	assert.False(t, ctl.Orch.Rooms.RoomExists(roomA))
}

func TestDisconnectNeverJoinedIsSafe(t *testing.T) {
	ctl := newTestController(t, defaultRates())
	connect(ctl, "sid-x", nil)

	ctl.handleDisconnect("sid-x")
	ctl.handleDisconnect("sid-x")
}

func TestRoomFullSurfacedToJoiner(t *testing.T) {
	cfg := &config.Config{Mode: "debug", ReadLimit: 1 << 20, PingPeriod: time.Minute, RateWindow: time.Minute, Rates: defaultRates()}
	store := core.NewRoomStore(core.StoreConfig{MaxRooms: 1000, MaxRoomMembers: 1, RoomTTL: time.Hour})
	t.Cleanup(store.Shutdown)
	limiter := NewOpLimiter(cfg.RateWindow, cfg.Rates)
	t.Cleanup(limiter.Stop)
	ctl := NewController(&orch.Orchestrator{Registry: app.NewRegistry(), Rooms: store}, limiter, nil, cfg)

	a := connect(ctl, "sid-a", nil)
	b := connect(ctl, "sid-b", nil)
	join(ctl, "sid-a", a, roomA, "alice")
	join(ctl, "sid-b", b, roomA, "bob")

	errs := b.byType(t, "error")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0]["message"], "full")
	assert.Len(t, store.Members(roomA), 1)

	_, ok := ctl.Orch.RoomOf("sid-b")
	assert.False(t, ok, "failed join must not bind the connection to the room")
}

func TestFailedJoinStillNotifiesOldRoom(t *testing.T) {
	cfg := &config.Config{Mode: "debug", ReadLimit: 1 << 20, PingPeriod: time.Minute, RateWindow: time.Minute, Rates: defaultRates()}
	store := core.NewRoomStore(core.StoreConfig{MaxRooms: 1000, MaxRoomMembers: 2, RoomTTL: time.Hour})
	t.Cleanup(store.Shutdown)
	limiter := NewOpLimiter(cfg.RateWindow, cfg.Rates)
	t.Cleanup(limiter.Stop)
	ctl := NewController(&orch.Orchestrator{Registry: app.NewRegistry(), Rooms: store}, limiter, nil, cfg)

	a := connect(ctl, "sid-a", nil)
	b := connect(ctl, "sid-b", nil)
	join(ctl, "sid-a", a, roomA, "alice")
	join(ctl, "sid-b", b, roomA, "bob")

	// Fill roomB so alice's switch is rejected after she has already
	// left roomA.
	c := connect(ctl, "sid-c", nil)
	d := connect(ctl, "sid-d", nil)
	join(ctl, "sid-c", c, roomB, "carol")
	join(ctl, "sid-d", d, roomB, "dave")

	join(ctl, "sid-a", a, roomB, "alice")

	errs := a.byType(t, "error")
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0]["message"], "full")

	// The leave really happened, so bob must hear about it.
	left := b.byType(t, "userLeft")
	require.Len(t, left, 1)
	assert.Equal(t, "alice", left[0]["username"])
	assert.Equal(t, "sid-a", left[0]["socketId"])
	assert.Len(t, store.Members(roomA), 1)

	_, ok := ctl.Orch.RoomOf("sid-a")
	assert.False(t, ok)
}

func TestHardenedModeSanitizesErrors(t *testing.T) {
	cfg := &config.Config{Mode: "release", ReadLimit: 1 << 20, PingPeriod: time.Minute, RateWindow: time.Minute, Rates: defaultRates()}
	store := core.NewRoomStore(core.StoreConfig{MaxRooms: 1000, MaxRoomMembers: 50, RoomTTL: time.Hour})
	t.Cleanup(store.Shutdown)
	limiter := NewOpLimiter(cfg.RateWindow, cfg.Rates)
	t.Cleanup(limiter.Stop)
	ctl := NewController(&orch.Orchestrator{Registry: app.NewRegistry(), Rooms: store}, limiter, nil, cfg)

	a := connect(ctl, "sid-a", nil)
	ctl.handleSignal("sid-a", "client-a", a, []byte(`{"type":"join","roomId":"nope","username":"alice"}`))

	errs := a.byType(t, "error")
	require.Len(t, errs, 1)
	assert.Equal(t, "Invalid request. Please check your input and try again.", errs[0]["message"])
}
