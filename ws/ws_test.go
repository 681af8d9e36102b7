package ws

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/ljpprojects/kolloquy/auth"
	"github.com/ljpprojects/kolloquy/contract"
	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/errors"
	"github.com/ljpprojects/kolloquy/repositories"
	"github.com/ljpprojects/kolloquy/runtime"
	"github.com/ljpprojects/kolloquy/services"
	"github.com/ljpprojects/kolloquy/storage"
)

const testAvatar = `<svg xmlns="http://www.w3.org/2000/svg"><circle r="30"/></svg>`

type mapStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{objects: make(map[string][]byte)}
}

func (m *mapStore) Put(_ context.Context, key string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *mapStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, key)
	}
	return data, nil
}

func (m *mapStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type fixture struct {
	server   *httptest.Server
	sessions *auth.SessionStore
	chats    services.IChatService
	hub      *runtime.Hub
	chat     *domain.Chat
	user     domain.User
}

// waitForSubscribers blocks until the room has n attached consumers.
// Dial returns on the handshake, slightly before the server goroutine
// registers its subscription.
func (f *fixture) waitForSubscribers(t *testing.T, roomID string, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return f.hub.Subscribers(roomID) == n
	}, time.Second, 5*time.Millisecond)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	req := require.New(t)
	log := slog.Default()
	ctx := context.Background()

	avatars := newMapStore()
	chatSvc := services.NewChatService(newMapStore(), avatars,
		repositories.NewMemoryUserRepository(), log)
	sessions := auth.NewSessionStore(log)
	hub := runtime.NewHub(16, log)

	user := domain.User{
		UserID:    "us40ers",
		Email:     "tester@kolloquy.com",
		Handle:    "@tester",
		AvatarURL: "us40ers.svg.br",
	}
	compressed, err := storage.Compress([]byte(testAvatar))
	req.NoError(err)
	req.NoError(avatars.Put(ctx, user.AvatarKey(), compressed))

	chat, _ := chatSvc.Create("Test Chat")
	req.NoError(chatSvc.Persist(ctx, chat))

	server := httptest.NewServer(NewHandler(sessions, chatSvc, avatars, hub, log))
	t.Cleanup(server.Close)

	return &fixture{server: server, sessions: sessions, chats: chatSvc, hub: hub, chat: chat, user: user}
}

func (f *fixture) dial(t *testing.T, roomID string) *websocket.Conn {
	t.Helper()
	req := require.New(t)

	sid := f.sessions.Create(f.user)
	header := http.Header{}
	header.Set("Cookie", auth.SessionCookieName+"="+sid)

	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?chat=" + roomID
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	req.NoError(err)
	t.Cleanup(func() { conn.Close() })

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	return conn
}

func send(t *testing.T, conn *websocket.Conn, action, content, chat string) {
	t.Helper()
	env := domain.Envelope{
		Content: &content,
		Action:  action,
		Author:  domain.Author{ID: "spoofed", Handle: "@spoofed", IsSelf: true},
		Chat:    &chat,
	}
	require.NoError(t, conn.WriteJSON(env))
}

func TestHandler_Rejects_Missing_Session(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	resp, err := http.Get(f.server.URL + "?chat=" + f.chat.ID)
	req.NoError(err)
	defer resp.Body.Close()
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_Rejects_Expired_Session(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	sid := f.sessions.Create(f.user)
	f.sessions.Invalidate(sid)

	header := http.Header{}
	header.Set("Cookie", auth.SessionCookieName+"="+sid)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?chat=" + f.chat.ID

	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusUnauthorized, resp.StatusCode)
}

func TestHandler_Rejects_Unknown_Room(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	sid := f.sessions.Create(f.user)
	header := http.Header{}
	header.Set("Cookie", auth.SessionCookieName+"="+sid)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "?chat=zz00zzz"

	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	req.ErrorIs(err, websocket.ErrBadHandshake)
	req.Equal(http.StatusNotFound, resp.StatusCode)
}

func TestSocket_FanOut_Populates_Author(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	sender := f.dial(t, f.chat.ID)
	receiver := f.dial(t, f.chat.ID)
	f.waitForSubscribers(t, f.chat.ID, 2)

	// When a frame with a spoofed author block is sent
	send(t, sender, domain.ActionPut, "hello room", f.chat.ID)

	// Then every participant, the sender included, gets the envelope
	// with the author rebuilt server-side
	for _, conn := range []*websocket.Conn{sender, receiver} {
		var env domain.Envelope
		req.NoError(conn.ReadJSON(&env))

		req.Equal("hello room", *env.Content)
		req.Equal(domain.ActionPut, env.Action)
		req.Equal("us40ers", env.Author.ID)
		req.Equal("@tester", env.Author.Handle)
		req.Equal(testAvatar, env.Author.Avatar)
		req.False(env.Author.IsSelf)
	}
}

func TestSocket_Unknown_Action_Gets_Error_Frame(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	conn := f.dial(t, f.chat.ID)

	send(t, conn, "DESTROY", "hello", f.chat.ID)

	var resp contract.Response
	req.NoError(conn.ReadJSON(&resp))
	req.False(resp.Success)
	req.Equal(contract.CodeUnknownAction, resp.Error.Code)

	// The connection survives the bad frame
	send(t, conn, domain.ActionPut, "still here", f.chat.ID)
	var env domain.Envelope
	req.NoError(conn.ReadJSON(&env))
	req.Equal("still here", *env.Content)
}

func TestSocket_Room_Mismatch_Gets_Error_Frame(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	conn := f.dial(t, f.chat.ID)

	send(t, conn, domain.ActionPut, "hello", "ot99her")

	var resp contract.Response
	req.NoError(conn.ReadJSON(&resp))
	req.False(resp.Success)
	req.Equal(contract.CodeRoomMismatch, resp.Error.Code)
}

func TestSocket_Malformed_Frame_Is_Dropped(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	conn := f.dial(t, f.chat.ID)

	req.NoError(conn.WriteMessage(websocket.TextMessage, []byte("not json at all")))
	send(t, conn, domain.ActionPut, "after the noise", f.chat.ID)

	// Only the valid frame comes back
	var env domain.Envelope
	req.NoError(conn.ReadJSON(&env))
	req.Equal("after the noise", *env.Content)
}

func TestSocket_Separate_Rooms_Are_Isolated(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	// Given a second persisted room with its own subscriber
	other, _ := f.chats.Create("Other Chat")
	req.NoError(f.chats.Persist(context.Background(), other))

	roomA := f.dial(t, f.chat.ID)
	roomB := f.dial(t, other.ID)
	f.waitForSubscribers(t, f.chat.ID, 1)
	f.waitForSubscribers(t, other.ID, 1)

	send(t, roomA, domain.ActionPut, "room a only", f.chat.ID)

	var env domain.Envelope
	req.NoError(roomA.ReadJSON(&env))
	req.Equal("room a only", *env.Content)

	// The other room's subscriber sees nothing
	req.NoError(roomB.SetReadDeadline(time.Now().Add(200 * time.Millisecond)))
	req.Error(roomB.ReadJSON(&env))
}

// A failed write must bring the whole connection down, not just the
// write pump. The read pump sits in ReadMessage with a deadline of
// pongWait, so until the socket closes underneath it the hub keeps a
// subscription for a peer nobody can reach.
func TestConnection_Write_Exit_Stops_Read_Pump(t *testing.T) {
	req := require.New(t)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := runtime.NewHub(4, log)

	sockets := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		socket, err := upgrader.Upgrade(w, r, nil)
		if err == nil {
			sockets <- socket
		}
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	req.NoError(err)
	defer client.Close()
	serverSide := <-sockets

	conn := newConnection(serverSide, hub, "ab12cde", domain.User{UserID: "us40ers", Handle: "@user"}, "", log)
	req.Equal(1, hub.Subscribers("ab12cde"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		conn.run(ctx)
		close(done)
	}()

	// Take the write pump down while the client stays silent, so the
	// read pump has nothing to wake it but the socket closing.
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("read pump still running after write pump exit")
	}
	require.Eventually(t, func() bool { return hub.Rooms() == 0 }, time.Second, 5*time.Millisecond)
}
