package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"github.com/ljpprojects/kolloquy/api"
	"github.com/ljpprojects/kolloquy/auth"
	"github.com/ljpprojects/kolloquy/contract"
	"github.com/ljpprojects/kolloquy/domain"
	"github.com/ljpprojects/kolloquy/internal"
	"github.com/ljpprojects/kolloquy/repositories"
	"github.com/ljpprojects/kolloquy/runtime"
	"github.com/ljpprojects/kolloquy/services"
	"github.com/ljpprojects/kolloquy/storage"
	"github.com/ljpprojects/kolloquy/ws"
)

const clientDigest = "qX9h2kD8mP4vL7eRtYcB1nJ6wZ5sA3gF0oUiVxMdKbE="

// ChatScenarioSuite runs the whole stack in-process on the Badger
// backend: account creation, chat creation, snapshot round-trip and a
// live two-connection exchange.
type ChatScenarioSuite struct {
	suite.Suite

	db      *badger.DB
	server  *httptest.Server
	chats   services.IChatService
	users   repositories.IUserRepository
	hub     *runtime.Hub
	cookies map[string]*http.Cookie // handle -> session cookie
	ids     map[string]string       // handle -> user id
}

func TestChatScenarioSuite(t *testing.T) {
	suite.Run(t, new(ChatScenarioSuite))
}

func (s *ChatScenarioSuite) SetupSuite() {
	log := internal.NewLogger("ERROR")

	db, err := badger.Open(badger.DefaultOptions(s.T().TempDir()).WithLogger(nil))
	s.Require().NoError(err)
	s.db = db

	chatStore := storage.NewBadgerStore(db, "chats")
	avatarStore := storage.NewBadgerStore(db, "avatars")

	s.users = repositories.NewMemoryUserRepository()
	s.chats = services.NewChatService(chatStore, avatarStore, s.users, log)
	sessions := auth.NewSessionStore(log)
	s.hub = runtime.NewHub(64, log)

	live := ws.NewHandler(sessions, s.chats, avatarStore, s.hub, log)
	router := api.NewRouter(api.NewHandler(s.users, s.chats, sessions, avatarStore, log), live)
	s.server = httptest.NewServer(router)

	s.cookies = make(map[string]*http.Cookie)
	s.ids = make(map[string]string)
}

func (s *ChatScenarioSuite) TearDownSuite() {
	s.server.Close()
	_ = s.db.Close()
}

func (s *ChatScenarioSuite) post(path string, payload any, cookies ...*http.Cookie) (*http.Response, contract.Response) {
	data, err := json.Marshal(payload)
	s.Require().NoError(err)

	request, err := http.NewRequest(http.MethodPost, s.server.URL+path, bytes.NewReader(data))
	s.Require().NoError(err)
	request.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		request.AddCookie(c)
	}

	resp, err := http.DefaultClient.Do(request)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var body contract.Response
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

func (s *ChatScenarioSuite) registerUser(email, handle string) {
	resp, body := s.post("/register", auth.RegisterRequest{
		Email:    email,
		Handle:   handle,
		Age:      21,
		Password: clientDigest,
	})
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	s.Require().True(body.Success)
	s.ids[handle] = body.ID

	for _, c := range resp.Cookies() {
		if c.Name == auth.SessionCookieName {
			s.cookies[handle] = c
			return
		}
	}
	s.Require().FailNow("no session cookie")
}

func (s *ChatScenarioSuite) dialSocket(handle, chatID string) *websocket.Conn {
	header := http.Header{}
	header.Set("Cookie", auth.SessionCookieName+"="+s.cookies[handle].Value)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/chatws?chat=" + chatID

	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	s.Require().NoError(err)
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(3 * time.Second)))
	return conn
}

func (s *ChatScenarioSuite) TestFullChatLifecycle() {
	ctx := context.Background()

	// Two accounts
	s.registerUser("alice@kolloquy.com", "@alice")
	s.registerUser("bob@kolloquy.com", "@bob")

	// Alice creates a chat and enrolls Bob
	resp, body := s.post("/chats", map[string]any{
		"name":         "Test Chat",
		"participants": []string{s.ids["@bob"]},
	}, s.cookies["@alice"])
	s.Require().Equal(http.StatusCreated, resp.StatusCode)
	chatID := body.Chat

	// The snapshot survives a durable round-trip
	chat, err := s.chats.Load(ctx, chatID)
	s.Require().NoError(err)
	s.Equal("Test Chat", chat.Name)
	s.Empty(chat.Messages)

	// Membership lives on the user records
	for _, handle := range []string{"@alice", "@bob"} {
		user, err := s.users.GetByID(ctx, s.ids[handle])
		s.Require().NoError(err)
		s.Contains(user.EnrolledChats, chatID)
	}

	// Both connect and Alice sends a message
	alice := s.dialSocket("@alice", chatID)
	defer alice.Close()
	bob := s.dialSocket("@bob", chatID)
	defer bob.Close()

	s.Require().Eventually(func() bool {
		return s.hub.Subscribers(chatID) == 2
	}, time.Second, 5*time.Millisecond)

	content := "hello bob"
	s.Require().NoError(alice.WriteJSON(domain.Envelope{
		Content: &content,
		Action:  domain.ActionPut,
		Chat:    &chatID,
	}))

	for _, conn := range []*websocket.Conn{alice, bob} {
		var env domain.Envelope
		s.Require().NoError(conn.ReadJSON(&env))
		s.Equal("hello bob", *env.Content)
		s.Equal(s.ids["@alice"], env.Author.ID)
		s.Equal("@alice", env.Author.Handle)
		s.Contains(env.Author.Avatar, "<svg")
		s.False(env.Author.IsSelf)
	}

	// The exchange is appended and persisted out-of-band
	chat.AppendMessage(domain.NewMessage(chat.NextMessageID(), s.ids["@alice"], "hello bob", time.Now().UTC()))
	s.Require().NoError(s.chats.Persist(ctx, chat))

	reloaded, err := s.chats.Load(ctx, chatID)
	s.Require().NoError(err)
	s.Require().Len(reloaded.Messages, 1)
	s.Equal("hello bob", reloaded.Messages[0].Current())

	// Last subscriber out tears the room down
	alice.Close()
	bob.Close()
	s.Require().Eventually(func() bool {
		return s.hub.Rooms() == 0
	}, time.Second, 5*time.Millisecond)
}

func (s *ChatScenarioSuite) TestLogoutEndsSession() {
	s.registerUser("carol@kolloquy.com", "@carol")

	resp, body := s.post("/logout", struct{}{}, s.cookies["@carol"])
	s.Require().Equal(http.StatusOK, resp.StatusCode)
	s.Require().True(body.Success)

	// The old cookie no longer opens the socket
	header := http.Header{}
	header.Set("Cookie", auth.SessionCookieName+"="+s.cookies["@carol"].Value)
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/chatws?chat=zz00zzz"
	_, wsResp, err := websocket.DefaultDialer.Dial(url, header)
	s.Require().ErrorIs(err, websocket.ErrBadHandshake)
	s.Require().Equal(http.StatusUnauthorized, wsResp.StatusCode)
}
