package chat

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/consultas/consultas/internal/domain/accounts"
)

type mockRoomRepo struct {
	mu    sync.Mutex
	rooms map[string]*Room
}

func newMockRoomRepo() *mockRoomRepo {
	return &mockRoomRepo{rooms: make(map[string]*Room)}
}

func (m *mockRoomRepo) GetOrCreate(_ context.Context, name string, ownerID, receiverID uuid.UUID) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rooms[name]; ok {
		cp := *r
		return &cp, nil
	}
	r := &Room{ID: uuid.New(), Name: name, OwnerID: ownerID, ReceiverID: receiverID, CreatedAt: time.Now()}
	m.rooms[name] = r
	cp := *r
	return &cp, nil
}

func (m *mockRoomRepo) GetByName(_ context.Context, name string) (*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockRoomRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]*Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Room
	for _, r := range m.rooms {
		if r.OwnerID == userID || r.ReceiverID == userID {
			cp := *r
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockMessageRepo struct {
	mu       sync.Mutex
	items    []*Message
	appends  int
	lists    int
	failNext int
}

func newMockMessageRepo() *mockMessageRepo { return &mockMessageRepo{} }

func (m *mockMessageRepo) Append(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appends++
	if m.failNext > 0 {
		m.failNext--
		return errors.New("connection reset")
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	msg.UpdatedAt = msg.CreatedAt
	cp := *msg
	m.items = append(m.items, &cp)
	return nil
}

func (m *mockMessageRepo) ListByRoom(_ context.Context, roomID uuid.UUID) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if m.failNext > 0 {
		m.failNext--
		return nil, errors.New("connection reset")
	}
	var out []*Message
	for _, msg := range m.items {
		if msg.RoomID == roomID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockMessageRepo) LastMessage(_ context.Context, roomID uuid.UUID) (*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *Message
	for _, msg := range m.items {
		if msg.RoomID == roomID {
			cp := *msg
			last = &cp
		}
	}
	return last, nil
}

type mockIdentity struct {
	byID map[uuid.UUID]*accounts.User
}

func newMockIdentity(users ...*accounts.User) *mockIdentity {
	m := &mockIdentity{byID: make(map[uuid.UUID]*accounts.User)}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *mockIdentity) FindByID(_ context.Context, id uuid.UUID) (*accounts.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	return u, nil
}

func testUser(username string) *accounts.User {
	return &accounts.User{ID: uuid.New(), Username: username, Role: accounts.RoleUser, IsActive: true}
}

type fixture struct {
	rooms    *mockRoomRepo
	messages *mockMessageRepo
	identity *mockIdentity
	svc      *Service
	ana      *accounts.User
	bruno    *accounts.User
}

func newFixture() *fixture {
	f := &fixture{
		rooms:    newMockRoomRepo(),
		messages: newMockMessageRepo(),
		ana:      testUser("ana"),
		bruno:    testUser("bruno"),
	}
	f.identity = newMockIdentity(f.ana, f.bruno)
	f.svc = NewService(f.rooms, f.messages, f.identity, nil, zerolog.Nop())
	return f
}

func TestCreateMessage(t *testing.T) {
	f := newFixture()

	wire, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", "")
	if err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if wire.User != "ana" {
		t.Errorf("wire user = %q, want sender username", wire.User)
	}
	if wire.Type != MessageText {
		t.Errorf("wire type = %q, want default %q", wire.Type, MessageText)
	}
	if wire.Content != "hola" {
		t.Errorf("wire content = %q", wire.Content)
	}

	room, err := f.rooms.GetByName(context.Background(), "ana-bruno")
	if err != nil {
		t.Fatalf("room was not created: %v", err)
	}
	if wire.Room != room.ID {
		t.Errorf("wire room = %s, want room id %s", wire.Room, room.ID)
	}
	if room.OwnerID != f.ana.ID || room.ReceiverID != f.bruno.ID {
		t.Error("room owner/receiver not taken from sender/receiver")
	}
}

func TestCreateMessageEmptyContent(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "", "")
	if !errors.Is(err, ErrEmptyContent) {
		t.Errorf("err = %v, want ErrEmptyContent", err)
	}
	if f.messages.appends != 0 {
		t.Error("empty content must not reach the store")
	}
}

func TestCreateMessageUnknownReceiver(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-nobody", uuid.New(), "hola", "")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if len(f.rooms.rooms) != 0 {
		t.Error("room must not be created for an unknown receiver")
	}
}

func TestCreateMessageUnknownType(t *testing.T) {
	f := newFixture()

	_, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", "hologram")
	if err == nil {
		t.Error("expected error for unknown message type")
	}
}

func TestRoomReusedAcrossMessages(t *testing.T) {
	f := newFixture()

	w1, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", "")
	if err != nil {
		t.Fatal(err)
	}
	// The reply lands on the same room; the stored owner/receiver stay as
	// the first creator set them.
	w2, err := f.svc.CreateMessage(context.Background(), f.bruno, "ana-bruno", f.ana.ID, "hola ana", "")
	if err != nil {
		t.Fatal(err)
	}
	if w1.Room != w2.Room {
		t.Errorf("rooms differ: %s vs %s", w1.Room, w2.Room)
	}
	if len(f.rooms.rooms) != 1 {
		t.Errorf("room count = %d, want 1", len(f.rooms.rooms))
	}
	room, _ := f.rooms.GetByName(context.Background(), "ana-bruno")
	if room.OwnerID != f.ana.ID {
		t.Error("existing room must be returned unchanged")
	}
}

func TestConcurrentGetOrCreateSingleRoom(t *testing.T) {
	f := newFixture()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", ""); err != nil {
				t.Errorf("CreateMessage: %v", err)
			}
		}()
	}
	wg.Wait()

	if len(f.rooms.rooms) != 1 {
		t.Errorf("room count = %d, want 1", len(f.rooms.rooms))
	}
}

func TestFetchMessagesOrderStable(t *testing.T) {
	f := newFixture()

	for _, content := range []string{"one", "two", "three"} {
		if _, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, content, ""); err != nil {
			t.Fatal(err)
		}
	}

	first, err := f.svc.FetchMessages(context.Background(), "ana-bruno")
	if err != nil {
		t.Fatalf("FetchMessages: %v", err)
	}
	if len(first) != 3 {
		t.Fatalf("message count = %d, want 3", len(first))
	}
	for i, want := range []string{"one", "two", "three"} {
		if first[i].Content != want {
			t.Errorf("message[%d] = %q, want %q", i, first[i].Content, want)
		}
	}

	second, err := f.svc.FetchMessages(context.Background(), "ana-bruno")
	if err != nil {
		t.Fatal(err)
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("order changed between fetches at index %d", i)
		}
	}
}

func TestFetchMessagesUnknownRoom(t *testing.T) {
	f := newFixture()

	_, err := f.svc.FetchMessages(context.Background(), "ghost")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
	if f.messages.lists != 0 {
		t.Error("unknown room must not be retried")
	}
}

func TestFetchRetriedOnceOnTransientFailure(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", ""); err != nil {
		t.Fatal(err)
	}

	f.messages.failNext = 1
	msgs, err := f.svc.FetchMessages(context.Background(), "ana-bruno")
	if err != nil {
		t.Fatalf("one transient failure should be absorbed: %v", err)
	}
	if len(msgs) != 1 {
		t.Errorf("message count = %d, want 1", len(msgs))
	}
	if f.messages.lists != 2 {
		t.Errorf("list calls = %d, want 2", f.messages.lists)
	}

	f.messages.lists = 0
	f.messages.failNext = 2
	if _, err := f.svc.FetchMessages(context.Background(), "ana-bruno"); err == nil {
		t.Error("two consecutive failures should surface")
	}
	if f.messages.lists != 2 {
		t.Errorf("list calls = %d, want exactly one retry", f.messages.lists)
	}
}

func TestCreateMessageRunsThroughTxRunner(t *testing.T) {
	f := newFixture()
	var calls int
	f.svc = NewService(f.rooms, f.messages, f.identity, func(ctx context.Context, fn func(ctx context.Context) error) error {
		calls++
		return fn(ctx)
	}, zerolog.Nop())

	if _, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", ""); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if calls != 1 {
		t.Errorf("tx runner calls = %d, want 1", calls)
	}

	// Validation failures never reach the transaction.
	if _, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "", ""); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("tx runner calls = %d after rejected input, want 1", calls)
	}
}

func TestCreateMessageNeverRetried(t *testing.T) {
	f := newFixture()

	f.messages.failNext = 1
	_, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", "")
	if err == nil {
		t.Fatal("store failure should surface")
	}
	if f.messages.appends != 1 {
		t.Errorf("append calls = %d, writes must not be retried", f.messages.appends)
	}
}

func TestRoomsForUser(t *testing.T) {
	f := newFixture()
	carla := testUser("carla")
	f.identity.byID[carla.ID] = carla

	if _, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola bruno", ""); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.CreateMessage(context.Background(), carla, "carla-bruno", f.bruno.ID, "hola from carla", ""); err != nil {
		t.Fatal(err)
	}

	previews, err := f.svc.RoomsForUser(context.Background(), f.ana.ID)
	if err != nil {
		t.Fatalf("RoomsForUser: %v", err)
	}
	if len(previews) != 1 {
		t.Fatalf("room count = %d, want 1", len(previews))
	}
	if previews[0].Room.Name != "ana-bruno" {
		t.Errorf("room = %q", previews[0].Room.Name)
	}
	if previews[0].LastMessage == nil || previews[0].LastMessage.Content != "hola bruno" {
		t.Error("last message preview missing or wrong")
	}

	// bruno is receiver in both rooms
	previews, err = f.svc.RoomsForUser(context.Background(), f.bruno.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(previews) != 2 {
		t.Errorf("receiver room count = %d, want 2", len(previews))
	}
}

func TestRoomMessagesAccess(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.CreateMessage(context.Background(), f.ana, "ana-bruno", f.bruno.ID, "hola", ""); err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.RoomMessages(context.Background(), f.ana.ID, accounts.RoleUser, "ana-bruno"); err != nil {
		t.Errorf("owner should read history: %v", err)
	}
	if _, err := f.svc.RoomMessages(context.Background(), f.bruno.ID, accounts.RoleUser, "ana-bruno"); err != nil {
		t.Errorf("receiver should read history: %v", err)
	}
	if _, err := f.svc.RoomMessages(context.Background(), uuid.New(), accounts.RoleAdmin, "ana-bruno"); err != nil {
		t.Errorf("admin should read history: %v", err)
	}
	if _, err := f.svc.RoomMessages(context.Background(), uuid.New(), accounts.RoleUser, "ana-bruno"); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: err = %v, want ErrForbidden", err)
	}
	if _, err := f.svc.RoomMessages(context.Background(), f.ana.ID, accounts.RoleUser, "ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown room: err = %v, want ErrNotFound", err)
	}
}
