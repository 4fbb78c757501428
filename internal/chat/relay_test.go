package chat

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listmyspace/server/internal/database"
	"listmyspace/server/internal/models"
)

type fakeConn struct {
	inbox   chan []byte
	closed  chan struct{}
	once    sync.Once
	mu      sync.Mutex
	sent    []interface{}
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbox: make(chan []byte, 16), closed: make(chan struct{})}
}

func (c *fakeConn) Receive() ([]byte, error) {
	select {
	case data := <-c.inbox:
		return data, nil
	case <-c.closed:
		return nil, ErrClosed
	}
}

func (c *fakeConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) frames() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]interface{}, len(c.sent))
	copy(out, c.sent)
	return out
}

type recordingNotifier struct {
	mu    sync.Mutex
	items []*models.Notification
}

func (n *recordingNotifier) Notify(item *models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.items = append(n.items, item)
	return nil
}

type chatFixture struct {
	db       *database.Database
	relay    *Relay
	registry *Registry
	notifier *recordingNotifier
	owner    *models.User
	customer *models.User
	other    *models.User
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()
	db, err := database.NewTestDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	owner, err := db.CreateAccount(ctx, database.NewAccount{Username: "olga", Role: models.RoleOwner, Email: "olga@example.com"})
	require.NoError(t, err)
	customer, err := db.CreateAccount(ctx, database.NewAccount{Username: "carl", Role: models.RoleCustomer, Email: "carl@example.com"})
	require.NoError(t, err)
	other, err := db.CreateAccount(ctx, database.NewAccount{Username: "cora", Role: models.RoleCustomer, Email: "cora@example.com"})
	require.NoError(t, err)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	registry := NewRegistry()
	notifier := &recordingNotifier{}
	return &chatFixture{
		db:       db,
		relay:    NewRelay(db, registry, notifier, logger),
		registry: registry,
		notifier: notifier,
		owner:    owner,
		customer: customer,
		other:    other,
	}
}

func (fx *chatFixture) messageCount(t *testing.T) int64 {
	var n int64
	require.NoError(t, fx.db.DB().Model(&models.Message{}).Count(&n).Error)
	return n
}

func TestDeliverToConnectedRecipient(t *testing.T) {
	fx := newChatFixture(t)
	sender, recipient := newFakeConn(), newFakeConn()
	fx.registry.Register(fx.owner.ID, recipient)

	fx.relay.handleFrame(context.Background(), fx.customer, sender, Inbound{To: UserID(fx.owner.ID), Text: " Is the flat still available? "})

	frames := recipient.frames()
	require.Len(t, frames, 1)
	delivery, ok := frames[0].(Delivery)
	require.True(t, ok)
	assert.Equal(t, fx.customer.ID, delivery.From)
	assert.Equal(t, "Is the flat still available?", delivery.Text)
	assert.False(t, delivery.Timestamp.IsZero())

	assert.Empty(t, sender.frames())
	assert.Equal(t, int64(1), fx.messageCount(t))
	assert.Empty(t, fx.notifier.items)

	msgs, err := fx.db.Conversation(context.Background(), fx.customer.Customer.ID, fx.owner.Owner.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleCustomer, msgs[0].SenderType)
}

func TestRecipientNotConnected(t *testing.T) {
	fx := newChatFixture(t)
	sender := newFakeConn()

	fx.relay.handleFrame(context.Background(), fx.owner, sender, Inbound{To: UserID(fx.customer.ID), Text: "Viewing on Monday?"})

	assert.Equal(t, []interface{}{ErrorFrame{Error: errNotConnected}}, sender.frames())
	assert.Equal(t, int64(1), fx.messageCount(t), "undelivered messages are still stored")

	require.Len(t, fx.notifier.items, 1)
	n := fx.notifier.items[0]
	assert.Equal(t, fx.customer.ID, n.UserID)
	assert.Equal(t, models.NotifyNewMessage, n.Type)

	msgs, err := fx.db.Conversation(context.Background(), fx.customer.Customer.ID, fx.owner.Owner.ID, 10)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, models.RoleOwner, msgs[0].SenderType)
}

func TestFailedDeliveryFallsBackToError(t *testing.T) {
	fx := newChatFixture(t)
	sender, recipient := newFakeConn(), newFakeConn()
	recipient.sendErr = errors.New("broken pipe")
	fx.registry.Register(fx.owner.ID, recipient)

	fx.relay.handleFrame(context.Background(), fx.customer, sender, Inbound{To: UserID(fx.owner.ID), Text: "hello"})

	assert.Equal(t, []interface{}{ErrorFrame{Error: errNotConnected}}, sender.frames())
	assert.Len(t, fx.notifier.items, 1)
}

func TestRejectedFramesAreNotStored(t *testing.T) {
	fx := newChatFixture(t)

	tests := []struct {
		name     string
		sender   func() *models.User
		frame    func() Inbound
		expected string
	}{
		{"unknown recipient", func() *models.User { return fx.customer }, func() Inbound { return Inbound{To: 9999, Text: "hi"} }, errUnknownUser},
		{"missing recipient", func() *models.User { return fx.customer }, func() Inbound { return Inbound{Text: "hi"} }, errMissingFields},
		{"blank text", func() *models.User { return fx.customer }, func() Inbound { return Inbound{To: UserID(fx.owner.ID), Text: "   "} }, errMissingFields},
		{"customer to customer", func() *models.User { return fx.customer }, func() Inbound { return Inbound{To: UserID(fx.other.ID), Text: "hi"} }, errRoles},
		{"owner to self", func() *models.User { return fx.owner }, func() Inbound { return Inbound{To: UserID(fx.owner.ID), Text: "hi"} }, errRoles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := newFakeConn()
			fx.relay.handleFrame(context.Background(), tt.sender(), conn, tt.frame())
			assert.Equal(t, []interface{}{ErrorFrame{Error: tt.expected}}, conn.frames())
		})
	}
	assert.Zero(t, fx.messageCount(t))
	assert.Empty(t, fx.notifier.items)
}

func TestServeMalformedFrameEndsConnection(t *testing.T) {
	fx := newChatFixture(t)
	conn := newFakeConn()

	done := make(chan error, 1)
	go func() { done <- fx.relay.Serve(context.Background(), fx.customer, conn) }()

	require.Eventually(t, func() bool { return fx.registry.Count() == 1 }, time.Second, 5*time.Millisecond)
	conn.inbox <- []byte(`{"to": 1, "text": `)

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Zero(t, fx.registry.Count())
	assert.True(t, conn.isClosed())
}

func TestServeRelaysBetweenConnections(t *testing.T) {
	fx := newChatFixture(t)
	ownerConn, customerConn := newFakeConn(), newFakeConn()

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for _, pair := range []struct {
		user *models.User
		conn *fakeConn
	}{{fx.owner, ownerConn}, {fx.customer, customerConn}} {
		wg.Add(1)
		go func(user *models.User, conn *fakeConn) {
			defer wg.Done()
			assert.NoError(t, fx.relay.Serve(ctx, user, conn))
		}(pair.user, pair.conn)
	}
	require.Eventually(t, func() bool { return fx.registry.Count() == 2 }, time.Second, 5*time.Millisecond)

	frame, err := json.Marshal(map[string]interface{}{"to": fx.owner.ID, "text": "hello"})
	require.NoError(t, err)
	customerConn.inbox <- frame

	require.Eventually(t, func() bool { return len(ownerConn.frames()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, customerConn.frames())

	// a string id is accepted too
	ownerConn.inbox <- []byte(`{"to": "` + jsonID(fx.customer.ID) + `", "text": "hi back"}`)
	require.Eventually(t, func() bool { return len(customerConn.frames()) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	wg.Wait()
	assert.Zero(t, fx.registry.Count())
	assert.Equal(t, int64(2), fx.messageCount(t))
}

func jsonID(id uint) string {
	raw, _ := json.Marshal(id)
	return string(raw)
}

func TestRegistryReplaceAndUnregister(t *testing.T) {
	r := NewRegistry()
	first, second := newFakeConn(), newFakeConn()

	r.Register(1, first)
	r.Register(1, second)
	assert.True(t, first.isClosed(), "replaced connection is closed")
	assert.False(t, second.isClosed())

	// the stale connection cannot remove its successor
	r.Unregister(1, first)
	conn, ok := r.Lookup(1)
	require.True(t, ok)
	assert.Same(t, second, conn)

	r.Unregister(1, second)
	_, ok = r.Lookup(1)
	assert.False(t, ok)
	assert.Zero(t, r.Count())
}

func TestUserIDUnmarshal(t *testing.T) {
	var frame Inbound
	require.NoError(t, json.Unmarshal([]byte(`{"to":"12","text":"x"}`), &frame))
	assert.Equal(t, UserID(12), frame.To)

	require.NoError(t, json.Unmarshal([]byte(`{"to":13}`), &frame))
	assert.Equal(t, UserID(13), frame.To)

	assert.Error(t, json.Unmarshal([]byte(`{"to":"abc"}`), &frame))
	assert.Error(t, json.Unmarshal([]byte(`{"to":-1}`), &frame))
}
