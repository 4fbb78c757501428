package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"listmyspace/server/internal/database"
	"listmyspace/server/internal/models"
)

// MaxMessageLength bounds the text of a single frame
const MaxMessageLength = 4000

// Store is the persistence the relay needs
type Store interface {
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	SaveMessage(ctx context.Context, msg *models.Message) error
}

// Notifier queues notifications for users who are not connected
type Notifier interface {
	Notify(n *models.Notification) error
}

// UserID accepts a JSON number or a numeric string
type UserID uint

func (u *UserID) UnmarshalJSON(data []byte) error {
	raw := string(bytes.Trim(data, `"`))
	if raw == "" || raw == "null" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid user id %q", raw)
	}
	*u = UserID(id)
	return nil
}

// Inbound is a frame sent by a client
type Inbound struct {
	To   UserID `json:"to"`
	Text string `json:"text"`
}

// Delivery is pushed to the recipient of a message
type Delivery struct {
	From      uint      `json:"from"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorFrame reports a problem to the sender
type ErrorFrame struct {
	Error string `json:"error"`
}

const (
	errMissingFields   = "Both 'to' and 'text' are required"
	errTooLong         = "Message is too long"
	errUnknownUser     = "Recipient not found"
	errRoles           = "Messages can only be exchanged between an owner and a customer"
	errSaveFailed      = "Failed to save message"
	errNotConnected    = "Recipient is not connected"
	notificationTitle  = "New message"
	notificationDetail = "You have a new message from %s"
)

// Relay forwards chat messages between connected owners and customers
type Relay struct {
	store    Store
	sessions SessionManager
	notifier Notifier
	logger   *logrus.Logger
	now      func() time.Time
}

func NewRelay(store Store, sessions SessionManager, notifier Notifier, logger *logrus.Logger) *Relay {
	if logger == nil {
		logger = logrus.New()
	}
	return &Relay{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *Relay) Sessions() SessionManager {
	return r.sessions
}

// Serve runs the receive loop of user's connection until it closes, fails or ctx ends.
// A malformed frame ends the connection.
func (r *Relay) Serve(ctx context.Context, user *models.User, conn Conn) error {
	log := r.logger.WithField("user_id", user.ID)

	r.sessions.Register(user.ID, conn)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		r.sessions.Unregister(user.ID, conn)
		conn.Close()
		log.Info("Chat connection closed")
	}()
	log.Info("Chat connection opened")

	for {
		data, err := conn.Receive()
		if err != nil {
			if errors.Is(err, ErrClosed) || ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to receive frame: %w", err)
		}

		var frame Inbound
		if err := json.Unmarshal(data, &frame); err != nil {
			log.WithError(err).Warn("Malformed chat frame")
			return fmt.Errorf("malformed frame: %w", err)
		}

		r.handleFrame(ctx, user, conn, frame)
	}
}

func (r *Relay) reply(conn Conn, log *logrus.Entry, message string) {
	if err := conn.Send(ErrorFrame{Error: message}); err != nil {
		log.WithError(err).Warn("Failed to send error frame")
	}
}

// handleFrame validates, persists and forwards one message
func (r *Relay) handleFrame(ctx context.Context, sender *models.User, conn Conn, frame Inbound) {
	log := r.logger.WithFields(logrus.Fields{"user_id": sender.ID, "to": uint(frame.To)})

	text := strings.TrimSpace(frame.Text)
	if frame.To == 0 || text == "" {
		r.reply(conn, log, errMissingFields)
		return
	}
	if len(text) > MaxMessageLength {
		r.reply(conn, log, errTooLong)
		return
	}

	recipient, err := r.store.GetUserByID(ctx, uint(frame.To))
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			r.reply(conn, log, errUnknownUser)
		} else {
			log.WithError(err).Error("Failed to load recipient")
			r.reply(conn, log, err.Error())
		}
		return
	}

	msg, ok := conversationMessage(sender, recipient)
	if !ok {
		r.reply(conn, log, errRoles)
		return
	}
	msg.Content = text
	msg.Timestamp = r.now()

	if err := r.store.SaveMessage(ctx, msg); err != nil {
		log.WithError(err).Error("Failed to save chat message")
		r.reply(conn, log, errSaveFailed)
		return
	}

	if peer, ok := r.sessions.Lookup(recipient.ID); ok {
		err := peer.Send(Delivery{From: sender.ID, Text: text, Timestamp: msg.Timestamp})
		if err == nil {
			return
		}
		log.WithError(err).Warn("Failed to deliver chat message")
	}

	r.reply(conn, log, errNotConnected)
	r.notifyOffline(log, sender, recipient, msg)
}

// conversationMessage fills the participants of a message from sender to recipient.
// It fails unless one side is a customer and the other an owner.
func conversationMessage(sender, recipient *models.User) (*models.Message, bool) {
	switch {
	case sender.Customer != nil && recipient.Owner != nil:
		return &models.Message{
			CustomerID: &sender.Customer.ID,
			OwnerID:    &recipient.Owner.ID,
			SenderType: models.RoleCustomer,
		}, true
	case sender.Owner != nil && recipient.Customer != nil:
		return &models.Message{
			CustomerID: &recipient.Customer.ID,
			OwnerID:    &sender.Owner.ID,
			SenderType: models.RoleOwner,
		}, true
	}
	return nil, false
}

func (r *Relay) notifyOffline(log *logrus.Entry, sender, recipient *models.User, msg *models.Message) {
	if r.notifier == nil {
		return
	}

	data, _ := json.Marshal(map[string]interface{}{
		"message_id": msg.ID,
		"from":       sender.ID,
	})
	err := r.notifier.Notify(&models.Notification{
		UserID:  recipient.ID,
		Type:    models.NotifyNewMessage,
		Title:   notificationTitle,
		Message: fmt.Sprintf(notificationDetail, sender.Username),
		Data:    datatypes.JSON(data),
	})
	if err != nil {
		log.WithError(err).Warn("Failed to queue message notification")
	}
}
