// Package natsstore keeps message history in a NATS JetStream stream.
//
// Room messages are published on <prefix>.room.<room> and private messages
// on <prefix>.dm.<userA>.<userB> with the pair sorted, so both directions of
// a conversation share one subject. Names are base64url-encoded into subject
// tokens since rooms may contain spaces and dots.
package natsstore

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/history"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Config describes the backing stream.
type Config struct {
	Stream        string
	SubjectPrefix string
	MaxAge        time.Duration
	Storage       jetstream.StorageType
	MaxPage       int
	Logger        logrus.FieldLogger
}

func (c *Config) sanitize() {
	if c.Stream == "" {
		c.Stream = "CHAT_HISTORY"
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "chat"
	}
	c.MaxPage = history.PageSize(0, c.MaxPage)
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
}

type record struct {
	ID       string    `json:"id"`
	FromUser string    `json:"from_user"`
	ToUser   string    `json:"to_user,omitempty"`
	Room     string    `json:"room,omitempty"`
	Message  string    `json:"message"`
	DateSent time.Time `json:"date_sent"`
}

// Store is a JetStream-backed history store.
type Store struct {
	nc       *nats.Conn
	js       jetstream.JetStream
	cfg      Config
	ownsConn bool
}

// Connect dials the NATS server at url and prepares the stream. The
// connection is closed by Close.
func Connect(url string, cfg Config) (*Store, error) {
	nc, err := nats.Connect(url, nats.Name("roomchat-history"))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to NATS at %s", url)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := New(ctx, nc, cfg)
	if err != nil {
		nc.Close()
		return nil, err
	}
	s.ownsConn = true
	return s, nil
}

// New prepares the stream on an existing connection, creating it when it
// does not exist yet.
func New(ctx context.Context, nc *nats.Conn, cfg Config) (*Store, error) {
	cfg.sanitize()

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create jetstream context")
	}

	stream, err := js.Stream(ctx, cfg.Stream)
	switch {
	case err == nil:
		cfg.Logger.WithField("stream", stream.CachedInfo().Config.Name).Info("Using existing history stream")
	case errors.Is(err, jetstream.ErrStreamNotFound):
		_, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        cfg.Stream,
			Description: "Chat message history",
			Subjects:    []string{cfg.SubjectPrefix + ".>"},
			MaxAge:      cfg.MaxAge,
			Storage:     cfg.Storage,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create stream %q", cfg.Stream)
		}
		cfg.Logger.WithField("stream", cfg.Stream).Info("Created history stream")
	default:
		return nil, errors.Wrapf(err, "failed to look up stream %q", cfg.Stream)
	}

	return &Store{nc: nc, js: js, cfg: cfg}, nil
}

// Save publishes msg. The message id doubles as the JetStream dedup id.
func (s *Store) Save(ctx context.Context, msg chat.Message) error {
	if s.nc.IsClosed() {
		return history.ErrClosed
	}

	subject := s.subjectFor(msg)
	data, err := json.Marshal(record{
		ID:       msg.ID,
		FromUser: msg.From,
		ToUser:   msg.To,
		Room:     msg.Room,
		Message:  msg.Body,
		DateSent: msg.SentAt.UTC(),
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}

	if _, err := s.js.Publish(ctx, subject, data, jetstream.WithMsgID(msg.ID)); err != nil {
		return errors.Wrapf(err, "failed to publish message to %s", subject)
	}
	return nil
}

// ListByRoom returns the oldest messages of room, up to limit.
func (s *Store) ListByRoom(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	if room == "" {
		return []chat.Message{}, nil
	}
	return s.list(ctx, s.roomSubject(room), limit)
}

// ListByUserPair returns the oldest private messages between two users, up
// to limit.
func (s *Store) ListByUserPair(ctx context.Context, user1, user2 string, limit int) ([]chat.Message, error) {
	if user1 == "" || user2 == "" {
		return []chat.Message{}, nil
	}
	return s.list(ctx, s.pairSubject(user1, user2), limit)
}

// Close closes the connection if the store opened it.
func (s *Store) Close() error {
	if s.ownsConn {
		s.nc.Close()
	}
	return nil
}

func (s *Store) list(ctx context.Context, subject string, limit int) ([]chat.Message, error) {
	if s.nc.IsClosed() {
		return nil, history.ErrClosed
	}

	cons, err := s.js.OrderedConsumer(ctx, s.cfg.Stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subject},
		DeliverPolicy:  jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create consumer for %s", subject)
	}

	batch, err := cons.FetchNoWait(history.PageSize(limit, s.cfg.MaxPage))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch from %s", subject)
	}

	msgs := make([]chat.Message, 0)
	for m := range batch.Messages() {
		var r record
		if err := json.Unmarshal(m.Data(), &r); err != nil {
			s.cfg.Logger.WithField("subject", m.Subject()).WithError(err).Warn("Skipping undecodable history entry")
			continue
		}
		msgs = append(msgs, chat.Message{
			ID:     r.ID,
			From:   r.FromUser,
			To:     r.ToUser,
			Room:   r.Room,
			Body:   r.Message,
			SentAt: r.DateSent,
		})
	}
	if err := batch.Error(); err != nil {
		return nil, errors.Wrapf(err, "failed to read batch from %s", subject)
	}

	slices.SortStableFunc(msgs, func(a, b chat.Message) int {
		return a.SentAt.Compare(b.SentAt)
	})
	return msgs, nil
}

func (s *Store) subjectFor(msg chat.Message) string {
	if msg.Private() {
		return s.pairSubject(msg.From, msg.To)
	}
	return s.roomSubject(msg.Room)
}

func (s *Store) roomSubject(room string) string {
	return fmt.Sprintf("%s.room.%s", s.cfg.SubjectPrefix, token(room))
}

func (s *Store) pairSubject(user1, user2 string) string {
	if user2 < user1 {
		user1, user2 = user2, user1
	}
	return fmt.Sprintf("%s.dm.%s.%s", s.cfg.SubjectPrefix, token(user1), token(user2))
}

func token(name string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(name))
}

var _ history.Store = (*Store)(nil)
