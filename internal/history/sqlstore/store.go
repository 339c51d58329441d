// Package sqlstore keeps message history in a SQL database through GORM.
package sqlstore

import (
	"context"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/history"
	"github.com/pkg/errors"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// record is the row layout of the chat_messages table.
type record struct {
	ID       string    `gorm:"primaryKey;size:36"`
	FromUser string    `gorm:"index;not null"`
	ToUser   string    `gorm:"index"`
	Room     string    `gorm:"index"`
	Body     string    `gorm:"not null"`
	SentAt   time.Time `gorm:"index;not null"`
}

func (record) TableName() string {
	return "chat_messages"
}

func (r *record) scan(m chat.Message) {
	r.ID = m.ID
	r.FromUser = m.From
	r.ToUser = m.To
	r.Room = m.Room
	r.Body = m.Body
	r.SentAt = m.SentAt.UTC()
}

func (r *record) model() chat.Message {
	return chat.Message{
		ID:     r.ID,
		From:   r.FromUser,
		To:     r.ToUser,
		Room:   r.Room,
		Body:   r.Body,
		SentAt: r.SentAt.UTC(),
	}
}

// Store is a GORM-backed history store.
type Store struct {
	db      *gorm.DB
	maxPage int
}

// OpenSQLite opens (creating if needed) a SQLite database at path and
// migrates the schema.
func OpenSQLite(path string, maxPage int) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open sqlite database %q", path)
	}
	return New(db, maxPage)
}

// New wraps an open GORM connection and migrates the schema.
func New(db *gorm.DB, maxPage int) (*Store, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, errors.Wrap(err, "failed to migrate chat_messages")
	}
	return &Store{db: db, maxPage: history.PageSize(0, maxPage)}, nil
}

// Save inserts msg. Saving the same message id twice is a no-op.
func (s *Store) Save(ctx context.Context, msg chat.Message) error {
	r := record{}
	r.scan(msg)

	result := s.db.WithContext(ctx).Where(record{ID: r.ID}).FirstOrCreate(&r)
	if result.Error != nil {
		return errors.Wrapf(result.Error, "failed to save message %s", msg.ID)
	}
	return nil
}

// ListByRoom returns the oldest messages of room, up to limit.
func (s *Store) ListByRoom(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	q := s.db.WithContext(ctx).
		Where("room = ? AND (to_user = '' OR to_user IS NULL)", room)
	return s.list(q, limit, "room "+room)
}

// ListByUserPair returns the oldest private messages between two users, in
// either direction, up to limit.
func (s *Store) ListByUserPair(ctx context.Context, user1, user2 string, limit int) ([]chat.Message, error) {
	q := s.db.WithContext(ctx).
		Where("(from_user = ? AND to_user = ?) OR (from_user = ? AND to_user = ?)", user1, user2, user2, user1)
	return s.list(q, limit, "users "+user1+"/"+user2)
}

func (s *Store) list(q *gorm.DB, limit int, what string) ([]chat.Message, error) {
	rows := make([]record, 0)
	err := q.Order("sent_at ASC").
		Order("id ASC").
		Limit(history.PageSize(limit, s.maxPage)).
		Find(&rows).Error
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list messages for %s", what)
	}

	msgs := make([]chat.Message, 0, len(rows))
	for i := range rows {
		msgs = append(msgs, rows[i].model())
	}
	return msgs, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return errors.Wrap(err, "failed to access database handle")
	}
	return sqlDB.Close()
}

var _ history.Store = (*Store)(nil)
