package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySaver struct {
	mu    sync.Mutex
	saved []Message
	gate  chan struct{}
}

func (s *memorySaver) Save(ctx context.Context, msg Message) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, msg)
	return nil
}

func (s *memorySaver) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saved)
}

func TestArchiverDrainsOnStop(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	saver := &memorySaver{}
	a := NewArchiver(saver, ArchiverConfig{QueueSize: 16, Workers: 3}, logger)
	a.Start()

	for i := 0; i < 10; i++ {
		a.Submit(Message{ID: string(rune('a' + i)), From: "alice", Room: "sports", Body: "hi"})
	}

	require.NoError(t, a.Stop(context.Background()))
	assert.Equal(t, 10, saver.count())
}

func TestArchiverSubmitAfterStopDrops(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	saver := &memorySaver{}
	a := NewArchiver(saver, ArchiverConfig{}, logger)
	a.Start()
	require.NoError(t, a.Stop(context.Background()))
	require.NoError(t, a.Stop(context.Background()))

	assert.NotPanics(t, func() {
		a.Submit(Message{ID: "late"})
	})
	assert.Equal(t, 0, saver.count())
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, "Archiver stopped; message not persisted", hook.LastEntry().Message)
}

func TestArchiverSubmitNeverBlocks(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	saver := &memorySaver{gate: make(chan struct{})}
	a := NewArchiver(saver, ArchiverConfig{QueueSize: 1, Workers: 1, Timeout: time.Second}, logger)
	a.Start()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			a.Submit(Message{ID: "m"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(saver.gate)
	require.NoError(t, a.Stop(context.Background()))
	assert.LessOrEqual(t, saver.count(), 2)
}

func TestArchiverStopHonoursContext(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	saver := &memorySaver{gate: make(chan struct{})}
	a := NewArchiver(saver, ArchiverConfig{Timeout: time.Minute}, logger)
	a.Start()
	a.Submit(Message{ID: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, a.Stop(ctx), context.DeadlineExceeded)

	close(saver.gate)
}
