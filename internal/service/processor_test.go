package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solstudio/ig-agent-go/internal/coordinator"
	"github.com/solstudio/ig-agent-go/internal/model"
	"github.com/solstudio/ig-agent-go/internal/repository"
	"github.com/solstudio/ig-agent-go/internal/transcript"
)

// memStore keeps messages in memory and serializes every transaction,
// matching the atomicity the SQL store provides.
type memStore struct {
	mu       sync.Mutex
	messages []*model.Message
	nextID   int
}

func (s *memStore) InTx(ctx context.Context, fn func(repo repository.MessageRepository) error) error {
	// BeginTxx refuses a context that is already done.
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&memRepo{store: s})
}

func (s *memStore) addPending(conversationKey, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.messages = append(s.messages, &model.Message{
		ID:              fmt.Sprintf("m-%d", s.nextID),
		ConversationKey: conversationKey,
		SenderID:        conversationKey,
		PlatformMID:     fmt.Sprintf("mid-%d", s.nextID),
		Text:            text,
		Status:          model.MessageStatusPending,
		CreatedAt:       time.Now().Add(time.Duration(s.nextID) * time.Millisecond),
	})
}

func (s *memStore) statusCounts() map[model.MessageStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[model.MessageStatus]int)
	for _, m := range s.messages {
		counts[m.Status]++
	}
	return counts
}

type memRepo struct {
	store *memStore
}

func (r *memRepo) LockConversation(ctx context.Context, conversationKey string) error {
	return nil
}

func (r *memRepo) FindRecentByConversationKey(ctx context.Context, conversationKey string, limit int) ([]model.Message, error) {
	var out []model.Message
	for i := len(r.store.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if r.store.messages[i].ConversationKey == conversationKey {
			out = append(out, *r.store.messages[i])
		}
	}
	return out, nil
}

func (r *memRepo) Create(ctx context.Context, params model.CreateMessageParams) (*model.Message, error) {
	return nil, errors.New("not used")
}

func (r *memRepo) CountProcessing(ctx context.Context, conversationKey string) (int, error) {
	n := 0
	for _, m := range r.store.messages {
		if m.ConversationKey == conversationKey && m.Status == model.MessageStatusProcessing {
			n++
		}
	}
	return n, nil
}

func (r *memRepo) ClaimPending(ctx context.Context, conversationKey string) ([]model.Message, error) {
	var claimed []model.Message
	for _, m := range r.store.messages {
		if m.ConversationKey == conversationKey && m.Status == model.MessageStatusPending {
			m.Status = model.MessageStatusProcessing
			claimed = append(claimed, *m)
		}
	}
	return claimed, nil
}

func (r *memRepo) MarkProcessed(ctx context.Context, ids []string) error {
	for _, m := range r.store.messages {
		for _, id := range ids {
			if m.ID == id {
				m.Status = model.MessageStatusProcessed
			}
		}
	}
	return nil
}

func (r *memRepo) MarkPending(ctx context.Context, ids []string, errorMsg string) error {
	for _, m := range r.store.messages {
		for _, id := range ids {
			if m.ID == id {
				m.Status = model.MessageStatusPending
				m.ErrorMessage = &errorMsg
			}
		}
	}
	return nil
}

func (r *memRepo) HasPending(ctx context.Context, conversationKey string) (bool, error) {
	for _, m := range r.store.messages {
		if m.ConversationKey == conversationKey && m.Status == model.MessageStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) ReclaimStuck(ctx context.Context, deadline time.Duration) ([]string, error) {
	return nil, nil
}

func (r *memRepo) DeleteByConversationKey(ctx context.Context, conversationKey string) (int64, error) {
	return 0, nil
}

type memHistory struct {
	store *memStore
}

func (h *memHistory) RecentInbound(ctx context.Context, conversationKey string, limit int) ([]model.Message, error) {
	var out []model.Message
	h.store.mu.Lock()
	defer h.store.mu.Unlock()
	for i := len(h.store.messages) - 1; i >= 0 && len(out) < limit; i-- {
		if h.store.messages[i].ConversationKey == conversationKey {
			out = append(out, *h.store.messages[i])
		}
	}
	return out, nil
}

func (h *memHistory) RecentOutbound(ctx context.Context, conversationKey string, limit int) ([]model.OutboundMessage, error) {
	return nil, nil
}

type recordingInvoker struct {
	mu          sync.Mutex
	err         error
	invocations [][]transcript.Entry
}

func (r *recordingInvoker) Invoke(ctx context.Context, conversationKey string, entries []transcript.Entry) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.invocations = append(r.invocations, entries)
	return []string{"send_message"}, nil
}

type recordingScheduler struct {
	mu        sync.Mutex
	scheduled []string
	err       error
}

func (r *recordingScheduler) Schedule(ctx context.Context, conversationKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.scheduled = append(r.scheduled, conversationKey)
	return nil
}

type processorFixture struct {
	store     *memStore
	invoker   *recordingInvoker
	scheduler *recordingScheduler
	processor *ProcessorService
}

func newProcessorFixture(t *testing.T) *processorFixture {
	t.Helper()
	store := &memStore{}
	invoker := &recordingInvoker{}
	scheduler := &recordingScheduler{}
	processor := NewProcessorService(
		coordinator.New(store),
		&memHistory{store: store},
		invoker,
		scheduler,
	)
	return &processorFixture{store: store, invoker: invoker, scheduler: scheduler, processor: processor}
}

const convKey = "17841400000000000"

func TestProcess(t *testing.T) {
	t.Run("burst of messages processed in one pass", func(t *testing.T) {
		f := newProcessorFixture(t)
		f.store.addPending(convKey, "hi")
		f.store.addPending(convKey, "can I join?")

		require.NoError(t, f.processor.Process(context.Background(), convKey))

		require.Len(t, f.invoker.invocations, 1)
		entries := f.invoker.invocations[0]
		require.Len(t, entries, 2)
		assert.Equal(t, "hi", entries[0].Text)
		assert.Equal(t, "can I join?", entries[1].Text)

		counts := f.store.statusCounts()
		assert.Equal(t, 2, counts[model.MessageStatusProcessed])
		assert.Zero(t, counts[model.MessageStatusPending])
		assert.Empty(t, f.scheduler.scheduled)
	})

	t.Run("denied claim is a silent no-op", func(t *testing.T) {
		f := newProcessorFixture(t)

		require.NoError(t, f.processor.Process(context.Background(), convKey))
		assert.Empty(t, f.invoker.invocations)
	})

	t.Run("near-simultaneous dispatches invoke the model once", func(t *testing.T) {
		f := newProcessorFixture(t)
		f.store.addPending(convKey, "hello")

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				errs[i] = f.processor.Process(context.Background(), convKey)
			}(i)
		}
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		assert.Len(t, f.invoker.invocations, 1)
	})

	t.Run("invoker failure aborts the claim for retry", func(t *testing.T) {
		f := newProcessorFixture(t)
		f.store.addPending(convKey, "hello")
		f.invoker.err = errors.New("model unavailable")

		err := f.processor.Process(context.Background(), convKey)
		require.Error(t, err)

		counts := f.store.statusCounts()
		assert.Equal(t, 1, counts[model.MessageStatusPending])
		assert.Zero(t, counts[model.MessageStatusProcessing])

		f.invoker.err = nil
		require.NoError(t, f.processor.Process(context.Background(), convKey))
		assert.Len(t, f.invoker.invocations, 1)
	})

	t.Run("abort lands even when the job context has expired", func(t *testing.T) {
		f := newProcessorFixture(t)
		f.store.addPending(convKey, "hello")

		processor := NewProcessorService(
			coordinator.New(f.store),
			&memHistory{store: f.store},
			&blockingInvoker{},
			f.scheduler,
		)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := processor.Process(ctx, convKey)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		// The claim must not sit in processing until the reclaimer; the
		// abort runs on its own deadline.
		counts := f.store.statusCounts()
		assert.Equal(t, 1, counts[model.MessageStatusPending])
		assert.Zero(t, counts[model.MessageStatusProcessing])
	})

	t.Run("late arrival re-arms the dispatch", func(t *testing.T) {
		f := newProcessorFixture(t)
		f.store.addPending(convKey, "first")

		slow := &slowInvoker{inner: f.invoker, store: f.store, key: convKey}
		processor := NewProcessorService(
			coordinator.New(f.store),
			&memHistory{store: f.store},
			slow,
			f.scheduler,
		)

		require.NoError(t, processor.Process(context.Background(), convKey))
		assert.Equal(t, []string{convKey}, f.scheduler.scheduled)

		counts := f.store.statusCounts()
		assert.Equal(t, 1, counts[model.MessageStatusProcessed])
		assert.Equal(t, 1, counts[model.MessageStatusPending])
	})

	t.Run("re-arm failure does not fail the pass", func(t *testing.T) {
		f := newProcessorFixture(t)
		f.store.addPending(convKey, "first")
		f.scheduler.err = errors.New("redis down")

		slow := &slowInvoker{inner: f.invoker, store: f.store, key: convKey}
		processor := NewProcessorService(
			coordinator.New(f.store),
			&memHistory{store: f.store},
			slow,
			f.scheduler,
		)

		require.NoError(t, processor.Process(context.Background(), convKey))
	})
}

// blockingInvoker holds the pass until its context dies, like a hung
// model call.
type blockingInvoker struct{}

func (blockingInvoker) Invoke(ctx context.Context, conversationKey string, entries []transcript.Entry) ([]string, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// slowInvoker simulates a message arriving while the model call is in
// flight.
type slowInvoker struct {
	inner *recordingInvoker
	store *memStore
	key   string
	once  sync.Once
}

func (s *slowInvoker) Invoke(ctx context.Context, conversationKey string, entries []transcript.Entry) ([]string, error) {
	s.once.Do(func() {
		s.store.addPending(s.key, "late arrival")
	})
	return s.inner.Invoke(ctx, conversationKey, entries)
}
