package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/KNICEX/legal-aid-agent/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockStore 按脚本返回状态序列的存储
// 序列耗尽后一直返回最后一个状态
type MockStore struct {
	mu        sync.Mutex
	seq       int
	scripts   map[string][]State
	polls     map[string]int
	pollErr   map[string]error
	uploadErr error
}

func NewMockStore() *MockStore {
	return &MockStore{
		scripts: make(map[string][]State),
		polls:   make(map[string]int),
		pollErr: make(map[string]error),
	}
}

func (s *MockStore) Script(id string, states ...State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[id] = states
}

func (s *MockStore) Polls(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.polls[id]
}

func (s *MockStore) TotalPolls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.polls {
		total += n
	}
	return total
}

func (s *MockStore) Upload(ctx context.Context, path, mimeType string) (DocumentHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.uploadErr != nil {
		return DocumentHandle{}, s.uploadErr
	}
	s.seq++
	id := fmt.Sprintf("files/%d", s.seq)
	return DocumentHandle{
		ID:          id,
		DisplayName: filepath.Base(path),
		URI:         "https://store.test/" + id,
		MIMEType:    mimeType,
		State:       StateProcessing,
	}, nil
}

func (s *MockStore) Get(ctx context.Context, id string) (DocumentHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls[id]++
	if err := s.pollErr[id]; err != nil {
		return DocumentHandle{}, err
	}
	script := s.scripts[id]
	if len(script) == 0 {
		return DocumentHandle{ID: id, State: StateProcessing}, nil
	}
	n := s.polls[id]
	if n > len(script) {
		n = len(script)
	}
	return DocumentHandle{ID: id, State: script[n-1]}, nil
}

type MockDocumentRepo struct {
	mock.Mock
}

func (m *MockDocumentRepo) Save(ctx context.Context, doc entity.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepo) UpdateState(ctx context.Context, remoteId string, state string) error {
	args := m.Called(ctx, remoteId, state)
	return args.Error(0)
}

func writeTestFile(t *testing.T, name string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4"), 0o644))
	return path
}

func newTestGateway(t *testing.T, store Store, opts ...Option) Gateway {
	g, err := NewGateway(store, opts...)
	require.NoError(t, err)
	return g
}

func TestNewGateway_RequiresStore(t *testing.T) {
	_, err := NewGateway(nil)
	assert.ErrorIs(t, err, ErrStoreRequired)
}

func TestGateway_UploadUniqueIDs(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(t, store)
	path := writeTestFile(t, "engelliler.pdf")

	seen := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		h, err := g.Upload(context.Background(), path, "application/pdf")
		require.NoError(t, err)
		_, dup := seen[h.ID]
		assert.False(t, dup, "duplicate id %s", h.ID)
		seen[h.ID] = struct{}{}
		assert.Equal(t, "engelliler.pdf", h.DisplayName)
		assert.Equal(t, StateProcessing, h.State)
	}
}

func TestGateway_UploadInfersMIMEType(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(t, store)

	h, err := g.Upload(context.Background(), writeTestFile(t, "khc.pdf"), "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", h.MIMEType)

	_, err = g.Upload(context.Background(), writeTestFile(t, "notes.unknownext"), "")
	var unsupported *UnsupportedMediaError
	assert.ErrorAs(t, err, &unsupported)
}

func TestGateway_UploadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		g := newTestGateway(t, NewMockStore())
		_, err := g.Upload(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"), "application/pdf")
		var transfer *TransferError
		require.ErrorAs(t, err, &transfer)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("store failure is transfer error", func(t *testing.T) {
		store := NewMockStore()
		store.uploadErr = errors.New("connection reset by peer")
		g := newTestGateway(t, store)
		_, err := g.Upload(context.Background(), writeTestFile(t, "a.pdf"), "application/pdf")
		var transfer *TransferError
		assert.ErrorAs(t, err, &transfer)
	})

	t.Run("store rejects media", func(t *testing.T) {
		store := NewMockStore()
		store.uploadErr = &UnsupportedMediaError{Path: "a.exe", MIMEType: "application/x-msdownload"}
		g := newTestGateway(t, store)
		_, err := g.Upload(context.Background(), writeTestFile(t, "a.exe"), "application/x-msdownload")
		var unsupported *UnsupportedMediaError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, "application/x-msdownload", unsupported.MIMEType)
	})

	t.Run("store rejects credentials", func(t *testing.T) {
		store := NewMockStore()
		store.uploadErr = &AuthError{Err: errors.New("API key not valid")}
		g := newTestGateway(t, store)
		_, err := g.Upload(context.Background(), writeTestFile(t, "khc.pdf"), "application/pdf")
		var auth *AuthError
		require.ErrorAs(t, err, &auth)
		var transfer *TransferError
		assert.False(t, errors.As(err, &transfer))
	})
}

func TestGateway_UploadRecordsRegistry(t *testing.T) {
	registry := new(MockDocumentRepo)
	registry.On("Save", mock.Anything, mock.MatchedBy(func(doc entity.Document) bool {
		return doc.RemoteId == "files/1" && doc.State == "PROCESSING" && doc.MIMEType == "application/pdf"
	})).Return(nil).Once()
	registry.On("UpdateState", mock.Anything, "files/1", "ACTIVE").Return(nil).Once()

	store := NewMockStore()
	store.Script("files/1", StateActive)
	g := newTestGateway(t, store, WithRegistry(registry))

	h, err := g.Upload(context.Background(), writeTestFile(t, "khc.pdf"), "application/pdf")
	require.NoError(t, err)
	require.NoError(t, g.AwaitReady(context.Background(), []DocumentHandle{h}, time.Millisecond, time.Second))
	registry.AssertExpectations(t)
}

func TestGateway_PollStateIdempotent(t *testing.T) {
	store := NewMockStore()
	store.Script("files/1", StateActive)
	g := newTestGateway(t, store)
	h := DocumentHandle{ID: "files/1", State: StateProcessing}

	for i := 0; i < 3; i++ {
		state, err := g.PollState(context.Background(), h)
		require.NoError(t, err)
		assert.Equal(t, StateActive, state)
	}
	assert.Equal(t, StateProcessing, h.State)
}

func TestGateway_AwaitReadyEmpty(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(t, store)

	require.NoError(t, g.AwaitReady(context.Background(), nil, time.Millisecond, time.Second))
	assert.Equal(t, 0, store.TotalPolls())
}

func TestGateway_AwaitReadyAlreadyActive(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(t, store)

	handles := []DocumentHandle{{ID: "files/1", State: StateActive}, {ID: "files/2", State: StateActive}}
	require.NoError(t, g.AwaitReady(context.Background(), handles, time.Millisecond, time.Second))
	assert.Equal(t, 0, store.TotalPolls())
}

func TestGateway_AwaitReadyTwoPollCycles(t *testing.T) {
	store := NewMockStore()
	store.Script("files/1", StateProcessing, StateActive)
	g := newTestGateway(t, store)

	handles := []DocumentHandle{{ID: "files/1", State: StateProcessing}}
	require.NoError(t, g.AwaitReady(context.Background(), handles, time.Millisecond, time.Second))
	assert.Equal(t, 2, store.Polls("files/1"))
	assert.Equal(t, StateActive, handles[0].State)
}

func TestGateway_AwaitReadyDeduplicates(t *testing.T) {
	store := NewMockStore()
	store.Script("files/1", StateProcessing, StateActive)
	g := newTestGateway(t, store)

	h := DocumentHandle{ID: "files/1", State: StateProcessing}
	handles := []DocumentHandle{h, h, h}
	require.NoError(t, g.AwaitReady(context.Background(), handles, time.Millisecond, time.Second))
	assert.Equal(t, 2, store.Polls("files/1"))
	for _, got := range handles {
		assert.Equal(t, StateActive, got.State)
	}
}

func TestGateway_AwaitReadyMany(t *testing.T) {
	store := NewMockStore()
	handles := make([]DocumentHandle, 0, 8)
	for i := 1; i <= 8; i++ {
		id := fmt.Sprintf("files/%d", i)
		states := make([]State, 0, i)
		for j := 1; j < i; j++ {
			states = append(states, StateProcessing)
		}
		store.Script(id, append(states, StateActive)...)
		handles = append(handles, DocumentHandle{ID: id, State: StateProcessing})
	}
	g := newTestGateway(t, store)

	require.NoError(t, g.AwaitReady(context.Background(), handles, time.Millisecond, 5*time.Second))
	for i, h := range handles {
		assert.Equal(t, StateActive, h.State)
		assert.Equal(t, i+1, store.Polls(h.ID))
	}
}

func TestGateway_AwaitReadyProcessingError(t *testing.T) {
	store := NewMockStore()
	store.Script("files/1", StateProcessing, StateProcessing, StateActive)
	store.Script("files/2", StateProcessing, StateFailed)
	g := newTestGateway(t, store)

	handles := []DocumentHandle{
		{ID: "files/1", DisplayName: "engelliler.pdf", State: StateProcessing},
		{ID: "files/2", DisplayName: "khc.pdf", State: StateProcessing},
	}
	err := g.AwaitReady(context.Background(), handles, time.Millisecond, time.Second)
	var processing *ProcessingError
	require.ErrorAs(t, err, &processing)
	assert.Equal(t, "files/2", processing.Handle.ID)
	assert.Equal(t, StateFailed, processing.Handle.State)
	assert.Equal(t, StateFailed, handles[1].State)
}

func TestGateway_AwaitReadyAlreadyFailed(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(t, store)

	err := g.AwaitReady(context.Background(), []DocumentHandle{
		{ID: "files/1", State: StateProcessing},
		{ID: "files/2", State: StateFailed},
	}, time.Millisecond, time.Second)
	var processing *ProcessingError
	require.ErrorAs(t, err, &processing)
	assert.Equal(t, "files/2", processing.Handle.ID)
	assert.Equal(t, 0, store.TotalPolls())
}

func TestGateway_AwaitReadyTimeout(t *testing.T) {
	store := NewMockStore()
	store.Script("files/1", StateActive)
	// files/2 永远 PROCESSING
	g := newTestGateway(t, store)

	handles := []DocumentHandle{
		{ID: "files/1", State: StateProcessing},
		{ID: "files/2", State: StateProcessing},
	}
	err := g.AwaitReady(context.Background(), handles, 5*time.Millisecond, 50*time.Millisecond)
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	require.Len(t, timeout.Pending, 1)
	assert.Equal(t, "files/2", timeout.Pending[0].ID)
	assert.Contains(t, timeout.Error(), "files/2")
	assert.Equal(t, StateActive, handles[0].State)
}

func TestGateway_AwaitReadyCancel(t *testing.T) {
	store := NewMockStore()
	g := newTestGateway(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := g.AwaitReady(ctx, []DocumentHandle{{ID: "files/1", State: StateProcessing}}, 5*time.Millisecond, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 10*time.Second)

	// 取消后不再轮询
	polls := store.TotalPolls()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, polls, store.TotalPolls())
}

func TestGateway_AwaitReadyPollError(t *testing.T) {
	store := NewMockStore()
	store.pollErr["files/1"] = errors.New("503 service unavailable")
	g := newTestGateway(t, store)

	err := g.AwaitReady(context.Background(), []DocumentHandle{{ID: "files/1", State: StateProcessing}}, time.Millisecond, time.Second)
	var poll *PollError
	require.ErrorAs(t, err, &poll)
	assert.Equal(t, "files/1", poll.Handle.ID)

	var processing *ProcessingError
	assert.False(t, errors.As(err, &processing))
}

func TestInferMIMEType(t *testing.T) {
	assert.Equal(t, "application/pdf", inferMIMEType("docs/khc.PDF"))
	assert.Equal(t, "text/plain", inferMIMEType("notes.txt"))
	assert.Equal(t, "", inferMIMEType("README"))
}
