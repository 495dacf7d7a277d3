package skills

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/agentcore/event"
	"github.com/BaSui01/agentcore/testutil"
	"github.com/BaSui01/agentcore/types"
)

type countingMetrics struct{ n atomic.Int32 }

func (m *countingMetrics) RecordSkillGenerated() { m.n.Add(1) }

func completed(caseID string, outcome types.Outcome) event.CompletedEvent {
	return event.CompletedEvent{
		ExecutedEvent: event.ExecutedEvent{
			InvocationID: "inv-" + caseID,
			CaseID:       caseID,
			TaskName:     "price_trend",
			Outcome:      outcome,
			Duration:     120 * time.Millisecond,
			RetryCount:   2,
		},
		AgentRole: "analyst",
	}
}

func newTestGenerator(store Store) (*Generator, *countingMetrics) {
	m := &countingMetrics{}
	clk := testutil.NewManualClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	return NewGenerator(store, clk, m, zap.NewNop()), m
}

func TestGenerator_CreatesSkillOnFirstSuccess(t *testing.T) {
	store := NewMemoryStore()
	gen, m := newTestGenerator(store)
	ctx := context.Background()

	created, err := gen.Generate(ctx, completed("Case 42", types.OutcomeSuccess))
	require.NoError(t, err)
	assert.True(t, created)

	id := types.SkillID("Case 42")
	skill, err := store.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "price_trend for case Case 42", skill.Metadata.Title)
	assert.Equal(t, References{CaseID: "Case 42", AgentRole: "analyst", TaskName: "price_trend"}, skill.Metadata.References)
	assert.Contains(t, skill.Metadata.Summary, "after 2 retries")
	assert.Contains(t, skill.Artifact, "- task: `price_trend`")
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), skill.Metadata.GeneratedAt)
	assert.Equal(t, int32(1), m.n.Load())
	assert.True(t, gen.Known(id))
}

func TestGenerator_Idempotent(t *testing.T) {
	store := NewMemoryStore()
	gen, m := newTestGenerator(store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := gen.Generate(ctx, completed("c1", types.OutcomeSuccess))
		require.NoError(t, err)
	}

	ids, _ := store.List(ctx)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, gen.Generated())
	assert.Equal(t, int32(1), m.n.Load())
}

func TestGenerator_FailureCreatesNothing(t *testing.T) {
	store := NewMemoryStore()
	gen, _ := newTestGenerator(store)

	created, err := gen.Generate(context.Background(), completed("c1", types.OutcomeFailure))
	require.NoError(t, err)
	assert.False(t, created)

	ids, _ := store.List(context.Background())
	assert.Empty(t, ids)
}

func TestGenerator_RespectsExistingStoreEntries(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	pre := sampleSkill(types.SkillID("c1"))
	require.NoError(t, store.Save(ctx, pre))

	gen, m := newTestGenerator(store)
	created, err := gen.Generate(ctx, completed("c1", types.OutcomeSuccess))
	require.NoError(t, err)
	assert.False(t, created, "重启后已持久化的技能不重复生成")
	assert.Equal(t, int32(0), m.n.Load())
}

func TestGenerator_ConcurrentSameCaseCollapsed(t *testing.T) {
	store := NewMemoryStore()
	gen, m := newTestGenerator(store)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := gen.Generate(context.Background(), completed("hot", types.OutcomeSuccess))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), m.n.Load())
	ids, _ := store.List(context.Background())
	assert.Len(t, ids, 1)
}

type failingStore struct {
	*MemoryStore
	err error
}

func (f *failingStore) Save(context.Context, *Skill) error { return f.err }

func TestGenerator_StoreErrorSurfaces(t *testing.T) {
	boom := errors.New("disk full")
	gen, _ := newTestGenerator(&failingStore{MemoryStore: NewMemoryStore(), err: boom})

	_, err := gen.Generate(context.Background(), completed("c1", types.OutcomeSuccess))
	assert.ErrorIs(t, err, boom)
	assert.False(t, gen.Known(types.SkillID("c1")), "失败后允许下次重试")
}

type staleLockStore struct {
	*MemoryStore
	saves int
}

// 第一次保存报告重复但实际未写入
func (s *staleLockStore) Save(ctx context.Context, skill *Skill) error {
	s.saves++
	if s.saves == 1 {
		return ErrSkillExists
	}
	return s.MemoryStore.Save(ctx, skill)
}

func TestGenerator_UnconfirmedDuplicateIsRetried(t *testing.T) {
	store := &staleLockStore{MemoryStore: NewMemoryStore()}
	gen, m := newTestGenerator(store)
	ctx := context.Background()
	id := types.SkillID("case-1")

	created, err := gen.Generate(ctx, completed("case-1", types.OutcomeSuccess))
	require.Error(t, err)
	assert.False(t, created)
	assert.False(t, gen.Known(id))

	created, err = gen.Generate(ctx, completed("case-1", types.OutcomeSuccess))
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int32(1), m.n.Load())
}

func TestGenerator_FileStoreWithIncompleteDirectory(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root, nil)
	require.NoError(t, err)
	id := types.SkillID("case-1")
	require.NoError(t, os.Mkdir(filepath.Join(root, id), 0o755))

	gen, _ := newTestGenerator(store)
	created, err := gen.Generate(context.Background(), completed("case-1", types.OutcomeSuccess))
	require.NoError(t, err)
	assert.True(t, created)

	exists, err := store.Exists(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.True(t, gen.Known(id))
}

func TestGenerator_SubscribesToCompleted(t *testing.T) {
	store := NewMemoryStore()
	gen, _ := newTestGenerator(store)
	bus := event.NewBus(zap.NewNop())
	gen.Subscribe(bus)

	failures := bus.Publish(context.Background(), event.TopicCompleted, completed("c9", types.OutcomeSuccess))
	assert.Equal(t, 0, failures)
	assert.True(t, gen.Known(types.SkillID("c9")))

	// 错误的 payload 只会被记录
	assert.Equal(t, 1, bus.Publish(context.Background(), event.TopicCompleted, "garbage"))
}
