package evaluator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"genome-engine/internal/shared/model"
)

func TestErrorClassification(t *testing.T) {
	base := errors.New("boom")

	assert.True(t, IsTransient(Transient(base)))
	assert.False(t, IsTransient(Permanent(base)))
	assert.False(t, IsTransient(base)) // 未分类按永久处理

	// errors.As 穿透包装
	wrapped := Transient(Permanent(base))
	assert.True(t, IsTransient(wrapped))
	assert.True(t, errors.Is(Transient(base), base))
	assert.True(t, errors.Is(Permanent(base), base))
}

func TestEvaluateWithRetry_TransientThenSuccess(t *testing.T) {
	mut := &model.Mutation{ID: "mut-1", Description: "flaky"}

	mock := NewMock()
	mock.Script("flaky",
		Outcome{Err: Transient(errors.New("timeout"))},
		Outcome{Err: Transient(errors.New("timeout"))},
		Outcome{Err: Transient(errors.New("timeout"))},
		Outcome{Test: &model.MutationTest{PassRate: 1.0}},
	)

	test, err := EvaluateWithRetry(context.Background(), mock, mut, 3, time.Millisecond)
	require.NoError(t, err)
	require.NotNil(t, test)
	assert.Equal(t, "mut-1", test.MutationID)
	assert.Equal(t, 4, mock.CallCount())
}

func TestEvaluateWithRetry_TransientExhausted(t *testing.T) {
	mut := &model.Mutation{ID: "mut-1", Description: "down"}

	mock := NewMock()
	mock.Script("down",
		Outcome{Err: Transient(errors.New("unreachable"))},
		Outcome{Err: Transient(errors.New("unreachable"))},
		Outcome{Err: Transient(errors.New("unreachable"))},
	)

	_, err := EvaluateWithRetry(context.Background(), mock, mut, 2, time.Millisecond)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 3, mock.CallCount())
}

func TestEvaluateWithRetry_PermanentNotRetried(t *testing.T) {
	mut := &model.Mutation{ID: "mut-1", Description: "bad"}

	mock := NewMock()
	mock.Script("bad", Outcome{Err: Permanent(errors.New("malformed payload"))})

	_, err := EvaluateWithRetry(context.Background(), mock, mut, 5, time.Millisecond)
	require.Error(t, err)
	assert.False(t, IsTransient(err))
	assert.Equal(t, 1, mock.CallCount())
}

func TestEvaluateWithRetry_ContextCancelled(t *testing.T) {
	mut := &model.Mutation{ID: "mut-1", Description: "slow"}

	mock := NewMock()
	mock.Script("slow",
		Outcome{Err: Transient(errors.New("timeout"))},
		Outcome{Err: Transient(errors.New("timeout"))},
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// 第一次调用后进入退避等待，此时 ctx 已取消
	_, err := EvaluateWithRetry(ctx, mock, mut, 3, time.Hour)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, mock.CallCount())
}

func TestMockIdempotence(t *testing.T) {
	// 同一变异评估两次：产出两条独立记录，互不影响
	mut := &model.Mutation{ID: "mut-9"}
	mock := NewMock()

	t1, err := mock.Evaluate(context.Background(), mut)
	require.NoError(t, err)
	t2, err := mock.Evaluate(context.Background(), mut)
	require.NoError(t, err)

	assert.NotSame(t, t1, t2)
	assert.Equal(t, "mut-9", t1.MutationID)
	assert.Equal(t, "mut-9", t2.MutationID)
}
