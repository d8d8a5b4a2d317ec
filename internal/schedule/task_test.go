package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type funcTask func(ctx context.Context) error

func (f funcTask) Run(ctx context.Context) error {
	return f(ctx)
}

func (f funcTask) Name() string {
	return "func task"
}

func TestRun(t *testing.T) {
	called := false
	assert.NoError(t, Run(context.Background(), funcTask(func(ctx context.Context) error {
		called = true
		return nil
	})))
	assert.True(t, called)

	boom := errors.New("boom")
	assert.ErrorIs(t, Run(context.Background(), funcTask(func(ctx context.Context) error {
		return boom
	})), boom)
}
