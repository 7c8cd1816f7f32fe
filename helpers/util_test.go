package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRandomDelay(t *testing.T) {
	for i := 0; i < 100; i++ {
		d := RandomDelay(10*time.Millisecond, 30*time.Millisecond)
		assert.GreaterOrEqual(t, d, 10*time.Millisecond)
		assert.LessOrEqual(t, d, 30*time.Millisecond)
	}

	assert.Equal(t, 5*time.Millisecond, RandomDelay(5*time.Millisecond, 5*time.Millisecond))
	assert.Equal(t, 5*time.Millisecond, RandomDelay(5*time.Millisecond, time.Millisecond))
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))
	assert.NoError(t, Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	assert.ErrorIs(t, Sleep(ctx, time.Minute), context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
}
