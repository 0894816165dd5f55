package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Writers(t *testing.T) {
	c := NewController(Config{MaxWriters: 2})
	assert.Equal(t, 2, c.MaxWriters())

	require.NoError(t, c.AcquireWriter(context.Background()))
	require.NoError(t, c.AcquireWriter(context.Background()))
	assert.False(t, c.TryAcquireWriter())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireWriter(ctx), context.DeadlineExceeded)

	c.ReleaseWriter()
	assert.True(t, c.TryAcquireWriter())
}

func TestController_Defaults(t *testing.T) {
	c := NewController(Config{})
	assert.Equal(t, 1, c.MaxWriters())
	require.NoError(t, c.AcquireIO(context.Background(), 1<<20))
}

func TestController_IOLimit(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1000})
	// The first burst is free, the next one has to wait.
	require.NoError(t, c.AcquireIO(context.Background(), 1000))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, c.AcquireIO(ctx, 2500))
}

func TestController_Memory(t *testing.T) {
	c := NewController(Config{})
	c.TrackMemory(100)
	c.TrackMemory(50)
	c.TrackMemory(-120)
	assert.Equal(t, int64(30), c.MemoryUsage())
	assert.Equal(t, int64(150), c.PeakMemory())
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	require.NoError(t, c.AcquireWriter(context.Background()))
	assert.True(t, c.TryAcquireWriter())
	c.ReleaseWriter()
	c.TrackMemory(10)
	assert.Zero(t, c.MemoryUsage())
	assert.Equal(t, 1, c.MaxWriters())
}
