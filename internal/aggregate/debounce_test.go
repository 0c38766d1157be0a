package aggregate

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDebouncerCoalescesBursts(t *testing.T) {
	var runs int32
	d := NewDebouncer(context.Background(), 100*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&runs, 1)
	})
	defer d.Close()

	for i := 0; i < 10; i++ {
		d.Trigger()
		time.Sleep(time.Millisecond)
	}
	assert.True(t, d.Pending())
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(200 * time.Millisecond)
	assert.EqualValues(t, 1, atomic.LoadInt32(&runs))
	assert.False(t, d.Pending())

	d.Trigger()
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&runs) == 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestDebouncerInFlightRunCompletes(t *testing.T) {
	started := make(chan struct{})
	var finished int32
	d := NewDebouncer(context.Background(), time.Millisecond, func(context.Context) {
		close(started)
		time.Sleep(50 * time.Millisecond)
		atomic.StoreInt32(&finished, 1)
	})

	d.Trigger()
	<-started
	d.Close()
	assert.EqualValues(t, 1, atomic.LoadInt32(&finished))

	d.Trigger()
	assert.False(t, d.Pending())
}
