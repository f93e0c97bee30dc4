package wpool

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	tomb "gopkg.in/tomb.v2"
)

func TestPool_ProcessesAllTasks(t *testing.T) {
	pool := New(3, 10)
	var processed int64

	tb := &tomb.Tomb{}
	tb.Go(func() error {
		pool.Setup(tb, func(t *tomb.Tomb, task any) error {
			atomic.AddInt64(&processed, 1)
			return nil
		})
		return nil
	})

	for i := 0; i < 20; i++ {
		pool.AddTask(i)
	}

	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&processed) == 20
	}, time.Second, time.Millisecond)

	tb.Kill(nil)
	_ = tb.Wait()
}

func TestPool_WorkerErrorKillsTomb(t *testing.T) {
	pool := New(2, 10)
	tb := &tomb.Tomb{}
	boom := assert.AnError

	tb.Go(func() error {
		pool.Setup(tb, func(t *tomb.Tomb, task any) error {
			return boom
		})
		return nil
	})

	pool.AddTask("trigger")

	assert.Eventually(t, func() bool {
		return !tb.Alive()
	}, time.Second, time.Millisecond)
	assert.ErrorIs(t, tb.Err(), boom)
}
