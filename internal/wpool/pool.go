// Package wpool provides a fixed-size tomb-managed worker pool shared by the
// venue adapter and market data fan-in paths.
package wpool

import (
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const defaultTaskChanSize = 100

// Function is the unit of work a pool runs. Returning a non-nil error kills
// the owning tomb, tearing down the rest of the pool with it.
type Function = func(t *tomb.Tomb, task any) error

// Pool runs a fixed number of goroutines pulling tasks off a shared channel.
type Pool struct {
	n     int
	tasks chan any
	work  Function
}

// New constructs a pool with the given worker count and task queue depth.
// queueSize <= 0 uses a sensible default.
func New(size, queueSize int) Pool {
	if queueSize <= 0 {
		queueSize = defaultTaskChanSize
	}
	return Pool{
		tasks: make(chan any, queueSize),
		n:     size,
	}
}

// AddTask enqueues a unit of work. Blocks if the queue is full.
func (p *Pool) AddTask(task any) {
	p.tasks <- task
}

// Setup spawns n workers under t and blocks until t starts dying.
func (p *Pool) Setup(t *tomb.Tomb, work Function) {
	p.work = work
	log.Info().Int("workers", p.n).Msg("wpool: starting workers")
	for i := 0; i < p.n; i++ {
		t.Go(func() error { return p.worker(t) })
	}
	<-t.Dying()
}

func (p *Pool) worker(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-p.tasks:
			if err := p.work(t, task); err != nil {
				log.Error().Err(err).Msg("wpool: worker exiting on error")
				return err
			}
		}
	}
}
