// Package parallel splits CPU model work into row bands on a shared
// work-stealing goroutine pool.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// Pool runs row bands of CPU simulation models on a fixed set of
// goroutines. Each worker owns a queue and steals from the others when its
// own queue is empty, so uneven bands still finish together.
//
// Pool is safe for concurrent use.
type Pool struct {
	workers int
	queues  []chan func()
	done    chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool
}

// NewPool starts a pool with the given number of workers. Zero or negative
// means GOMAXPROCS.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	size := max(workers*4, 8)
	p := &Pool{
		workers: workers,
		queues:  make([]chan func(), workers),
		done:    make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan func(), size)
	}
	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	own := p.queues[id]
	for {
		select {
		case <-p.done:
			drain(own)
			return
		case fn := <-own:
			fn()
		default:
			if fn := p.steal(id); fn != nil {
				fn()
				continue
			}
			select {
			case <-p.done:
				drain(own)
				return
			case fn := <-own:
				fn()
			}
		}
	}
}

func drain(q chan func()) {
	for {
		select {
		case fn := <-q:
			fn()
		default:
			return
		}
	}
}

func (p *Pool) steal(id int) func() {
	for i := range p.workers {
		if i == id {
			continue
		}
		select {
		case fn := <-p.queues[i]:
			return fn
		default:
		}
	}
	return nil
}

// Rows splits [0, n) into contiguous bands and calls fn(lo, hi) for each
// band in parallel, returning when all bands are done. Small ranges and a
// closed pool run inline on the caller.
func (p *Pool) Rows(n int, fn func(lo, hi int)) {
	if n <= 0 {
		return
	}
	bands := min(p.workers*2, n/MinBand)
	if bands <= 1 || !p.running.Load() {
		fn(0, n)
		return
	}
	var wg sync.WaitGroup
	wg.Add(bands)
	for b := range bands {
		lo, hi := b*n/bands, (b+1)*n/bands
		task := func() {
			defer wg.Done()
			fn(lo, hi)
		}
		select {
		case p.queues[b%p.workers] <- task:
		case <-p.done:
			task()
		}
	}
	wg.Wait()
}

// Close waits for queued work and stops the workers. It is safe to call
// more than once.
func (p *Pool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers.
func (p *Pool) Workers() int { return p.workers }

// MinBand is the smallest band Rows hands to a worker.
const MinBand = 8

var (
	sharedOnce sync.Once
	shared     *Pool
)

// Rows runs fn over [0, n) on the process-wide pool.
func Rows(n int, fn func(lo, hi int)) {
	sharedOnce.Do(func() { shared = NewPool(0) })
	shared.Rows(n, fn)
}
