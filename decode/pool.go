package decode

import (
	"context"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// job is one queued decode and the channel its result goes to.
type job struct {
	ctx  context.Context
	req  Request
	done chan<- Result
}

// PoolStats counts pool activity.
type PoolStats struct {
	Requests uint64 // DecodeAsync and Decode calls
	Shared   uint64 // results delivered to more than one caller
	Decoded  uint64 // successful frame decodes
	Failed   uint64 // failed frame decodes
}

// Pool is a lane-affine worker pool implementing Service.
//
// Each worker owns one queue. A request goes to the worker selected by
// its lane modulo the worker count, so requests on one lane are never
// decoded concurrently, while different lanes spread across workers.
// Workers do not steal from each other: a sequential decoder keeps
// per-lane state that must only be touched by one goroutine at a time.
//
// Identical requests in flight at the same time are decoded once and the
// result is shared.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	decoder FrameDecoder
	workers int
	queues  []chan job

	// done stops the workers; stopped is closed once they have exited.
	done    chan struct{}
	stopped chan struct{}
	wg      sync.WaitGroup
	running atomic.Bool

	group singleflight.Group

	requests atomic.Uint64
	shared   atomic.Uint64
	decoded  atomic.Uint64
	failed   atomic.Uint64
}

// NewPool starts a pool of workers decoding with decoder. If workers is 0
// or negative, GOMAXPROCS is used.
func NewPool(decoder FrameDecoder, workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	queueSize := max(workers*4, 8)

	p := &Pool{
		decoder: decoder,
		workers: workers,
		queues:  make([]chan job, workers),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	for i := range workers {
		p.queues[i] = make(chan job, queueSize)
	}
	p.running.Store(true)

	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	slogger().Info("decode: pool started", "workers", workers)
	return p
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	queue := p.queues[id]
	for {
		select {
		case <-p.done:
			p.drain(queue)
			return
		case j := <-queue:
			p.execute(j)
		}
	}
}

// drain fails every job left in queue.
func (p *Pool) drain(queue chan job) {
	for {
		select {
		case j := <-queue:
			j.done <- Result{Err: ErrClosed}
		default:
			return
		}
	}
}

func (p *Pool) execute(j job) {
	res, err := p.decoder.DecodeFrame(j.ctx, j.req)
	if err == nil && res.Image == nil {
		err = ErrNoFrame
	}
	if err != nil {
		p.failed.Add(1)
		slogger().Warn("decode: frame failed", "path", j.req.Path, "time", j.req.Time, "lane", j.req.Lane, "err", err)
		j.done <- Result{Err: err}
		return
	}
	p.decoded.Add(1)
	j.done <- res
}

// lane returns the worker index for a lane.
func (p *Pool) lane(l uint64) int {
	return int(l % uint64(p.workers)) //nolint:gosec // bounded by workers
}

// run queues req on its lane worker and waits for the result.
func (p *Pool) run(ctx context.Context, req Request) Result {
	done := make(chan Result, 1)
	select {
	case p.queues[p.lane(req.Lane)] <- job{ctx: ctx, req: req, done: done}:
	case <-p.done:
		return Result{Err: ErrClosed}
	}

	select {
	case r := <-done:
		return r
	case <-p.stopped:
		// Workers answer everything they dequeued before exiting.
		select {
		case r := <-done:
			return r
		default:
			return Result{Err: ErrClosed}
		}
	}
}

// DecodeAsync queues req and returns a channel receiving its Result.
//
// Canceling ctx abandons the wait: the channel then receives ctx.Err().
// The decode itself still completes so other callers waiting on the same
// frame get it.
func (p *Pool) DecodeAsync(ctx context.Context, req Request) <-chan Result {
	out := make(chan Result, 1)
	p.requests.Add(1)
	if !p.running.Load() {
		out <- Result{Err: ErrClosed}
		close(out)
		return out
	}

	shared := p.group.DoChan(req.key(), func() (any, error) {
		r := p.run(context.WithoutCancel(ctx), req)
		return r, r.Err
	})
	go func() {
		defer close(out)
		select {
		case r := <-shared:
			res, _ := r.Val.(Result)
			if res.Err == nil && r.Err != nil {
				res.Err = r.Err
			}
			if r.Shared {
				p.shared.Add(1)
			}
			out <- res
		case <-ctx.Done():
			out <- Result{Err: ctx.Err()}
		}
	}()
	return out
}

// Decode queues req and waits for it.
func (p *Pool) Decode(ctx context.Context, req Request) (Result, error) {
	r := <-p.DecodeAsync(ctx, req)
	return r, r.Err
}

// Close stops the workers. Queued requests fail with ErrClosed. When the
// decoder implements io.Closer it is closed too. Close is safe to call
// multiple times.
func (p *Pool) Close() error {
	if !p.running.CompareAndSwap(true, false) {
		return nil
	}
	close(p.done)
	p.wg.Wait()
	close(p.stopped)
	slogger().Info("decode: pool stopped", "decoded", p.decoded.Load(), "failed", p.failed.Load())

	if c, ok := p.decoder.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// ForgetFolder asks the decoder to drop anything it remembers about files
// under folder, such as probe results. It is a no-op for decoders that
// keep no per-file state.
func (p *Pool) ForgetFolder(folder string) {
	if f, ok := p.decoder.(interface{ ForgetFolder(string) }); ok {
		f.ForgetFolder(folder)
	}
}

// Workers returns the number of workers in the pool.
func (p *Pool) Workers() int {
	return p.workers
}

// Stats returns a snapshot of the pool counters.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Requests: p.requests.Load(),
		Shared:   p.shared.Load(),
		Decoded:  p.decoded.Load(),
		Failed:   p.failed.Load(),
	}
}

var _ Service = (*Pool)(nil)
