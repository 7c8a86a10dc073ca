package sim

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	gpuruntime "github.com/wippyai/gpu-runtime"
	gerrors "github.com/wippyai/gpu-runtime/errors"
	"github.com/wippyai/gpu-runtime/intrinsics"
)

// MaxThreadsPerBlock bounds the block size.
const MaxThreadsPerBlock = 1024

var errAborted = errors.New("block aborted")

// Config is a launch configuration.
type Config struct {
	Grid        gpuruntime.Dim3
	Block       gpuruntime.Dim3
	SharedBytes int // dynamic shared memory per block
	Parallel    int // blocks in flight, GOMAXPROCS when zero
}

// Kernel is a kernel body executed once per thread.
type Kernel func(t *Thread) error

func (c Config) validate() error {
	for _, d := range []gpuruntime.Dim3{c.Grid, c.Block} {
		if d.X <= 0 || d.Y <= 0 || d.Z <= 0 {
			return gerrors.InvalidInput(gerrors.PhaseDriver, fmt.Sprintf("launch extent %s must be positive", d))
		}
	}
	if c.Block.Size() > MaxThreadsPerBlock {
		return gerrors.InvalidInput(gerrors.PhaseDriver,
			fmt.Sprintf("block %s has %d threads, limit %d", c.Block, c.Block.Size(), MaxThreadsPerBlock))
	}
	if c.SharedBytes < 0 {
		return gerrors.InvalidInput(gerrors.PhaseDriver, "negative dynamic shared memory size")
	}
	return nil
}

// Launch runs k for every thread of the grid. Blocks run concurrently;
// the first error cancels blocks that have not started.
func Launch(ctx context.Context, cfg Config, k Kernel) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	limit := cfg.Parallel
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

outer:
	for z := 0; z < cfg.Grid.Z; z++ {
		for y := 0; y < cfg.Grid.Y; y++ {
			for x := 0; x < cfg.Grid.X; x++ {
				if gctx.Err() != nil {
					break outer
				}
				ctaid := gpuruntime.Dim3{X: x, Y: y, Z: z}
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					return runBlock(cfg, ctaid, k)
				})
			}
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

type warp struct {
	size  int
	slots [intrinsics.WarpSize]uint32
	bar   *barrier
}

type block struct {
	shared []byte
	bar    *barrier
	warps  []*warp
}

func newBlock(cfg Config) *block {
	n := cfg.Block.Size()
	b := &block{
		shared: make([]byte, cfg.SharedBytes),
		bar:    newBarrier(n),
	}
	for start := 0; start < n; start += intrinsics.WarpSize {
		size := min(intrinsics.WarpSize, n-start)
		b.warps = append(b.warps, &warp{size: size, bar: newBarrier(size)})
	}
	return b
}

func (b *block) abort() {
	b.bar.abort()
	for _, w := range b.warps {
		w.bar.abort()
	}
}

func runBlock(cfg Config, ctaid gpuruntime.Dim3, k Kernel) error {
	blk := newBlock(cfg)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
		}
		mu.Unlock()
		blk.abort()
	}

	for z := 0; z < cfg.Block.Z; z++ {
		for y := 0; y < cfg.Block.Y; y++ {
			for x := 0; x < cfg.Block.X; x++ {
				t := NewThread(gpuruntime.Dim3{X: x, Y: y, Z: z}, cfg.Block, ctaid, cfg.Grid)
				t.block = blk
				wg.Add(1)
				go func() {
					defer wg.Done()
					w := blk.warps[t.linear/intrinsics.WarpSize]
					defer func() {
						if r := recover(); r != nil {
							if r != errAborted {
								fail(fmt.Errorf("thread %s of block %s panicked: %v", t.Tid, ctaid, r))
							}
						}
						blk.bar.leave()
						w.bar.leave()
					}()
					if err := k(t); err != nil {
						fail(fmt.Errorf("thread %s of block %s: %w", t.Tid, ctaid, err))
					}
				}()
			}
		}
	}
	wg.Wait()
	return firstErr
}

// barrier is a reusable rendezvous for a fixed set of participants.
// Participants that exit stop being waited for.
type barrier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	n      int
	count  int
	gen    uint64
	broken bool
}

func newBarrier(n int) *barrier {
	b := &barrier{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

func (b *barrier) wait() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.broken {
		return false
	}
	gen := b.gen
	b.count++
	if b.count >= b.n {
		b.release()
		return true
	}
	for gen == b.gen {
		if b.broken {
			return false
		}
		b.cond.Wait()
	}
	return true
}

// release opens the barrier. Callers hold b.mu.
func (b *barrier) release() {
	b.count = 0
	b.gen++
	b.cond.Broadcast()
}

func (b *barrier) leave() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.n--
	if b.count > 0 && b.count >= b.n {
		b.release()
	}
}

func (b *barrier) abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.broken = true
	b.cond.Broadcast()
}
