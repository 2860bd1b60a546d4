// Package prep runs the preparation pipeline for method bodies: a cache
// lookup, verification on a miss, then optimization.
package prep

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	"golang.org/x/sync/errgroup"

	"github.com/chazu/avmprep/abc"
	"github.com/chazu/avmprep/meta"
	"github.com/chazu/avmprep/optimize"
	"github.com/chazu/avmprep/store"
	"github.com/chazu/avmprep/verify"
)

var log = commonlog.GetLogger("avmprep.prep")

// Job is one method body to prepare, with the signature the optimizer
// needs.
type Job struct {
	Body       *abc.MethodBody
	Receiver   *meta.Class
	Params     []*meta.Class
	ReturnType *meta.Class
	// Scopes is the outer scope the method closes over. Nil uses the
	// Preparer's default.
	Scopes optimize.ScopeResolver
}

// Prepared is the outcome of one Job.
type Prepared struct {
	Job    *Job
	Method *verify.Method
	// Result is nil when optimization is disabled or verification failed.
	Result *optimize.Result
	Cached bool
	Err    error
}

// Code returns the code to execute: the optimized code when available,
// otherwise the verified code.
func (p *Prepared) Code() []abc.Instruction {
	switch {
	case p.Result != nil:
		return p.Result.Code
	case p.Method != nil:
		return p.Method.Code
	}
	return nil
}

// Stats counts what a Preparer has done.
type Stats struct {
	Verified int
	Cached   int
	Failed   int
	Rewrites int
}

// Option configures a Preparer.
type Option func(*Preparer)

// WithStore caches verified methods in s.
func WithStore(s store.Store) Option {
	return func(p *Preparer) {
		p.store = s
	}
}

// WithWorkers bounds the number of methods PrepareAll works on at once.
func WithWorkers(n int) Option {
	return func(p *Preparer) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithAbortOnError makes PrepareAll stop at the first method that fails to
// verify. By default failures are isolated to their method.
func WithAbortOnError(abort bool) Option {
	return func(p *Preparer) {
		p.abort = abort
	}
}

// WithOptimization enables or disables the optimizer.
func WithOptimization(enabled bool) Option {
	return func(p *Preparer) {
		p.optimizeEnabled = enabled
	}
}

// WithOptimizerOptions passes options to the optimizer.
func WithOptimizerOptions(opts ...optimize.Option) Option {
	return func(p *Preparer) {
		p.optimizerOpts = append(p.optimizerOpts, opts...)
	}
}

// Preparer prepares methods against one class domain. It is safe for
// concurrent use.
type Preparer struct {
	verifier        *verify.Verifier
	optimizer       *optimize.Optimizer
	optimizerOpts   []optimize.Option
	store           store.Store
	workers         int
	abort           bool
	optimizeEnabled bool
	runID           string

	mu    sync.Mutex
	stats Stats
}

// New creates a Preparer. scopes is the default outer scope and may be nil.
func New(classes optimize.ClassResolver, scopes optimize.ScopeResolver, opts ...Option) *Preparer {
	p := &Preparer{
		verifier:        verify.New(),
		workers:         4,
		optimizeEnabled: true,
		runID:           uuid.New().String(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.optimizer = optimize.New(classes, scopes, p.optimizerOpts...)
	return p
}

// RunID identifies this Preparer in logs and cache entries.
func (p *Preparer) RunID() string {
	return p.runID
}

// Stats returns a snapshot of the counters.
func (p *Preparer) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// Prepare prepares one method. A verification failure is returned as the
// error and recorded in the result.
func (p *Preparer) Prepare(ctx context.Context, job *Job) (*Prepared, error) {
	out := &Prepared{Job: job}

	m, cached, err := p.verified(ctx, job.Body)
	if err != nil {
		out.Err = err
		p.count(func(s *Stats) { s.Failed++ })
		return out, err
	}
	out.Method = m
	out.Cached = cached

	if p.optimizeEnabled {
		out.Result = p.optimizer.Optimize(optimize.Input{
			Method:     m,
			Receiver:   job.Receiver,
			Params:     job.Params,
			ReturnType: job.ReturnType,
			Scopes:     job.Scopes,
		})
	}

	p.count(func(s *Stats) {
		if cached {
			s.Cached++
		} else {
			s.Verified++
		}
		if out.Result != nil {
			s.Rewrites += out.Result.Rewrites
		}
	})
	return out, nil
}

// verified returns the verified form of body, from the cache when
// possible. Cache problems are logged and never fail the method.
func (p *Preparer) verified(ctx context.Context, body *abc.MethodBody) (*verify.Method, bool, error) {
	if p.store == nil {
		m, err := p.verifier.Verify(body)
		return m, false, err
	}

	key, err := store.KeyOf(body)
	if err != nil {
		log.Warningf("%s: %s", body.Name, err)
		m, err := p.verifier.Verify(body)
		return m, false, err
	}

	e, err := p.store.Get(ctx, key)
	switch {
	case err == nil:
		m, err := e.Method(body)
		if err == nil {
			log.Debugf("%s: cache hit %s (run %s)", body.Name, key, e.RunID)
			return m, true, nil
		}
		log.Warningf("%s: unusable cache entry %s: %s", body.Name, key, err)
	case !errors.Is(err, store.ErrNotFound):
		log.Warningf("%s: cache lookup: %s", body.Name, err)
	}

	m, err := p.verifier.Verify(body)
	if err != nil {
		return nil, false, err
	}
	if err := p.store.Put(ctx, key, store.NewEntry(m, p.runID)); err != nil {
		log.Warningf("%s: cache store: %s", body.Name, err)
	}
	return m, false, nil
}

// PrepareAll prepares jobs concurrently. Results are in job order.
//
// With the default isolate policy every job gets a result and failures are
// reported in Prepared.Err; the returned error is only a context error. With
// abort on error, the first failure cancels the remaining jobs, is returned,
// and jobs that never ran have nil results.
func (p *Preparer) PrepareAll(ctx context.Context, jobs []*Job) ([]*Prepared, error) {
	log.Infof("run %s: preparing %d methods with %d workers", p.runID, len(jobs), p.workers)

	results := make([]*Prepared, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, job := range jobs {
		i, job := i, job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := p.Prepare(gctx, job)
			results[i] = r
			if err != nil && p.abort {
				return err
			}
			return nil
		})
	}
	err := g.Wait()

	s := p.Stats()
	log.Infof("run %s: %d verified, %d cached, %d failed, %d rewrites",
		p.runID, s.Verified, s.Cached, s.Failed, s.Rewrites)
	return results, err
}

func (p *Preparer) count(f func(*Stats)) {
	p.mu.Lock()
	f(&p.stats)
	p.mu.Unlock()
}
