// Copyright (c) 2016 Uber Technologies, Inc.
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package digest

import (
	"math/rand"

	"github.com/m3db/m3x/pool"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
)

const (
	defaultCompression  = 100.0
	defaultNodePoolSize = 256
	defaultRandSeed     = 42
)

// Rand is the random source a Digest draws from for its reservoir
// tie-break in Add and its shuffles in Compress/Merge. *rand.Rand already
// implements it; it is pulled out as an interface so tests and callers can
// inject a deterministic or custom source.
type Rand interface {
	Float64() float64
	Shuffle(n int, swap func(i, j int))
}

// Options configures a Digest. Every setter returns a new Options value,
// mirroring the teacher's tdigest.Options functional-options style.
type Options interface {
	// SetCompression sets the compression factor delta.
	SetCompression(value float64) Options
	// Compression returns the compression factor delta.
	Compression() float64

	// SetRecordAllData sets whether every Add appends its raw sample to
	// the absorbing centroid's Samples.
	SetRecordAllData(value bool) Options
	// IsRecordingAllData returns whether record-all mode is enabled.
	IsRecordingAllData() bool

	// SetRNG sets the random source used for reservoir tie-breaks and
	// shuffles.
	SetRNG(value Rand) Options
	// RNG returns the random source.
	RNG() Rand

	// SetMetricsScope sets the tally scope counters/gauges are emitted on.
	SetMetricsScope(value tally.Scope) Options
	// MetricsScope returns the tally scope.
	MetricsScope() tally.Scope

	// SetLogger sets the logger used on error/debug-assertion paths.
	SetLogger(value *zap.Logger) Options
	// Logger returns the logger.
	Logger() *zap.Logger

	// SetDebugAssertions enables invariant checking of the index's
	// augmentation on every mutation, logging and panicking on drift.
	SetDebugAssertions(value bool) Options
	// DebugAssertions returns whether debug assertions are enabled.
	DebugAssertions() bool

	// SetNodePool sets the pool used to allocate index tree nodes.
	SetNodePool(value pool.ObjectPool) Options
	// NodePool returns the pool used to allocate index tree nodes.
	NodePool() pool.ObjectPool

	// Validate returns an error if the options are not usable to
	// construct a Digest.
	Validate() error
}

type options struct {
	compression     float64
	recordAllData   bool
	rng             Rand
	scope           tally.Scope
	logger          *zap.Logger
	debugAssertions bool
	nodePool        pool.ObjectPool
}

// NewOptions returns a new Options with the teacher's defaults: a
// compression of 100, an unseeded-by-caller but deterministic RNG, a
// no-op metrics scope, and a no-op logger.
func NewOptions() Options {
	nodePool := pool.NewObjectPool(pool.NewObjectPoolOptions().SetSize(defaultNodePoolSize))
	nodePool.Init(func() interface{} {
		return &centroidNode{}
	})

	return &options{
		compression: defaultCompression,
		rng:         rand.New(rand.NewSource(defaultRandSeed)),
		scope:       tally.NoopScope,
		logger:      zap.NewNop(),
		nodePool:    nodePool,
	}
}

func (o *options) SetCompression(value float64) Options {
	opts := *o
	opts.compression = value
	return &opts
}

func (o *options) Compression() float64 { return o.compression }

func (o *options) SetRecordAllData(value bool) Options {
	opts := *o
	opts.recordAllData = value
	return &opts
}

func (o *options) IsRecordingAllData() bool { return o.recordAllData }

func (o *options) SetRNG(value Rand) Options {
	opts := *o
	opts.rng = value
	return &opts
}

func (o *options) RNG() Rand { return o.rng }

func (o *options) SetMetricsScope(value tally.Scope) Options {
	opts := *o
	opts.scope = value
	return &opts
}

func (o *options) MetricsScope() tally.Scope { return o.scope }

func (o *options) SetLogger(value *zap.Logger) Options {
	opts := *o
	opts.logger = value
	return &opts
}

func (o *options) Logger() *zap.Logger { return o.logger }

func (o *options) SetDebugAssertions(value bool) Options {
	opts := *o
	opts.debugAssertions = value
	return &opts
}

func (o *options) DebugAssertions() bool { return o.debugAssertions }

func (o *options) SetNodePool(value pool.ObjectPool) Options {
	opts := *o
	opts.nodePool = value
	return &opts
}

func (o *options) NodePool() pool.ObjectPool { return o.nodePool }

func (o *options) Validate() error {
	if o.compression <= 0 {
		return ErrInvalidInput
	}
	if o.rng == nil {
		return ErrInvalidInput
	}
	if o.nodePool == nil {
		return ErrInvalidInput
	}
	return nil
}
