// Copyright (c) 2017 Uber Technologies, Inc.
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

import "github.com/uber-go/tally"

// digestMetrics is the set of counters and gauges a Digest emits through
// its options-supplied scope. Every field is nil-safe: a Digest built
// without a scope (or with tally.NoopScope) simply emits nothing.
type digestMetrics struct {
	add          tally.Counter
	compress     tally.Counter
	merge        tally.Counter
	decodeErrors tally.Counter
	centroids    tally.Gauge
}

func newDigestMetrics(scope tally.Scope) digestMetrics {
	if scope == nil {
		scope = tally.NoopScope
	}
	scope = scope.SubScope("digest")
	return digestMetrics{
		add:          scope.Counter("add"),
		compress:     scope.Counter("compress"),
		merge:        scope.Counter("merge"),
		decodeErrors: scope.Counter("codec.decode.errors"),
		centroids:    scope.Gauge("centroids"),
	}
}

func (m digestMetrics) incAdd() {
	if m.add != nil {
		m.add.Inc(1)
	}
}

func (m digestMetrics) incCompress() {
	if m.compress != nil {
		m.compress.Inc(1)
	}
}

func (m digestMetrics) incMerge() {
	if m.merge != nil {
		m.merge.Inc(1)
	}
}

func (m digestMetrics) incDecodeErrors() {
	if m.decodeErrors != nil {
		m.decodeErrors.Inc(1)
	}
}

func (m digestMetrics) setCentroidCount(n int) {
	if m.centroids != nil {
		m.centroids.Update(float64(n))
	}
}
