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

// Package digest implements an adaptive, single-pass quantile sketch:
// a bounded set of weighted centroids that answer approximate CDF and
// quantile queries over a stream of real-valued observations.
//
// Adaptive histogram based on something like streaming k-means crossed
// with Q-digest. It gives part-per-million accuracy for extreme quantiles
// and typically sub-percent accuracy for middle quantiles, using O(delta)
// centroids.
package digest

import (
	"math"

	"github.com/pkg/errors"
)

const (
	maxSizeMultiple = 100
)

// Digest is a single-writer quantile sketch. Add, Compress, Merge (as the
// destination writer), and codec reads/writes may not run concurrently on
// the same Digest; concurrent CDF/Quantile/Centroids calls are likewise
// unsafe while a mutation is in flight.
type Digest struct {
	compression     float64
	index           *orderedIndex
	totalWeight     int64
	recordAll       bool
	nextID          int64
	rng             Rand
	metrics         digestMetrics
	debugAssertions bool
	opts            Options
}

// NewDigest creates a new, empty Digest from the given options.
func NewDigest(opts Options) (*Digest, error) {
	if opts == nil {
		opts = NewOptions()
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return newDigest(opts), nil
}

// newDigest constructs a Digest from already-validated options. It is
// used internally by Compress and Merge, which always derive their
// options from an existing, valid Digest.
func newDigest(opts Options) *Digest {
	return &Digest{
		compression:     opts.Compression(),
		index:           newOrderedIndex(opts.NodePool()),
		recordAll:       opts.IsRecordingAllData(),
		rng:             opts.RNG(),
		metrics:         newDigestMetrics(opts.MetricsScope()),
		debugAssertions: opts.DebugAssertions(),
		opts:            opts,
	}
}

// Compression returns the compression factor delta the Digest was
// constructed with.
func (d *Digest) Compression() float64 {
	return d.compression
}

// Size returns the total weight absorbed by the digest, i.e. the number
// of observations Add has been called with (weighted).
func (d *Digest) Size() int64 {
	return d.totalWeight
}

// CentroidCount returns the number of centroids currently held.
func (d *Digest) CentroidCount() int {
	return d.index.Size()
}

// Centroids returns an iterator over the digest's centroids in ascending
// order of mean. The iterator borrows the digest's internal state and
// must not outlive the digest's next mutating call.
func (d *Digest) Centroids() *CentroidIterator {
	return d.index.Iterator()
}

// IsRecordingAllData reports whether Add appends raw samples to the
// absorbing centroid.
func (d *Digest) IsRecordingAllData() bool {
	return d.recordAll
}

// Add incorporates a single observation x with weight w into the digest.
func (d *Digest) Add(x float64, w int64) error {
	if !isFinite(x) {
		return errors.Wrap(ErrInvalidInput, "digest: add: x must be finite")
	}
	if w < 1 {
		return errors.Wrap(ErrInvalidInput, "digest: add: weight must be >= 1")
	}
	d.add(x, w, Centroid{Mean: x}, true)
	d.metrics.incAdd()
	d.metrics.setCentroidCount(d.index.Size())
	return nil
}

// add is the core of the update rule described in the specification's
// streaming update procedure: locate the nearest existing centroid(s),
// decide absorb-or-insert via a rank-dependent size bound, and break ties
// uniformly at random via reservoir sampling. raw distinguishes a genuine
// new observation (x is a real sample, from Add) from a replayed centroid
// (x is only its representative mean, from Compress/Merge); it governs
// whether x itself is eligible to become a recorded sample.
func (d *Digest) add(x float64, w int64, base Centroid, raw bool) {
	probe := probeCentroid(x)

	start, ok := d.index.Floor(probe)
	if !ok {
		start, ok = d.index.Ceiling(probe)
	}
	if !ok {
		d.insertNew(x, w, base.Samples, raw)
		d.totalWeight = w
		return
	}

	// First pass: find the minimum distance to x among centroids at or
	// after start, and the position of the last centroid tied for it.
	// Distance to x is unimodal along the sorted means once we have
	// passed the nearest neighbor, so the scan can stop as soon as the
	// distance strictly increases.
	it := d.index.TailFrom(start)
	minDistance := math.MaxFloat64
	lastNeighbor := 0
	i := d.index.HeadCount(start)
	for {
		neighbor, ok := it.Next()
		if !ok {
			break
		}
		z := math.Abs(neighbor.Mean - x)
		if z <= minDistance {
			minDistance = z
			lastNeighbor = i
		} else {
			break
		}
		i++
	}

	// Second pass: among centroids tied for minimum distance, pick one
	// uniformly at random from those whose post-absorb weight would stay
	// within the rank-dependent size bound k.
	var (
		chosen   Centroid
		found    bool
		n        float64 = 1
		sum              = d.index.HeadSum(start)
	)
	it = d.index.TailFrom(start)
	i = d.index.HeadCount(start)
	for i <= lastNeighbor {
		neighbor, ok := it.Next()
		if !ok {
			break
		}
		z := math.Abs(neighbor.Mean - x)
		q := (float64(sum) + float64(neighbor.Count)/2.0) / float64(d.totalWeight)
		k := 4 * float64(d.totalWeight) * q * (1 - q) / d.compression

		if z == minDistance && float64(neighbor.Count+w) <= k {
			if d.rng.Float64() < 1/n {
				chosen = neighbor
				found = true
			}
			n++
		}
		sum += neighbor.Count
		i++
	}

	if !found {
		d.insertNew(x, w, base.Samples, raw)
	} else {
		// The nearest point was not necessarily unique, so we may not be
		// modifying the first copy; removal and reinsertion is required
		// because the new mean can change the centroid's sort position.
		d.index.Remove(chosen)
		chosen.add(x, w, d.recordAll && raw)
		if d.recordAll && !raw {
			// A replayed centroid's own recorded samples move with it.
			chosen.Samples = append(chosen.Samples, base.Samples...)
		}
		d.index.Insert(chosen)
	}
	d.totalWeight += w

	if d.index.Size() > int(maxSizeMultiple*d.compression) {
		// Sequential or otherwise adversarial ordering of inputs can
		// cause a pathological expansion of the summary. Fight this by
		// replaying the current centroids in random order.
		d.Compress()
	}

	if d.debugAssertions {
		assertIndexInvariants(d.opts.Logger(), d.index)
	}
}

// insertNew inserts a brand new centroid for x. When raw is true, x is a
// genuine new observation and becomes the centroid's first recorded
// sample. When raw is false (Compress/Merge replay), x is only a
// representative mean, not a real sample, so it is never synthesized
// into Samples; samples carries forward whatever was already attached to
// the centroid being replayed, which may be nil.
func (d *Digest) insertNew(x float64, w int64, samples []float64, raw bool) {
	d.nextID++
	c := Centroid{Mean: x, Count: w, ID: d.nextID}
	if d.recordAll {
		if raw {
			c.Samples = append(c.Samples, x)
		} else {
			c.Samples = samples
		}
	}
	d.index.Insert(c)
}

// Compress snapshots the digest's centroids, shuffles them uniformly at
// random using the digest's RNG, and replays them through the same update
// rule as Add (as replays, not new observations) into a fresh, empty
// digest, then swaps that digest's state in. This is the
// only way centroids are ever removed from the index.
func (d *Digest) Compress() {
	n := d.index.Size()
	if n == 0 {
		return
	}

	snapshot := make([]Centroid, 0, n)
	it := d.index.Iterator()
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		snapshot = append(snapshot, c)
	}
	d.rng.Shuffle(len(snapshot), func(i, j int) {
		snapshot[i], snapshot[j] = snapshot[j], snapshot[i]
	})

	fresh := newDigest(d.opts)
	for _, c := range snapshot {
		fresh.add(c.Mean, c.Count, c, false)
	}

	d.index = fresh.index
	d.totalWeight = fresh.totalWeight
	d.nextID = fresh.nextID
	d.metrics.incCompress()
	d.metrics.setCentroidCount(d.index.Size())
}

// Merge combines the centroids of several digests into a new digest at
// the requested compression, replaying them in an order shuffled by rng.
// If any source digest records all data, so does the result, but
// individual samples are not propagated across the merge boundary: only
// each centroid's aggregate mean and count cross it. See DESIGN.md for
// why this implementation does not attempt to carry samples through.
func Merge(compression float64, digests []*Digest, rng Rand) (*Digest, error) {
	opts := NewOptions().SetCompression(compression).SetRNG(rng)
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	var (
		centroids []Centroid
		recordAll bool
	)
	for _, src := range digests {
		if src == nil {
			continue
		}
		recordAll = recordAll || src.recordAll

		it := src.Centroids()
		for {
			c, ok := it.Next()
			if !ok {
				break
			}
			c.Samples = nil
			centroids = append(centroids, c)
		}
	}

	opts = opts.SetRecordAllData(recordAll)
	result := newDigest(opts)
	rng.Shuffle(len(centroids), func(i, j int) {
		centroids[i], centroids[j] = centroids[j], centroids[i]
	})
	for _, c := range centroids {
		result.add(c.Mean, c.Count, c, false)
	}
	result.metrics.incMerge()
	result.metrics.setCentroidCount(result.index.Size())
	return result, nil
}

// CDF returns the approximate fraction of absorbed weight at or below x.
// It returns NaN if the digest is empty, and an error if x is not finite.
func (d *Digest) CDF(x float64) (float64, error) {
	if !isFinite(x) {
		return math.NaN(), errors.Wrap(ErrInvalidInput, "digest: cdf: x must be finite")
	}

	switch d.index.Size() {
	case 0:
		return math.NaN(), nil
	case 1:
		first, _ := d.index.First()
		if x < first.Mean {
			return 0, nil
		}
		return 1, nil
	}

	it := d.index.Iterator()
	a, _ := it.Next()
	b, _ := it.Next()

	left := (b.Mean - a.Mean) / 2
	right := left

	var r float64
	for {
		next, ok := it.Next()
		if !ok {
			break
		}
		if x < a.Mean+right {
			return (r + float64(a.Count)*interpolate(x, a.Mean-left, a.Mean+right)) / float64(d.totalWeight), nil
		}
		r += float64(a.Count)

		a, b = b, next
		left = right
		right = (b.Mean - a.Mean) / 2
	}

	left = right
	a = b
	if x < a.Mean+right {
		return (r + float64(a.Count)*interpolate(x, a.Mean-left, a.Mean+right)) / float64(d.totalWeight), nil
	}
	return 1, nil
}

// interpolate returns the fraction of [x0, x1] covered by x, clamped into
// [0, 1]: x is allowed to fall outside the interval (the caller's interval
// boundaries are themselves approximate), but the returned fraction of a
// centroid's weight never is.
func interpolate(x, x0, x1 float64) float64 {
	t := (x - x0) / (x1 - x0)
	switch {
	case t < 0:
		return 0
	case t > 1:
		return 1
	default:
		return t
	}
}

// Quantile returns the approximate value x such that CDF(x) is close to
// q. It requires at least two centroids and q in [0, 1].
func (d *Digest) Quantile(q float64) (float64, error) {
	if q < 0 || q > 1 {
		return 0, errors.Wrap(ErrInvalidInput, "digest: quantile: q must be in [0, 1]")
	}
	if d.index.Size() < 2 {
		return 0, errors.Wrap(ErrInvalidInput, "digest: quantile: need at least 2 centroids")
	}

	it := d.index.Iterator()
	a, _ := it.Next()
	b, _ := it.Next()

	next, hasMore := it.Next()
	if !hasMore {
		// Exactly two centroids: closed form.
		diff := (b.Mean - a.Mean) / 2
		if q > 0.75 {
			return b.Mean + diff*(4*q-3), nil
		}
		return a.Mean + diff*(4*q-1), nil
	}

	Q := q * float64(d.totalWeight)
	right := (b.Mean - a.Mean) / 2
	left := right

	if Q <= float64(a.Count) {
		return a.Mean + left*(2*Q-float64(a.Count))/float64(a.Count), nil
	}

	t := float64(a.Count)
	for {
		if t+float64(b.Count)/2 >= Q {
			return b.Mean - left*2*(Q-t)/float64(b.Count), nil
		}
		if t+float64(b.Count) >= Q {
			return b.Mean + right*2*(Q-t-float64(b.Count)/2.0)/float64(b.Count), nil
		}
		if !hasMore {
			// Should not be reachable given the invariants on Q: every
			// earlier branch covers Q up to and including the weight of
			// the last centroid.
			return b.Mean + right, nil
		}

		t += float64(b.Count)
		a, b = b, next
		left = right
		right = (b.Mean - a.Mean) / 2
		next, hasMore = it.Next()
	}
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
