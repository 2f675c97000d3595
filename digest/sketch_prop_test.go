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
	"math"
	"math/rand"
	"os"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

const (
	propTestRandomSeed        int64 = 20190822
	propTestMinSuccessfulRuns       = 100
)

func propTestParameters() *gopter.TestParameters {
	params := gopter.DefaultTestParameters()
	params.Rng.Seed(propTestRandomSeed)
	params.MinSuccessfulTests = propTestMinSuccessfulRuns
	params.MaxSize = 500
	params.MinSize = 1
	return params
}

func genObservations() gopter.Gen {
	return gen.SliceOf(gen.Float64Range(-1e6, 1e6))
}

// P1, P2, P3: size, centroid count bound, and strict ordering hold after
// every public mutation.
func TestPropertySizeCountAndOrderingInvariants(t *testing.T) {
	props := gopter.NewProperties(propTestParameters())

	props.Property("size equals sum of centroid counts, count is bounded, order is strict", prop.ForAll(
		func(values []float64) bool {
			d := newTestDigest(t, 50)
			for _, v := range values {
				if !isFinite(v) {
					continue
				}
				if err := d.Add(v, 1); err != nil {
					return false
				}

				var sum int64
				it := d.Centroids()
				var prev Centroid
				first := true
				for {
					c, ok := it.Next()
					if !ok {
						break
					}
					sum += c.Count
					if !first && !prev.less(c) {
						return false
					}
					prev = c
					first = false
				}
				if sum != d.Size() {
					return false
				}
				if d.CentroidCount() > int(100*d.Compression()) {
					return false
				}
			}
			return true
		},
		genObservations(),
	))

	reporter := gopter.NewFormatedReporter(true, 160, os.Stdout)
	if !props.Run(reporter) {
		t.Error("property failed")
	}
}

// P4: cdf is monotonically non-decreasing, 0 below the smallest centroid,
// 1 above the largest.
func TestPropertyCDFIsMonotonic(t *testing.T) {
	props := gopter.NewProperties(propTestParameters())

	props.Property("cdf is non-decreasing and saturates at the boundaries", prop.ForAll(
		func(values []float64) bool {
			d := newTestDigest(t, 50)
			for _, v := range values {
				if !isFinite(v) {
					continue
				}
				_ = d.Add(v, 1)
			}
			if d.CentroidCount() == 0 {
				return true
			}

			first, _ := d.index.First()
			below, err := d.CDF(first.Mean - 1e9)
			if err != nil || below != 0 {
				return false
			}

			var last Centroid
			it := d.Centroids()
			for c, ok := it.Next(); ok; c, ok = it.Next() {
				last = c
			}
			above, err := d.CDF(last.Mean + 1e9)
			if err != nil || above != 1 {
				return false
			}

			xs := []float64{-1e8, -1, 0, 1, 1e8}
			prevCDF := -1.0
			for _, x := range xs {
				c, err := d.CDF(x)
				if err != nil {
					return false
				}
				if c < prevCDF {
					return false
				}
				prevCDF = c
			}
			return true
		},
		genObservations(),
	))

	reporter := gopter.NewFormatedReporter(true, 160, os.Stdout)
	if !props.Run(reporter) {
		t.Error("property failed")
	}
}

// P5: quantile is non-decreasing in q for any digest with at least two
// distinct inputs.
func TestPropertyQuantileIsNonDecreasing(t *testing.T) {
	props := gopter.NewProperties(propTestParameters())

	props.Property("quantile(eps) <= quantile(0.5) <= quantile(1-eps)", prop.ForAll(
		func(values []float64) bool {
			d := newTestDigest(t, 50)
			for _, v := range values {
				if !isFinite(v) {
					continue
				}
				_ = d.Add(v, 1)
			}
			if d.CentroidCount() < 2 {
				return true
			}

			lo, err := d.Quantile(1e-6)
			if err != nil {
				return false
			}
			mid, err := d.Quantile(0.5)
			if err != nil {
				return false
			}
			hi, err := d.Quantile(1 - 1e-6)
			if err != nil {
				return false
			}
			return lo <= mid+1e-9 && mid <= hi+1e-9
		},
		genObservations(),
	))

	reporter := gopter.NewFormatedReporter(true, 160, os.Stdout)
	if !props.Run(reporter) {
		t.Error("property failed")
	}
}

// P6: for a sketch built from a large continuous sample, cdf(quantile(q))
// tracks q within a tolerance that shrinks as compression grows.
func TestPropertyApproximateInverse(t *testing.T) {
	d := newTestDigest(t, 200)
	rng := rand.New(rand.NewSource(55))
	for i := 0; i < 20000; i++ {
		_ = d.Add(rng.NormFloat64(), 1)
	}

	for _, q := range []float64{0.01, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99} {
		v, err := d.Quantile(q)
		if err != nil {
			t.Fatalf("quantile(%v): %v", q, err)
		}
		c, err := d.CDF(v)
		if err != nil {
			t.Fatalf("cdf(%v): %v", v, err)
		}
		if math.Abs(c-q) >= 3/d.Compression() {
			t.Fatalf("q=%v cdf(quantile(q))=%v exceeds tolerance", q, c)
		}
	}
}

// P9: merging k sketches over disjoint halves of a stream yields quantile
// errors within a small constant factor of building one sketch on the
// whole stream.
func TestPropertyMergeAccuracyNearSingleDigest(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	values := make([]float64, 0, 40000)
	for i := 0; i < 40000; i++ {
		values = append(values, rng.NormFloat64())
	}

	whole := newTestDigest(t, 100)
	for _, v := range values {
		_ = whole.Add(v, 1)
	}

	half := len(values) / 2
	a := newTestDigest(t, 100)
	for _, v := range values[:half] {
		_ = a.Add(v, 1)
	}
	b := newTestDigest(t, 100)
	for _, v := range values[half:] {
		_ = b.Add(v, 1)
	}

	merged, err := Merge(100, []*Digest{a, b}, rand.New(rand.NewSource(7)))
	if err != nil {
		t.Fatalf("merge: %v", err)
	}

	for _, q := range []float64{0.01, 0.5, 0.99} {
		want, err := whole.Quantile(q)
		if err != nil {
			t.Fatalf("whole.quantile(%v): %v", q, err)
		}
		got, err := merged.Quantile(q)
		if err != nil {
			t.Fatalf("merged.quantile(%v): %v", q, err)
		}
		if math.Abs(want-got) >= 0.2 {
			t.Fatalf("q=%v want=%v got=%v diverge beyond tolerance", q, want, got)
		}
	}
}
