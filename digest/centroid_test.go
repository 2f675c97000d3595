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
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCentroidOrdering(t *testing.T) {
	a := Centroid{Mean: 1, ID: 1}
	b := Centroid{Mean: 1, ID: 2}
	c := Centroid{Mean: 2, ID: 1}

	require.True(t, a.less(b))
	require.False(t, b.less(a))
	require.True(t, a.less(c))
	require.True(t, b.less(c))
}

func TestProbeCentroidSortsBeforeEqualMean(t *testing.T) {
	probe := probeCentroid(5)
	real := Centroid{Mean: 5, ID: 1}
	require.True(t, probe.less(real))
	require.False(t, real.less(probe))
}

func TestCentroidAddUpdatesWeightedMean(t *testing.T) {
	c := Centroid{Mean: 0, Count: 1, ID: 1}
	c.add(10, 1, false)
	require.Equal(t, float64(5), c.Mean)
	require.Equal(t, int64(2), c.Count)
	require.Nil(t, c.Samples)

	c.add(10, 1, true)
	require.Equal(t, []float64{10}, c.Samples)
}
