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

// Centroid is a weighted point summarizing a cluster of observations that
// have been absorbed at (approximately) the same location in the stream.
type Centroid struct {
	// Mean is the weighted mean of the values absorbed by this centroid.
	Mean float64
	// Count is the total weight absorbed by this centroid.
	Count int64
	// ID is a monotonically assigned tiebreaker used only to order two
	// centroids that happen to share the same mean. Probe centroids built
	// by the digest to locate a neighbor always use id 0, which sorts
	// before any real centroid of the same mean.
	ID int64
	// Samples holds the raw values absorbed by this centroid. It is left
	// nil unless the owning digest was configured to record all data;
	// nothing in the digest's accuracy or control flow depends on it.
	Samples []float64
}

// probeCentroid builds a transient, never-retained centroid used to locate
// the neighborhood of a value in the index. Its id of 0 is guaranteed to
// sort before any real centroid (ids for real centroids start at 1).
func probeCentroid(mean float64) Centroid {
	return Centroid{Mean: mean}
}

// less reports whether c sorts strictly before other under the index's
// total order: by Mean ascending, ties broken by ID ascending.
func (c Centroid) less(other Centroid) bool {
	if c.Mean != other.Mean {
		return c.Mean < other.Mean
	}
	return c.ID < other.ID
}

// equal reports whether c and other occupy the same position in the total
// order. Two distinct real centroids never compare equal because ids are
// unique within a digest.
func (c Centroid) equal(other Centroid) bool {
	return c.Mean == other.Mean && c.ID == other.ID
}

// add absorbs a weighted observation into the centroid in place, moving the
// mean towards x in proportion to the new weight and growing the count.
func (c *Centroid) add(x float64, w int64, recordSample bool) {
	c.Mean += (x - c.Mean) * float64(w) / float64(c.Count+w)
	c.Count += w
	if recordSample {
		c.Samples = append(c.Samples, x)
	}
}
