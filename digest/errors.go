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

import "errors"

var (
	// ErrInvalidInput is returned for non-finite values, non-positive
	// weights, compressions, or out-of-range quantile requests.
	ErrInvalidInput = errors.New("digest: invalid input")

	// ErrOverflow is returned when a count cannot be represented by the
	// compact codec's 5-byte varint ceiling, in either direction.
	ErrOverflow = errors.New("digest: varint overflow")

	// ErrUnknownFormat is returned when a decoded stream's leading tag is
	// neither the verbose nor the compact encoding.
	ErrUnknownFormat = errors.New("digest: unknown wire format")

	// ErrTruncated is returned when a decoded stream ends before the
	// declared number of centroids has been consumed.
	ErrTruncated = errors.New("digest: truncated stream")

	errOrderViolation  = errors.New("digest: index order invariant violated")
	errAggregateDrift  = errors.New("digest: index aggregate invariant violated")
	errUnbalanced      = errors.New("digest: index balance invariant violated")
)
