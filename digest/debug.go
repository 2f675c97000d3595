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

import "go.uber.org/zap"

// assertIndexInvariants walks the whole tree and recomputes every node's
// augmented count/weight/height from scratch, panicking if the cached
// aggregates have drifted from what the subtree actually contains. It is
// only ever invoked when Options.DebugAssertions is set, so it is never on
// the hot path of a production build.
func assertIndexInvariants(logger *zap.Logger, ix *orderedIndex) {
	if _, _, _, err := checkNode(ix.root); err != nil {
		logger.Error("digest: index invariant violated", zap.Error(err))
		panic(err)
	}
}

func checkNode(n *centroidNode) (count int, weight int64, height int, err error) {
	if n == nil {
		return 0, 0, -1, nil
	}

	lc, lw, lh, err := checkNode(n.left)
	if err != nil {
		return 0, 0, 0, err
	}
	rc, rw, rh, err := checkNode(n.right)
	if err != nil {
		return 0, 0, 0, err
	}

	if n.left != nil && !n.left.c.less(n.c) {
		return 0, 0, 0, errOrderViolation
	}
	if n.right != nil && !n.c.less(n.right.c) {
		return 0, 0, 0, errOrderViolation
	}

	wantCount := 1 + lc + rc
	wantWeight := n.c.Count + lw + rw
	wantHeight := 1 + maxInt(lh, rh)

	if n.count != wantCount || n.weight != wantWeight || n.height != wantHeight {
		return 0, 0, 0, errAggregateDrift
	}
	if balance := lh - rh; balance > 1 || balance < -1 {
		return 0, 0, 0, errUnbalanced
	}

	return wantCount, wantWeight, wantHeight, nil
}
