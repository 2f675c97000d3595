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

import "github.com/m3db/m3x/pool"

// centroidNode is a node of the augmented AVL tree backing orderedIndex.
// Every node carries, in addition to its own centroid, the count and
// weight of its entire subtree so that headCount/headSum can be answered
// in O(log n) by walking root to target rather than scanning in order.
type centroidNode struct {
	c      Centroid
	left   *centroidNode
	right  *centroidNode
	height int
	count  int
	weight int64
}

// orderedIndex is the OrderedCentroidIndex: an order-statistics-augmented
// AVL tree keyed by (mean, id) ascending. Any balanced ordered container
// would satisfy the contract; an AVL tree was chosen because its rotations
// are the simplest to keep the subtree aggregates correct under.
type orderedIndex struct {
	root *centroidNode
	pool pool.ObjectPool
}

func newOrderedIndex(nodePool pool.ObjectPool) *orderedIndex {
	return &orderedIndex{pool: nodePool}
}

func (ix *orderedIndex) acquireNode(c Centroid) *centroidNode {
	n, _ := ix.pool.Get().(*centroidNode)
	if n == nil {
		n = &centroidNode{}
	}
	n.c = c
	n.left, n.right = nil, nil
	n.height, n.count, n.weight = 0, 1, c.Count
	return n
}

func (ix *orderedIndex) releaseNode(n *centroidNode) {
	n.left, n.right = nil, nil
	ix.pool.Put(n)
}

// Size returns the number of centroids currently held by the index.
func (ix *orderedIndex) Size() int {
	return countOf(ix.root)
}

// First returns the smallest centroid in the index, if any.
func (ix *orderedIndex) First() (Centroid, bool) {
	n := ix.root
	if n == nil {
		return Centroid{}, false
	}
	for n.left != nil {
		n = n.left
	}
	return n.c, true
}

// Floor returns the greatest centroid less than or equal to key.
func (ix *orderedIndex) Floor(key Centroid) (Centroid, bool) {
	node := ix.root
	var best *centroidNode
	for node != nil {
		if node.c.less(key) || node.c.equal(key) {
			best = node
			node = node.right
		} else {
			node = node.left
		}
	}
	if best == nil {
		return Centroid{}, false
	}
	return best.c, true
}

// Ceiling returns the least centroid greater than or equal to key.
func (ix *orderedIndex) Ceiling(key Centroid) (Centroid, bool) {
	node := ix.root
	var best *centroidNode
	for node != nil {
		if key.less(node.c) || key.equal(node.c) {
			best = node
			node = node.left
		} else {
			node = node.right
		}
	}
	if best == nil {
		return Centroid{}, false
	}
	return best.c, true
}

// HeadCount returns the number of centroids strictly preceding key in
// the total order.
func (ix *orderedIndex) HeadCount(key Centroid) int {
	node := ix.root
	rank := 0
	for node != nil {
		switch {
		case key.less(node.c):
			node = node.left
		case node.c.less(key):
			rank += countOf(node.left) + 1
			node = node.right
		default:
			rank += countOf(node.left)
			node = nil
		}
	}
	return rank
}

// HeadSum returns the sum of Count over all centroids strictly preceding
// key in the total order.
func (ix *orderedIndex) HeadSum(key Centroid) int64 {
	node := ix.root
	var sum int64
	for node != nil {
		switch {
		case key.less(node.c):
			node = node.left
		case node.c.less(key):
			sum += weightOf(node.left) + node.c.Count
			node = node.right
		default:
			sum += weightOf(node.left)
			node = nil
		}
	}
	return sum
}

// Insert adds a centroid to the index. c.Mean/c.ID must not already be
// present.
func (ix *orderedIndex) Insert(c Centroid) {
	ix.root = ix.insert(ix.root, c)
}

func (ix *orderedIndex) insert(node *centroidNode, c Centroid) *centroidNode {
	if node == nil {
		return ix.acquireNode(c)
	}
	if c.less(node.c) {
		node.left = ix.insert(node.left, c)
	} else {
		node.right = ix.insert(node.right, c)
	}
	return ix.rebalance(node)
}

// Remove deletes the centroid exactly matching c (by mean and id) from the
// index. It reports whether a matching centroid was found.
func (ix *orderedIndex) Remove(c Centroid) bool {
	newRoot, removed := ix.remove(ix.root, c)
	ix.root = newRoot
	return removed
}

func (ix *orderedIndex) remove(node *centroidNode, c Centroid) (*centroidNode, bool) {
	if node == nil {
		return nil, false
	}

	var removed bool
	switch {
	case c.less(node.c):
		node.left, removed = ix.remove(node.left, c)
	case node.c.less(c):
		node.right, removed = ix.remove(node.right, c)
	default:
		removed = true
		switch {
		case node.left == nil:
			successor := node.right
			ix.releaseNode(node)
			return successor, true
		case node.right == nil:
			successor := node.left
			ix.releaseNode(node)
			return successor, true
		default:
			min := node.right
			for min.left != nil {
				min = min.left
			}
			node.c = min.c
			node.right, _ = ix.remove(node.right, min.c)
		}
	}
	if !removed {
		return node, false
	}
	return ix.rebalance(node), true
}

func (ix *orderedIndex) rebalance(node *centroidNode) *centroidNode {
	ix.updateAggregates(node)

	switch balance := heightOf(node.left) - heightOf(node.right); {
	case balance > 1:
		if heightOf(node.left.left)-heightOf(node.left.right) < 0 {
			node.left = ix.rotateLeft(node.left)
		}
		return ix.rotateRight(node)
	case balance < -1:
		if heightOf(node.right.left)-heightOf(node.right.right) > 0 {
			node.right = ix.rotateRight(node.right)
		}
		return ix.rotateLeft(node)
	default:
		return node
	}
}

func (ix *orderedIndex) rotateLeft(node *centroidNode) *centroidNode {
	pivot := node.right
	node.right = pivot.left
	pivot.left = node
	ix.updateAggregates(node)
	ix.updateAggregates(pivot)
	return pivot
}

func (ix *orderedIndex) rotateRight(node *centroidNode) *centroidNode {
	pivot := node.left
	node.left = pivot.right
	pivot.right = node
	ix.updateAggregates(node)
	ix.updateAggregates(pivot)
	return pivot
}

func (ix *orderedIndex) updateAggregates(node *centroidNode) {
	node.height = 1 + maxInt(heightOf(node.left), heightOf(node.right))
	node.count = 1 + countOf(node.left) + countOf(node.right)
	node.weight = node.c.Count + weightOf(node.left) + weightOf(node.right)
}

func heightOf(n *centroidNode) int {
	if n == nil {
		return -1
	}
	return n.height
}

func countOf(n *centroidNode) int {
	if n == nil {
		return 0
	}
	return n.count
}

func weightOf(n *centroidNode) int64 {
	if n == nil {
		return 0
	}
	return n.weight
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// CentroidIterator walks an orderedIndex's centroids in ascending order.
// It borrows the underlying tree and must not outlive the index's next
// mutating call.
type CentroidIterator struct {
	stack []*centroidNode
}

func (it *CentroidIterator) pushLeftSpine(n *centroidNode) {
	for n != nil {
		it.stack = append(it.stack, n)
		n = n.left
	}
}

// Next returns the next centroid in ascending order, or ok=false once the
// iterator is exhausted.
func (it *CentroidIterator) Next() (Centroid, bool) {
	if len(it.stack) == 0 {
		return Centroid{}, false
	}
	n := it.stack[len(it.stack)-1]
	it.stack = it.stack[:len(it.stack)-1]
	it.pushLeftSpine(n.right)
	return n.c, true
}

// Iterator returns an iterator over every centroid in the index, in order.
func (ix *orderedIndex) Iterator() *CentroidIterator {
	it := &CentroidIterator{}
	it.pushLeftSpine(ix.root)
	return it
}

// TailFrom returns an iterator beginning at the least centroid greater
// than or equal to key (key is normally a centroid already present in the
// index, typically the result of Floor/Ceiling).
func (ix *orderedIndex) TailFrom(key Centroid) *CentroidIterator {
	it := &CentroidIterator{}
	node := ix.root
	for node != nil {
		switch {
		case key.less(node.c):
			it.stack = append(it.stack, node)
			node = node.left
		case node.c.less(key):
			node = node.right
		default:
			it.stack = append(it.stack, node)
			node = nil
		}
	}
	return it
}
