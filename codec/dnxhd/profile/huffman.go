package profile

import (
	"container/heap"
	"sort"
)

// huffNode is a node in the Huffman merge tree; leaf nodes carry a symbol
// index >= 0, internal nodes carry -1.
type huffNode struct {
	weight      int
	symbol      int
	left, right *huffNode
}

type nodeHeap []*huffNode

func (h nodeHeap) Len() int            { return len(h) }
func (h nodeHeap) Less(i, j int) bool  { return h[i].weight < h[j].weight }
func (h nodeHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap) Push(x interface{}) { *h = append(*h, x.(*huffNode)) }
func (h *nodeHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// huffmanLengths builds a Huffman tree over weights (one per symbol, in
// symbol-index order) and returns the resulting codeword length per
// symbol. The lengths are not bounded here; limitLengths caps them to the
// table's declared max length, and canonicalCodes panics on any longer
// length rather than silently producing an invalid table.
func huffmanLengths(weights []int) []int {
	n := len(weights)
	lengths := make([]int, n)
	if n == 1 {
		lengths[0] = 1
		return lengths
	}

	h := make(nodeHeap, n)
	for i, w := range weights {
		h[i] = &huffNode{weight: w, symbol: i}
	}
	heap.Init(&h)

	for h.Len() > 1 {
		a := heap.Pop(&h).(*huffNode)
		b := heap.Pop(&h).(*huffNode)
		heap.Push(&h, &huffNode{weight: a.weight + b.weight, symbol: -1, left: a, right: b})
	}

	root := heap.Pop(&h).(*huffNode)
	var walk func(n *huffNode, depth int)
	walk = func(n *huffNode, depth int) {
		if n.left == nil && n.right == nil {
			if depth == 0 {
				depth = 1
			}
			lengths[n.symbol] = depth
			return
		}
		walk(n.left, depth+1)
		walk(n.right, depth+1)
	}
	walk(root, 0)
	return lengths
}

// limitLengths caps Huffman codeword lengths at maxLen and repairs the
// Kraft inequality afterwards: clamping overlong codes can leave the
// tree overfull, so the longest remaining sub-max codes are lengthened
// (cheapest in weighted cost) until the length set is a valid prefix
// code again. Requires len(lengths) <= 1<<maxLen.
func limitLengths(lengths []int, maxLen int) []int {
	out := make([]int, len(lengths))
	kraft := 0
	for i, l := range lengths {
		if l > maxLen {
			l = maxLen
		}
		out[i] = l
		kraft += 1 << uint(maxLen-l)
	}
	for kraft > 1<<uint(maxLen) {
		// Lengthen the longest code still below maxLen.
		best := -1
		for i, l := range out {
			if l < maxLen && (best < 0 || l > out[best]) {
				best = i
			}
		}
		if best < 0 {
			panic("profile: cannot satisfy kraft inequality at this max length")
		}
		kraft -= 1 << uint(maxLen-out[best]-1)
		out[best]++
	}
	return out
}

// limitedHuffmanLengths is huffmanLengths followed by limitLengths,
// yielding codeword lengths that always fit the table's declared max.
func limitedHuffmanLengths(weights []int, maxLen int) []int {
	return limitLengths(huffmanLengths(weights), maxLen)
}

// code is a (codeword, bit length) pair.
type code struct {
	bits uint16
	len  uint8
}

// canonicalCodes assigns a canonical prefix code from a set of codeword
// lengths: symbols are ordered by (length, symbol index) and codewords
// are assigned the smallest available value consistent with that order,
// the standard construction that guarantees a valid prefix code for any
// length assignment satisfying Kraft's inequality.
func canonicalCodes(lengths []int, maxLen int) []code {
	n := len(lengths)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(i, j int) bool {
		if lengths[order[i]] != lengths[order[j]] {
			return lengths[order[i]] < lengths[order[j]]
		}
		return order[i] < order[j]
	})

	codes := make([]code, n)
	var c uint32
	prevLen := 0
	for _, sym := range order {
		l := lengths[sym]
		if l > maxLen {
			panic("profile: huffman codeword length exceeds table max length")
		}
		if prevLen != 0 {
			c <<= uint(l - prevLen)
		}
		codes[sym] = code{bits: uint16(c), len: uint8(l)}
		c++
		prevLen = l
	}
	return codes
}
