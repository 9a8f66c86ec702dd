package mser

import "github.com/unidesigner/sopnet/internal/models"

// PixelList links pixels into disjoint doubly-linked chains, one chain per
// region in progress. Prev and Next are mutual inverses for every linked
// pair.
type PixelList struct {
	Prev []int
	Next []int
}

// NewPixelList allocates links for size pixels, all unlinked.
func NewPixelList(size int) *PixelList {
	l := &PixelList{}
	l.Resize(size)
	return l
}

// Resize changes the number of pixels. Existing links are kept; new pixels
// start unlinked.
func (l *PixelList) Resize(size int) {
	l.Prev = resizeLinks(l.Prev, size)
	l.Next = resizeLinks(l.Next, size)
}

func resizeLinks(links []int, size int) []int {
	if size <= len(links) {
		return links[:size]
	}
	grown := make([]int, size)
	n := copy(grown, links)
	for i := n; i < size; i++ {
		grown[i] = models.None
	}
	return grown
}

// Reset unlinks every pixel.
func (l *PixelList) Reset() {
	for i := range l.Prev {
		l.Prev[i] = models.None
		l.Next[i] = models.None
	}
}

// Len returns the number of pixels.
func (l *PixelList) Len() int {
	return len(l.Prev)
}

// Splice appends the chain starting at b to the chain ending at a. Callers
// must pass true chain endpoints; nothing is traversed.
func (l *PixelList) Splice(a, b int) {
	l.Next[a] = b
	l.Prev[b] = a
}

// Chain collects the pixels from head to tail, inclusive.
func (l *PixelList) Chain(head, tail int) []int {
	if head == models.None {
		return nil
	}
	var out []int
	for i := head; ; i = l.Next[i] {
		out = append(out, i)
		if i == tail || l.Next[i] == models.None {
			break
		}
	}
	return out
}
