package store

import (
	"fmt"
	"iter"

	"github.com/jacentio/strata/model"
)

// Result is one page of query matches plus the number of matches overall.
type Result struct {
	items []*model.Instance
	total int
}

// Len returns the number of instances on this page.
func (r *Result) Len() int { return len(r.items) }

// Total returns the number of matches before offset and limit were applied.
func (r *Result) Total() int { return r.total }

// At returns the i-th instance of the page.
func (r *Result) At(i int) *model.Instance { return r.items[i] }

// Items returns the page as a slice. The slice is a copy.
func (r *Result) Items() []*model.Instance {
	return append([]*model.Instance(nil), r.items...)
}

// All iterates the page in order.
func (r *Result) All() iter.Seq2[int, *model.Instance] {
	return func(yield func(int, *model.Instance) bool) {
		for i, inst := range r.items {
			if !yield(i, inst) {
				return
			}
		}
	}
}

func (r *Result) String() string {
	return fmt.Sprintf("result (%d of %d)", len(r.items), r.total)
}
