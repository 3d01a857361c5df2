// Package hist provides a fixed-capacity FIFO of strings, used to keep the
// most recent pages a client has requested. Insertion order only, duplicates
// allowed; once full, every push evicts the oldest entry.
package hist

// History is not safe for concurrent use on its own. Instances are owned by
// a single metric record and mutated under the tracker's lock. Fields are
// exported so records round-trip through the JSON snapshot.
type History struct {
	Cap   int      `json:"cap"`
	Items []string `json:"items"`
}

func New(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{Cap: capacity}
}

// Push appends item, evicting the oldest entry when over capacity.
func (h *History) Push(item string) {
	h.Items = append(h.Items, item)
	if len(h.Items) > h.Cap {
		// shift rather than re-slice so the backing array doesn't pin
		// evicted strings
		copy(h.Items, h.Items[1:])
		h.Items = h.Items[:h.Cap]
	}
}

// Get returns the i-th oldest surviving entry.
func (h *History) Get(i int) (string, bool) {
	if i < 0 || i >= len(h.Items) {
		return "", false
	}
	return h.Items[i], true
}

func (h *History) Len() int {
	return len(h.Items)
}

// Clone copies the history so snapshots can serialize it outside the
// tracker's lock.
func (h *History) Clone() *History {
	if h == nil {
		return nil
	}
	out := &History{Cap: h.Cap}
	if h.Items != nil {
		out.Items = append([]string(nil), h.Items...)
	}
	return out
}
