package processor

// History is a bounded FIFO of recent values. When full, pushing evicts the
// oldest entry. The backing array is reused so steady-state pushes do not
// allocate, which keeps it safe for the capture callback.
type History struct {
	values   []float64
	capacity int
}

// NewHistory creates a History holding at most capacity values (minimum 1).
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{
		values:   make([]float64, 0, capacity),
		capacity: capacity,
	}
}

// SetCapacity changes the bound, dropping the oldest values if the history
// is now over capacity.
func (h *History) SetCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == h.capacity {
		return
	}
	if over := len(h.values) - capacity; over > 0 {
		h.values = append(h.values[:0], h.values[over:]...)
	}
	if capacity > cap(h.values) {
		grown := make([]float64, len(h.values), capacity)
		copy(grown, h.values)
		h.values = grown
	}
	h.capacity = capacity
}

// Push appends v, evicting the oldest value on overflow.
func (h *History) Push(v float64) {
	if len(h.values) < h.capacity {
		h.values = append(h.values, v)
		return
	}
	copy(h.values, h.values[1:])
	h.values[len(h.values)-1] = v
}

// Mean returns the arithmetic mean, or 0 when empty.
func (h *History) Mean() float64 {
	if len(h.values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range h.values {
		sum += v
	}
	return sum / float64(len(h.values))
}

// Len returns the number of stored values.
func (h *History) Len() int { return len(h.values) }

// Cap returns the current bound.
func (h *History) Cap() int { return h.capacity }

// Values returns a copy of the stored values, oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, len(h.values))
	copy(out, h.values)
	return out
}
