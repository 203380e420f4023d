package dashboard

import "time"

// DefaultHistorySize is the number of points kept per location
const DefaultHistorySize = 10

// Point is one history entry: the reading time and its humidity
type Point struct {
	Timestamp time.Time
	Value     float64
}

// History is a bounded FIFO of points. Once full, each Push evicts the
// oldest point. The zero value is not usable; call NewHistory.
type History struct {
	points []Point
	start  int
	size   int
}

// NewHistory returns an empty history holding at most capacity points.
// A capacity below 1 falls back to DefaultHistorySize.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistorySize
	}
	return &History{points: make([]Point, capacity)}
}

// Push appends p, evicting the oldest point when the history is full
func (h *History) Push(p Point) {
	capacity := len(h.points)
	if h.size < capacity {
		h.points[(h.start+h.size)%capacity] = p
		h.size++
		return
	}
	h.points[h.start] = p
	h.start = (h.start + 1) % capacity
}

// Points returns a copy ordered oldest to newest
func (h *History) Points() []Point {
	out := make([]Point, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.points[(h.start+i)%len(h.points)]
	}
	return out
}

// Values returns the humidity values ordered oldest to newest
func (h *History) Values() []float64 {
	return pointValues(h.Points())
}

func (h *History) Len() int { return h.size }

func (h *History) Cap() int { return len(h.points) }

func pointValues(points []Point) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
