package wake

// ring keeps the most recent frames. Frames are copied in.
type ring struct {
	frames [][]int16
	next   int
	full   bool
}

func newRing(capacity, frameLength int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	r := &ring{frames: make([][]int16, capacity)}
	for i := range r.frames {
		r.frames[i] = make([]int16, frameLength)
	}
	return r
}

func (r *ring) push(frame []int16) {
	copy(r.frames[r.next], frame)
	r.next++
	if r.next == len(r.frames) {
		r.next = 0
		r.full = true
	}
}

func (r *ring) len() int {
	if r.full {
		return len(r.frames)
	}
	return r.next
}

// samples returns the stored frames oldest first as one buffer.
func (r *ring) samples() []int16 {
	n := r.len()
	if n == 0 {
		return nil
	}
	out := make([]int16, 0, n*len(r.frames[0]))
	start := 0
	if r.full {
		start = r.next
	}
	for i := 0; i < n; i++ {
		out = append(out, r.frames[(start+i)%len(r.frames)]...)
	}
	return out
}

func (r *ring) reset() {
	r.next = 0
	r.full = false
}
