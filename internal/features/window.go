package features

import (
	"math"
	"time"
)

type sample struct {
	timeDiff *float64
	amount   float64
	ts       time.Time
}

// window is a fixed-capacity ring of the most recent samples for one user.
type window struct {
	buf    [WindowSize]sample
	start  int
	n      int
	lastTS time.Time
}

func (w *window) reset() {
	w.start, w.n = 0, 0
	w.lastTS = time.Time{}
}

func (w *window) len() int { return w.n }

func (w *window) push(s sample) {
	if w.n < WindowSize {
		w.buf[(w.start+w.n)%WindowSize] = s
		w.n++
	} else {
		w.buf[w.start] = s
		w.start = (w.start + 1) % WindowSize
	}
	w.lastTS = s.ts
}

func (w *window) at(i int) sample { return w.buf[(w.start+i)%WindowSize] }

// meanTimeDiff averages the defined time diffs; ok is false when none are defined.
func (w *window) meanTimeDiff() (float64, bool) {
	var sum float64
	var n int
	for i := 0; i < w.n; i++ {
		if d := w.at(i).timeDiff; d != nil {
			sum += *d
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// amountStdDev is the sample standard deviation (n-1), or 0 below two samples.
func (w *window) amountStdDev() float64 {
	if w.n < 2 {
		return 0
	}
	var sum float64
	for i := 0; i < w.n; i++ {
		sum += w.at(i).amount
	}
	mean := sum / float64(w.n)
	var ss float64
	for i := 0; i < w.n; i++ {
		d := w.at(i).amount - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(w.n-1))
}
