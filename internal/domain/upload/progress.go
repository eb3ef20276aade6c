package upload

import "sync"

// Snapshot is an aggregate view across every asset of a submission.
type Snapshot struct {
	Completed    int
	Total        int
	BytesWritten int64
	BytesTotal   int64
}

// Fraction is the share of bytes written, or of assets completed when sizes
// are unknown.
func (s Snapshot) Fraction() float64 {
	if s.BytesTotal > 0 {
		f := float64(s.BytesWritten) / float64(s.BytesTotal)
		if f > 1 {
			return 1
		}
		return f
	}
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total)
}

// Progress aggregates per-asset progress. It is safe for concurrent use by
// the upload goroutines of one submission.
type Progress struct {
	mu        sync.Mutex
	sizes     []int64
	written   []int64
	done      []bool
	completed int
	notify    func(Snapshot)
}

// NewProgress tracks len(sizes) assets. notify, if set, is called after
// every change with the lock released.
func NewProgress(sizes []int64, notify func(Snapshot)) *Progress {
	return &Progress{
		sizes:   append([]int64(nil), sizes...),
		written: make([]int64, len(sizes)),
		done:    make([]bool, len(sizes)),
		notify:  notify,
	}
}

// Track returns the ProgressFunc for asset i.
func (p *Progress) Track(i int) ProgressFunc {
	return func(written, _ int64) {
		p.mu.Lock()
		p.written[i] = written
		s := p.snapshotLocked()
		p.mu.Unlock()
		p.emit(s)
	}
}

// Complete marks asset i finished.
func (p *Progress) Complete(i int) {
	p.mu.Lock()
	if p.done[i] {
		p.mu.Unlock()
		return
	}
	p.done[i] = true
	p.completed++
	if p.sizes[i] > 0 {
		p.written[i] = p.sizes[i]
	}
	s := p.snapshotLocked()
	p.mu.Unlock()
	p.emit(s)
}

// Snapshot returns the current aggregate.
func (p *Progress) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Progress) snapshotLocked() Snapshot {
	s := Snapshot{Completed: p.completed, Total: len(p.sizes)}
	for i := range p.sizes {
		s.BytesTotal += p.sizes[i]
		s.BytesWritten += p.written[i]
	}
	return s
}

func (p *Progress) emit(s Snapshot) {
	if p.notify != nil {
		p.notify(s)
	}
}
