package indicator

// SMA calculates Simple Moving Average over a rolling window of closes.
// Uses a preallocated circular buffer for a zero-allocation hot path:
// each update subtracts the evicted close from the running sum instead
// of re-summing the window.
type SMA struct {
	period int
	buf    []float64 // preallocated circular buffer
	idx    int       // current write position
	count  int       // total values received
	sum    float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(close float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = close
	s.sum += close
	s.idx = (s.idx + 1) % s.period
	s.count++
}

// Value returns the current SMA, or Undefined before period closes
// have accumulated.
func (s *SMA) Value() Value {
	if s.count < s.period {
		return Undefined()
	}
	return Defined(s.sum / float64(s.period))
}

func (s *SMA) Ready() bool { return s.count >= s.period }
