package indicator

// EMA calculates Exponential Moving Average with smoothing factor
// k = 2/(period+1). The first period values seed a simple average,
// after which each update is O(1) with no window storage.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(close float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += close
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA = close*k + prev*(1-k)
	e.current = (close * e.multiplier) + (e.current * (1 - e.multiplier))
}

// Value returns the current EMA, or Undefined before the seed completes.
func (e *EMA) Value() Value {
	if e.count < e.period {
		return Undefined()
	}
	return Defined(e.current)
}

func (e *EMA) Ready() bool { return e.count >= e.period }
