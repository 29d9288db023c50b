package indicator

// MACD calculates Moving Average Convergence Divergence:
//
//	line      = EMA_fast(close) - EMA_slow(close)
//	signal    = EMA_signal(line)
//	histogram = line - signal
//
// The line is undefined until slow closes have accumulated; the signal
// line additionally requires signal more bars of line history. Both EMAs
// are seeded by simple averages, matching the EMA type.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA
}

// NewMACD creates a MACD indicator. Standard parameters are 12/26/9.
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Update(close float64) {
	m.fast.Update(close)
	m.slow.Update(close)

	// The signal EMA consumes MACD line values, so it only advances once
	// the line is defined. Its own seed therefore starts at the first
	// defined line value.
	fast := m.fast.Value()
	slow := m.slow.Value()
	if fast.Ok() && slow.Ok() {
		m.signal.Update(fast.Float() - slow.Float())
	}
}

// Line returns the MACD line, or Undefined before slow closes.
func (m *MACD) Line() Value {
	fast := m.fast.Value()
	slow := m.slow.Value()
	if !fast.Ok() || !slow.Ok() {
		return Undefined()
	}
	return Defined(fast.Float() - slow.Float())
}

// Signal returns the signal line, or Undefined before signal bars of
// line history.
func (m *MACD) Signal() Value {
	return m.signal.Value()
}

// Histogram returns line - signal, or Undefined until both are defined.
func (m *MACD) Histogram() Value {
	line := m.Line()
	sig := m.Signal()
	if !line.Ok() || !sig.Ok() {
		return Undefined()
	}
	return Defined(line.Float() - sig.Float())
}

func (m *MACD) Ready() bool { return m.Histogram().Ok() }
