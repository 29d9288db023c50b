package indicator

// RSI calculates the Relative Strength Index using Wilder's smoothing.
// The first period deltas seed simple averages of gain and loss; after
// that avgGain/avgLoss are smoothed with factor 1/period. Update is O(1)
// per bar with no history scans.
type RSI struct {
	period    int
	count     int
	prevClose float64
	avgGain   float64
	avgLoss   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{period: period}
}

func (r *RSI) Name() string { return "RSI" }

func (r *RSI) Update(close float64) {
	r.count++

	if r.count == 1 {
		// First bar just records the close, no delta yet
		r.prevClose = close
		return
	}

	delta := close - r.prevClose
	r.prevClose = close

	gain := 0.0
	loss := 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	if r.count <= r.period+1 {
		// Accumulation phase: build initial averages
		r.avgGain += gain
		r.avgLoss += loss
		if r.count == r.period+1 {
			r.avgGain /= float64(r.period)
			r.avgLoss /= float64(r.period)
		}
		return
	}

	// Wilder's smoothing: avg = (prevAvg*(period-1) + x) / period
	p := float64(r.period)
	r.avgGain = (r.avgGain*(p-1) + gain) / p
	r.avgLoss = (r.avgLoss*(p-1) + loss) / p
}

// Value returns RSI in [0, 100], or Undefined before period deltas have
// accumulated. Saturates at 100 when the trailing average loss is zero
// rather than dividing by zero.
func (r *RSI) Value() Value {
	if r.count <= r.period {
		return Undefined()
	}
	if r.avgLoss == 0 {
		return Defined(100.0)
	}
	rs := r.avgGain / r.avgLoss
	return Defined(100.0 - (100.0 / (1.0 + rs)))
}

func (r *RSI) Ready() bool { return r.count > r.period }
