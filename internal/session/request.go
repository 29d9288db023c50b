package session

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"signal-enginev1/internal/model"
)

// validate is shared across sessions; validator.Validate is safe for
// concurrent use.
var validate = validator.New()

// Request holds the parameters of a streaming subscription.
type Request struct {
	Symbols   []string        `json:"symbols" validate:"required,min=1,max=16,dive,required,min=2,max=20,alphanum"`
	Timeframe model.Timeframe `json:"timeframe" validate:"required"`
	NumBars   int             `json:"num_bars" validate:"gte=1,lte=1000"`
}

// ValidationError reports invalid subscription parameters. It aborts the
// session at INIT, before any data is emitted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid subscription: " + e.Reason }

// ParseRequest builds a Request from raw query-style parameters. symbols is
// a comma-separated list; numBars <= 0 selects the default.
func ParseRequest(symbols, timeframe string, numBars, defaultNumBars int) (Request, error) {
	var req Request
	for _, s := range strings.Split(symbols, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			req.Symbols = append(req.Symbols, strings.ToUpper(s))
		}
	}
	if numBars <= 0 {
		numBars = defaultNumBars
	}
	req.NumBars = numBars

	tf, ok := model.ParseTimeframe(strings.ToUpper(strings.TrimSpace(timeframe)))
	if !ok {
		return req, &ValidationError{Reason: fmt.Sprintf("unknown timeframe %q", timeframe)}
	}
	req.Timeframe = tf

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

// Validate checks the request shape. Timeframe membership is re-checked
// here so directly constructed requests get the same guarantees.
func (r Request) Validate() error {
	if !r.Timeframe.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown timeframe %q", r.Timeframe)}
	}
	if err := validate.Struct(r); err != nil {
		return &ValidationError{Reason: err.Error()}
	}
	return nil
}
