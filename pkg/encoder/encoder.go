// Package encoder re-encodes images to a lossy format, lowering quality
// step by step until the output fits a byte budget.
package encoder

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrUnencodable is returned when the first, best-quality encode attempt
// produces no bytes.
var ErrUnencodable = errors.New("image could not be encoded")

const (
	// DefaultMaxBytes is the export cap of the photo library target.
	DefaultMaxBytes = 30 * 1024 * 1024
	// DefaultStep is the quality decrement between attempts.
	DefaultStep = 0.1
)

// State is the terminal state of an encode run.
type State int

const (
	Encoding State = iota
	Success
	ExhaustedStillOverBudget
	HardFailure
)

func (s State) String() string {
	switch s {
	case Encoding:
		return "encoding"
	case Success:
		return "success"
	case ExhaustedStillOverBudget:
		return "exhausted-still-over-budget"
	case HardFailure:
		return "hard-failure"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Budget bounds the encoded size.
type Budget struct {
	MaxBytes int
	// Step is the quality decrement in (0, 1]; zero means DefaultStep.
	Step float64
}

// DefaultBudget returns the 30 MiB / 0.1 budget.
func DefaultBudget() Budget {
	return Budget{MaxBytes: DefaultMaxBytes, Step: DefaultStep}
}

// Attempt records one encode call.
type Attempt struct {
	Quality float64
	Size    int
}

// Result is the outcome of Encoder.Encode.
type Result struct {
	// Data holds the last successfully encoded bytes. It may exceed the
	// budget when State is ExhaustedStillOverBudget.
	Data    []byte
	Quality float64
	State   State
	Format  Format
	Trace   []Attempt
}

// WithinBudget reports whether Data satisfies the budget.
func (r Result) WithinBudget() bool {
	return r.State == Success
}

// Encoder runs the quality ladder for one format.
type Encoder struct {
	format Format
}

// New creates a JPEG encoder
func New() *Encoder {
	return &Encoder{format: JPEG}
}

// NewWithFormat creates an encoder for a custom format
func NewWithFormat(format Format) *Encoder {
	if format == nil {
		format = JPEG
	}
	return &Encoder{format: format}
}

// Format returns the encoder's output format
func (e *Encoder) Format() Format {
	return e.format
}

// EncodeWithinBudget encodes img as JPEG, lowering quality from 1.0 in
// steps of 0.1 until the output is at most maxBytes. The returned bytes are
// best effort: if quality reaches 0 and the output is still too large, the
// last encoding is returned without error. ErrUnencodable is returned only
// when the first attempt fails.
func EncodeWithinBudget(img image.Image, maxBytes int) ([]byte, error) {
	res, err := New().Encode(img, Budget{MaxBytes: maxBytes, Step: DefaultStep})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

// Encode runs the quality ladder against budget.
func (e *Encoder) Encode(img image.Image, budget Budget) (Result, error) {
	// Quality is tracked in hundredths so repeated steps do not drift.
	step := int(math.Round(budget.Step * 100))
	if budget.Step <= 0 || step < 1 {
		step = int(DefaultStep * 100)
	}
	level := 100

	res := Result{Format: e.format, State: Encoding}

	data, err := e.format.Encode(img, 1.0)
	if err == nil && len(data) == 0 {
		err = errors.New("encoder produced no bytes")
	}
	if err != nil {
		res.State = HardFailure
		return res, fmt.Errorf("%w: %v", ErrUnencodable, err)
	}
	res.Trace = append(res.Trace, Attempt{Quality: 1.0, Size: len(data)})

	for len(data) > budget.MaxBytes && level > 0 {
		level -= step
		if level < 0 {
			level = 0
		}
		q := float64(level) / 100

		next, err := e.format.Encode(img, q)
		if err != nil || len(next) == 0 {
			break
		}
		data = next
		res.Trace = append(res.Trace, Attempt{Quality: q, Size: len(next)})
	}

	res.Data = data
	res.Quality = res.Trace[len(res.Trace)-1].Quality
	if len(data) <= budget.MaxBytes {
		res.State = Success
	} else {
		res.State = ExhaustedStillOverBudget
	}
	return res, nil
}
