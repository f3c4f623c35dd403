package formulas

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/vmihailenco/msgpack/v5"
)

// MeasureState describes how a Measure was obtained
type MeasureState string

const (
	// StateMeasured is a value computed from non-degenerate inputs
	StateMeasured MeasureState = "measured"
	// StateNeutral is the "no deviation known yet" default (e.g. CPI with BCWP=ACWP=0)
	StateNeutral MeasureState = "neutral"
	// StateUndefinedFavorable marks a ratio whose denominator is zero while the numerator is positive.
	// It is never used in arithmetic.
	StateUndefinedFavorable MeasureState = "undefined_favorable"
	// StateUnbounded marks a requirement that can no longer be met (TCPI with no budget left)
	StateUnbounded MeasureState = "unbounded"
	// StateUndefined marks a value that cannot be computed (EAC when CPI is zero or undefined)
	StateUndefined MeasureState = "undefined"
)

// NotAvailable is the display text for measures without a usable value
const NotAvailable = "N/A"

// Measure is a number that can be absent for a documented reason.
// Value is only meaningful when Defined() is true; it is zero otherwise.
type Measure struct {
	Value float64
	State MeasureState
}

// Measured wraps a computed value
func Measured(v float64) Measure {
	return Measure{Value: v, State: StateMeasured}
}

// Neutral returns the neutral 1.0 index
func Neutral() Measure {
	return Measure{Value: 1.0, State: StateNeutral}
}

// Undefined returns a measure without a value in the given state
func Undefined(state MeasureState) Measure {
	return Measure{State: state}
}

// Defined reports whether Value can be used in arithmetic
func (m Measure) Defined() bool {
	return m.State == StateMeasured || m.State == StateNeutral
}

// Or returns Value when defined, otherwise fallback
func (m Measure) Or(fallback float64) float64 {
	if m.Defined() {
		return m.Value
	}
	return fallback
}

// Ptr returns a pointer to Value when defined, nil otherwise
func (m Measure) Ptr() *float64 {
	if !m.Defined() {
		return nil
	}
	v := m.Value
	return &v
}

// String formats the measure for display
func (m Measure) String() string {
	if !m.Defined() {
		return NotAvailable
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}

// MarshalJSON encodes defined measures as numbers and everything else as null
func (m Measure) MarshalJSON() ([]byte, error) {
	if !m.Defined() || !finite(m.Value) {
		return []byte("null"), nil
	}
	return json.Marshal(m.Value)
}

// UnmarshalJSON decodes numbers as measured values and null as undefined.
// JSON carries no state, so a neutral index comes back measured and every
// other undefined state comes back as StateUndefined. Use msgpack to keep states.
func (m *Measure) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Undefined(StateUndefined)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("failed to decode measure: %w", err)
	}
	*m = Measured(v)
	return nil
}

// EncodeMsgpack writes a float for finite measured values and nil for StateUndefined.
// Any other state is written as a [state, value] pair.
func (m Measure) EncodeMsgpack(enc *msgpack.Encoder) error {
	switch {
	case m.State == StateMeasured && finite(m.Value):
		return enc.EncodeFloat64(m.Value)
	case m.State == StateMeasured, m.State == StateUndefined, m.State == "":
		return enc.EncodeNil()
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeString(string(m.State)); err != nil {
		return err
	}
	value := m.Value
	if !finite(value) {
		value = 0
	}
	return enc.EncodeFloat64(value)
}

// DecodeMsgpack reads what EncodeMsgpack writes
func (m *Measure) DecodeMsgpack(dec *msgpack.Decoder) error {
	v, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return fmt.Errorf("failed to decode measure: %w", err)
	}
	switch n := v.(type) {
	case nil:
		*m = Undefined(StateUndefined)
	case []interface{}:
		if len(n) != 2 {
			return fmt.Errorf("failed to decode measure: want [state, value], got %d elements", len(n))
		}
		state, ok := n[0].(string)
		if !ok {
			return fmt.Errorf("failed to decode measure: unexpected state %T", n[0])
		}
		value, ok := number(n[1])
		if !ok {
			return fmt.Errorf("failed to decode measure: unexpected value %T", n[1])
		}
		*m = Measure{Value: value, State: MeasureState(state)}
	default:
		value, ok := number(v)
		if !ok {
			return fmt.Errorf("failed to decode measure: unexpected %T", v)
		}
		*m = Measured(value)
	}
	return nil
}

func number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
