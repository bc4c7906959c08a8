package market

// Direction of a trading signal.
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
	Hold Direction = "HOLD"
)

// Signal is the record produced by an external signal generator. Confidence
// is in [0,1]; ExpectedMovePct is the anticipated move of the underlying in
// percent.
type Signal struct {
	Direction       Direction `json:"direction"`
	Confidence      float64   `json:"confidence"`
	ExpectedMovePct float64   `json:"expected_move_pct"`
	SignalsUsed     []string  `json:"signals_used"`
}

// Actionable reports whether the signal clears the confidence bar and is not
// a HOLD.
func (s Signal) Actionable(minConfidence float64) bool {
	return s.Direction != Hold && s.Direction != "" && s.Confidence >= minConfidence
}
