package domain

// Direction is the side a setup is watching for (BUY or SELL).
type Direction string

const (
	Buy  Direction = "BUY"
	Sell Direction = "SELL"
)

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// SignalType identifies one of the four entry signals.
type SignalType string

const (
	SignalBuy1  SignalType = "BUY1"
	SignalBuy2  SignalType = "BUY2"
	SignalSell1 SignalType = "SELL1"
	SignalSell2 SignalType = "SELL2"
)

// AllSignalTypes lists the signal types in reporting order.
var AllSignalTypes = []SignalType{SignalBuy1, SignalBuy2, SignalSell1, SignalSell2}

// Direction returns the side the signal belongs to.
func (t SignalType) Direction() Direction {
	if t == SignalSell1 || t == SignalSell2 {
		return Sell
	}
	return Buy
}

// IsStrong reports whether the signal is a cycle-completing (#2) signal.
func (t SignalType) IsStrong() bool {
	return t == SignalBuy2 || t == SignalSell2
}

// Label returns the human readable form, e.g. "BUY #1".
func (t SignalType) Label() string {
	switch t {
	case SignalBuy1:
		return "BUY #1"
	case SignalBuy2:
		return "BUY #2"
	case SignalSell1:
		return "SELL #1"
	case SignalSell2:
		return "SELL #2"
	default:
		return string(t)
	}
}
