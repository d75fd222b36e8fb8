package indicators

// CrossDirection selects which way a crossover is detected.
type CrossDirection int

const (
	CrossUp CrossDirection = iota
	CrossDown
)

// String returns "up" or "down".
func (d CrossDirection) String() string {
	if d == CrossDown {
		return "down"
	}
	return "up"
}

// Opposite returns the other direction.
func (d CrossDirection) Opposite() CrossDirection {
	if d == CrossDown {
		return CrossUp
	}
	return CrossDown
}

// CrossedDown reports whether a moved from at-or-above b to strictly below it.
func CrossedDown(prevA, prevB, curA, curB float64) bool {
	return prevA >= prevB && curA < curB
}

// CrossedUp reports whether a moved from at-or-below b to strictly above it.
func CrossedUp(prevA, prevB, curA, curB float64) bool {
	return prevA <= prevB && curA > curB
}

// Crossed applies CrossedUp or CrossedDown depending on dir.
func Crossed(dir CrossDirection, prevA, prevB, curA, curB float64) bool {
	if dir == CrossDown {
		return CrossedDown(prevA, prevB, curA, curB)
	}
	return CrossedUp(prevA, prevB, curA, curB)
}
