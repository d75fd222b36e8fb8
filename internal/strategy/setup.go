package strategy

import (
	"rsiTrendBot/internal/domain"
	"rsiTrendBot/internal/strategy/indicators"
)

// maxEntry1 caps the number of #1 signals per setup cycle.
const maxEntry1 = 2

// SetupState is the progress of one direction through the four-step setup.
// StepN is only ever set while Step(N-1) is already set; all fields return to
// their zero value when the cycle completes or is invalidated.
type SetupState struct {
	Step1       bool // RSI touched the starting extreme
	Step2       bool // RSI crossed EMA
	Step3       bool // RSI crossed WMA
	Step4       bool // EMA crossed WMA, setup ready
	CrossCount  int  // RSI/EMA crosses back in the entry direction since ready
	Entry1Count int  // #1 signals emitted this cycle, at most 2
}

// Ready reports whether all four steps are complete.
func (s SetupState) Ready() bool {
	return s.Step4
}

// IsInitial reports whether the state is at the start of a cycle.
func (s SetupState) IsInitial() bool {
	return s == SetupState{}
}

// setupRules describes one direction of the setup.
type setupRules struct {
	direction domain.Direction
	// setupCross is the crossover direction of steps 2 to 4; entries use the opposite.
	setupCross indicators.CrossDirection
	// touched reports whether rsi reached the extreme that starts a cycle.
	touched func(rsi float64) bool
	// invalidated reports whether rsi reached the opposite extreme.
	invalidated func(rsi float64) bool
}

func buyRules(rsi *indicators.RSI) setupRules {
	return setupRules{
		direction:   domain.Buy,
		setupCross:  indicators.CrossDown,
		touched:     rsi.IsOverbought,
		invalidated: rsi.IsOversold,
	}
}

func sellRules(rsi *indicators.RSI) setupRules {
	return setupRules{
		direction:   domain.Sell,
		setupCross:  indicators.CrossUp,
		touched:     rsi.IsOversold,
		invalidated: rsi.IsOverbought,
	}
}

// setup is the state machine for one direction.
type setup struct {
	rules setupRules
	state SetupState
	// entryCross is set when RSI crossed EMA in the entry direction on the latest update
	// while the setup was ready and the cycle was not reset afterwards.
	entryCross bool
}

func newSetup(rules setupRules) *setup {
	return &setup{rules: rules}
}

func (s *setup) reset() {
	s.state = SetupState{}
	s.entryCross = false
}

// advance applies one update from prev to cur and reports whether the #2 signal fired.
// A fired #2 signal resets the cycle, as does touching the opposite extreme.
func (s *setup) advance(prev, cur domain.IndicatorValues) bool {
	st := &s.state
	setupDir := s.rules.setupCross
	entryDir := setupDir.Opposite()
	s.entryCross = false

	if s.rules.touched(cur.RSI) {
		st.Step1 = true
	}
	if st.Step1 && indicators.Crossed(setupDir, prev.RSI, prev.EMA, cur.RSI, cur.EMA) {
		st.Step2 = true
	}
	if st.Step2 && indicators.Crossed(setupDir, prev.RSI, prev.WMA, cur.RSI, cur.WMA) {
		st.Step3 = true
	}
	if st.Step3 && indicators.Crossed(setupDir, prev.EMA, prev.WMA, cur.EMA, cur.WMA) {
		st.Step4 = true
	}

	if st.Ready() && indicators.Crossed(entryDir, prev.RSI, prev.EMA, cur.RSI, cur.EMA) {
		st.CrossCount++
		s.entryCross = true
	}

	second := st.Ready() && indicators.Crossed(entryDir, prev.RSI, prev.WMA, cur.RSI, cur.WMA)
	if second {
		s.reset()
	}

	if s.rules.invalidated(cur.RSI) {
		s.reset()
	}
	return second
}

// takeEntry1 decides the #1 signal for the latest update and records it when it fires.
func (s *setup) takeEntry1() bool {
	if !s.state.Ready() || !s.entryCross {
		return false
	}
	if s.state.CrossCount < 2 || s.state.Entry1Count >= maxEntry1 {
		return false
	}
	s.state.Entry1Count++
	return true
}
