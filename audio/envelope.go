package audio

type envelopeState int

const (
	stateInit envelopeState = iota
	stateAttack
	stateDecay
	stateSustain
	stateRelease
)

// Even when the configured attack is 0, the envelope ramps from near-zero over
// at least this long to avoid a discontinuity click.
const minAttack = 0.001

type envelope struct {
	attack  float64 // seconds
	decay   float64 // seconds
	sustain float64 // 0-1 level
	release float64 // seconds

	attackRate  float64
	decayRate   float64
	releaseRate float64

	val   float64
	state envelopeState
}

func (e *envelope) value() float64 {
	switch e.state {
	case stateInit:
		return 0.
	case stateAttack:
		e.val += e.attackRate
		if e.val >= 1 {
			e.val = 1.0
			if e.sustain < 1 && e.decay > 0 {
				e.state = stateDecay
			} else {
				e.state = stateSustain
			}
		}
	case stateDecay:
		e.val -= e.decayRate
		if e.val <= e.sustain {
			e.val = e.sustain
			e.state = stateSustain
		}
	case stateSustain:
		if e.sustain == 0 {
			e.state = stateInit
		}
		e.val = e.sustain
	case stateRelease:
		e.val -= e.releaseRate
		if e.val <= 0 {
			e.val = 0
			e.state = stateInit
		}
	}
	return e.val
}

func (e *envelope) startAttack() {
	e.val = 0
	e.state = stateAttack
	attack := e.attack
	if attack < minAttack {
		attack = minAttack
	}
	e.attackRate = 1.0 / (attack * sampleRate)
	if e.decay > 0 {
		e.decayRate = (1.0 - e.sustain) / (e.decay * sampleRate)
	} else {
		e.decayRate = 1.0 - e.sustain
	}
}

// startRelease ramps the current value to zero over duration seconds.
func (e *envelope) startRelease(duration float64) {
	if e.state == stateInit {
		return
	}
	e.state = stateRelease
	if duration <= 0 {
		e.releaseRate = 1
		return
	}
	e.releaseRate = e.val / (duration * sampleRate)
	if e.releaseRate <= 0 {
		e.releaseRate = 1
	}
}

func (e *envelope) active() bool {
	return e.state != stateInit
}

func (e *envelope) reset() {
	e.val = 0
	e.state = stateInit
}
