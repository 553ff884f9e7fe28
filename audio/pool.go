package audio

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// pendingReturn tracks a releasing voice on its way back to the free list.
// Two mechanisms race to perform the return: the render path, which checks the
// deadline sample-accurately every block, and a host-clock fallback timer armed
// a second after the deadline in case the render path stalls. Whichever flips
// the returned flag first wins; the loser is a no-op.
type pendingReturn struct {
	voice    Voice
	note     int
	endFrame int64
	returned int32 // atomic
	fallback *time.Timer
}

func (pr *pendingReturn) claim() bool {
	return atomic.CompareAndSwapInt32(&pr.returned, 0, 1)
}

// VoicePool owns a fixed set of voices, created once and recycled. Allocate,
// Release and steal run on the render path and touch only the fixed-capacity
// collections; the only lock guards the fallback staging slice and is taken on
// the render path only when a fallback has actually fired.
type VoicePool struct {
	voices    []Voice
	free      []Voice
	active    map[int][]Voice
	releasing []*pendingReturn

	mu    sync.Mutex
	late  []*pendingReturn
	lateN int32

	freeN, activeN, releasingN int32
}

func NewVoicePool(voices []Voice) *VoicePool {
	p := &VoicePool{
		voices:    voices,
		free:      make([]Voice, 0, len(voices)),
		active:    make(map[int][]Voice, len(voices)),
		releasing: make([]*pendingReturn, 0, len(voices)),
	}
	for _, v := range voices {
		p.free = append(p.free, v)
	}
	p.updateCounts()
	return p
}

func (p *VoicePool) Voices() []Voice { return p.voices }

// Allocate takes a voice for the given note. With allowPoly false any voice
// already sounding on the note is choked first: a ~2ms fade, then the slot is
// reused. Returns nil when the pool is exhausted and nothing can be stolen; the
// caller drops the trigger, it never blocks.
func (p *VoicePool) Allocate(note int, allowPoly bool, now float64) Voice {
	if !allowPoly {
		for _, v := range p.active[note] {
			v.Stop(chokeFade)
			p.free = append(p.free, v)
		}
		delete(p.active, note)
	}

	var v Voice
	if n := len(p.free); n > 0 {
		// Stack order: the most recently freed voice is the warmest.
		v = p.free[n-1]
		p.free = p.free[:n-1]
	} else {
		v = p.steal(now)
		if v == nil {
			p.updateCounts()
			return nil
		}
	}

	p.active[note] = append(p.active[note], v)
	p.updateCounts()
	return v
}

// steal picks a victim when no voice is free. Releasing voices go first,
// quietest fade-out first, since interrupting those is least audible. Failing
// that, the active voice with the lowest priority score loses.
func (p *VoicePool) steal(now float64) Voice {
	best := -1
	bestAmp := 0.0
	for i, pr := range p.releasing {
		if atomic.LoadInt32(&pr.returned) != 0 {
			continue
		}
		a := pr.voice.Amplitude()
		if best == -1 || a < bestAmp {
			best, bestAmp = i, a
		}
	}
	if best != -1 {
		pr := p.releasing[best]
		p.releasing = append(p.releasing[:best], p.releasing[best+1:]...)
		pr.claim()
		pr.fallback.Stop()
		pr.voice.Stop(chokeFade)
		return pr.voice
	}

	var victim Voice
	victimNote := 0
	victimScore := 0.0
	for note, vs := range p.active {
		for _, v := range vs {
			score := voicePriority(v, now)
			if victim == nil || score < victimScore {
				victim, victimNote, victimScore = v, note, score
			}
		}
	}
	if victim == nil {
		return nil
	}
	p.removeActive(victimNote, victim)
	victim.Stop(chokeFade)
	return victim
}

// voicePriority scores a voice for stealing: higher means harder to steal.
// Older notes decay linearly over ~5s; loud, high-velocity and attack-phase
// voices are protected, releasing ones are preferred victims.
func voicePriority(v Voice, now float64) float64 {
	if v.Phase() == PhaseIdle {
		return 0
	}
	age := now - v.StartTime()
	score := 100 - clamp(age/5.0, 0, 1)*100
	score += v.Amplitude() * 50
	score += float64(v.Velocity()) / 127.0 * 25
	switch v.Phase() {
	case PhaseAttack:
		score += 50
	case PhaseSustain:
		score += 30
	case PhaseRelease:
		score -= 30
	}
	return score
}

// Release moves every voice on the note into the release queue and arms the
// return mechanism for each.
func (p *VoicePool) Release(note int, now float64, releaseVelocity int, fadeOverride float64) {
	vs, ok := p.active[note]
	if !ok {
		return
	}
	delete(p.active, note)
	for _, v := range vs {
		eff := v.Release(now, releaseVelocity, fadeOverride)
		pr := &pendingReturn{
			voice:    v,
			note:     note,
			endFrame: secondsToFrames(now + eff),
		}
		pr.fallback = time.AfterFunc(
			time.Duration((eff+1)*float64(time.Second)),
			func() { p.lateReturn(pr) },
		)
		p.releasing = append(p.releasing, pr)
	}
	p.updateCounts()
}

func (p *VoicePool) ReleaseAll(now float64) {
	for note := range p.active {
		p.Release(note, now, 0, 0)
	}
}

// advance runs on the render path once per block and performs all due voice
// returns: first anything the fallback timers staged, then every pending
// return whose deadline has passed.
func (p *VoicePool) advance(frame int64) {
	if atomic.LoadInt32(&p.lateN) > 0 {
		p.mu.Lock()
		staged := p.late
		p.late = nil
		atomic.StoreInt32(&p.lateN, 0)
		p.mu.Unlock()
		for _, pr := range staged {
			p.removeReleasing(pr)
			p.returnVoice(pr.voice)
		}
	}

	n := 0
	for _, pr := range p.releasing {
		if pr.endFrame <= frame && pr.claim() {
			pr.fallback.Stop()
			p.returnVoice(pr.voice)
			continue
		}
		p.releasing[n] = pr
		n++
	}
	p.releasing = p.releasing[:n]
	p.updateCounts()
}

// lateReturn runs on the host clock when the sample-accurate return did not
// happen in time. It only stages the voice; the render path does the actual
// list surgery. Worth a warning since it indicates the render clock drifted or
// stalled.
func (p *VoicePool) lateReturn(pr *pendingReturn) {
	if !pr.claim() {
		return
	}
	log.Printf("pool: fallback timer returned voice for note %d, render clock missed its window", pr.note)
	p.mu.Lock()
	p.late = append(p.late, pr)
	p.mu.Unlock()
	atomic.AddInt32(&p.lateN, 1)
}

func (p *VoicePool) returnVoice(v Voice) {
	v.Reset()
	p.free = append(p.free, v)
}

// StopAll cuts every voice instantly, with no release phase. Every pending
// return is cancelled before the free list is rebuilt so that a stale timer
// can never re-free a voice that has since been reallocated.
func (p *VoicePool) StopAll() {
	for _, pr := range p.releasing {
		atomic.StoreInt32(&pr.returned, 1)
		pr.fallback.Stop()
	}
	p.releasing = p.releasing[:0]

	p.mu.Lock()
	p.late = nil
	atomic.StoreInt32(&p.lateN, 0)
	p.mu.Unlock()

	for note := range p.active {
		delete(p.active, note)
	}
	p.free = p.free[:0]
	for _, v := range p.voices {
		v.Stop(0)
		v.Reset()
		p.free = append(p.free, v)
	}
	p.updateCounts()
}

func (p *VoicePool) Dispose() {
	p.StopAll()
	for _, v := range p.voices {
		v.Dispose()
	}
}

func (p *VoicePool) removeActive(note int, v Voice) {
	vs := p.active[note]
	for i, cand := range vs {
		if cand == v {
			p.active[note] = append(vs[:i], vs[i+1:]...)
			break
		}
	}
	if len(p.active[note]) == 0 {
		delete(p.active, note)
	}
}

func (p *VoicePool) removeReleasing(pr *pendingReturn) {
	for i, cand := range p.releasing {
		if cand == pr {
			p.releasing = append(p.releasing[:i], p.releasing[i+1:]...)
			return
		}
	}
}

func (p *VoicePool) updateCounts() {
	var active int
	for _, vs := range p.active {
		active += len(vs)
	}
	atomic.StoreInt32(&p.freeN, int32(len(p.free)))
	atomic.StoreInt32(&p.activeN, int32(active))
	atomic.StoreInt32(&p.releasingN, int32(len(p.releasing)))
}

// Counts reports the sizes of the free list, active map and release queue.
// Safe to call from any goroutine; used for diagnostics and UI metering.
func (p *VoicePool) Counts() (free, active, releasing int) {
	return int(atomic.LoadInt32(&p.freeN)),
		int(atomic.LoadInt32(&p.activeN)),
		int(atomic.LoadInt32(&p.releasingN))
}
