package audio

import "sort"

// Automation holds read-only, time-indexed control values for one parameter
// (pan, pitch-bend, mod-wheel). The scheduler samples it at note-schedule
// time; the engine never writes to it.
type Automation struct {
	points []AutomationPoint
}

type AutomationPoint struct {
	Step  float64 // transport position in steps
	Value float64
}

func NewAutomation(points []AutomationPoint) *Automation {
	sorted := make([]AutomationPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Step < sorted[j].Step })
	return &Automation{points: sorted}
}

// ValueAt interpolates linearly between the surrounding points; positions
// outside the automated range clamp to the first or last value.
func (a *Automation) ValueAt(step float64) float64 {
	if a == nil || len(a.points) == 0 {
		return 0
	}
	pts := a.points
	if step <= pts[0].Step {
		return pts[0].Value
	}
	if step >= pts[len(pts)-1].Step {
		return pts[len(pts)-1].Value
	}
	i := sort.Search(len(pts), func(i int) bool { return pts[i].Step > step })
	prev, next := pts[i-1], pts[i]
	span := next.Step - prev.Step
	if span <= 0 {
		return next.Value
	}
	t := (step - prev.Step) / span
	return prev.Value + (next.Value-prev.Value)*t
}
