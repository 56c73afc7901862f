// Package timeline builds the Pulse Timeline: the projection of the
// solver's current solution into a dispatchable ordered sequence of start
// and end points (spec.md section 4.3).
package timeline

import (
	"sort"

	"github.com/ratioSolver/PlExA/internal/plan"
	"github.com/ratioSolver/PlExA/internal/solver"
)

// pulseSet is a sorted-by-Cmp, deduplicated slice of atoms keyed by the
// pulse time they occur at. plan.InfRational embeds a big.Rat and so is
// not a valid Go map key; a sorted slice searched by Cmp is this
// package's stand-in for the "sorted mapping" spec.md section 3
// describes.
type pulseSet struct {
	times []plan.InfRational
	atoms [][]plan.Atom // atoms[i] corresponds to times[i], deduplicated by ID
}

func (p *pulseSet) indexOf(t plan.InfRational) (int, bool) {
	i := sort.Search(len(p.times), func(i int) bool { return p.times[i].Cmp(t) >= 0 })
	if i < len(p.times) && p.times[i].Cmp(t) == 0 {
		return i, true
	}
	return i, false
}

func (p *pulseSet) insert(t plan.InfRational, a plan.Atom) {
	i, found := p.indexOf(t)
	if !found {
		p.times = append(p.times, plan.InfRational{})
		p.atoms = append(p.atoms, nil)
		copy(p.times[i+1:], p.times[i:])
		copy(p.atoms[i+1:], p.atoms[i:])
		p.times[i] = t
		p.atoms[i] = nil
	}
	for _, existing := range p.atoms[i] {
		if existing.ID == a.ID {
			return
		}
	}
	p.atoms[i] = append(p.atoms[i], a)
}

func (p *pulseSet) at(t plan.InfRational) []plan.Atom {
	i, found := p.indexOf(t)
	if !found {
		return nil
	}
	return p.atoms[i]
}

func (p *pulseSet) reset() {
	p.times = nil
	p.atoms = nil
}

// PulseTimeline is the three structures spec.md section 3 describes
// maintained together: start_atoms, end_atoms, and the sorted set of
// distinct pulses.
type PulseTimeline struct {
	start  pulseSet
	end    pulseSet
	pulses []plan.InfRational // sorted, deduplicated, >= current_time
}

// New returns an empty PulseTimeline.
func New() *PulseTimeline {
	return &PulseTimeline{}
}

func (tl *PulseTimeline) addPulse(t plan.InfRational) {
	i := sort.Search(len(tl.pulses), func(i int) bool { return tl.pulses[i].Cmp(t) >= 0 })
	if i < len(tl.pulses) && tl.pulses[i].Cmp(t) == 0 {
		return
	}
	tl.pulses = append(tl.pulses, plan.InfRational{})
	copy(tl.pulses[i+1:], tl.pulses[i:])
	tl.pulses[i] = t
}

// Rebuild re-projects the solver's current solution, per the rebuild
// algorithm of spec.md section 4.3. It clears all three structures first.
func (tl *PulseTimeline) Rebuild(s solver.Solver, currentTime plan.InfRational) {
	tl.start.reset()
	tl.end.reset()
	tl.pulses = nil

	for _, pred := range s.Predicates() {
		if pred.Kind != plan.Impulse && pred.Kind != plan.Interval {
			continue
		}
		for _, a := range s.AtomsOf(pred) {
			if s.Value(a.Sigma) != solver.True {
				continue
			}
			switch a.Kind {
			case plan.Impulse:
				tl.addImpulse(s, a, currentTime)
			case plan.Interval:
				tl.addInterval(s, a, currentTime)
			}
		}
	}
}

func (tl *PulseTimeline) addImpulse(s solver.Solver, a plan.Atom, currentTime plan.InfRational) {
	e, ok := a.Get(plan.NameAT)
	if !ok {
		return
	}
	t := s.ArithValue(e)
	if t.Less(currentTime) {
		return
	}
	tl.start.insert(t, a)
	tl.end.insert(t, a)
	tl.addPulse(t)
}

func (tl *PulseTimeline) addInterval(s solver.Solver, a plan.Atom, currentTime plan.InfRational) {
	startExpr, ok := a.Get(plan.NameSTART)
	if !ok {
		return
	}
	endExpr, ok := a.Get(plan.NameEND)
	if !ok {
		return
	}
	startVal := s.ArithValue(startExpr)
	endVal := s.ArithValue(endExpr)
	if endVal.Less(currentTime) {
		return
	}
	if !startVal.Less(currentTime) {
		tl.start.insert(startVal, a)
		tl.addPulse(startVal)
	}
	tl.end.insert(endVal, a)
	tl.addPulse(endVal)
}

// StartAtomsAt returns the atoms starting at pulse t, sorted by id for
// deterministic iteration.
func (tl *PulseTimeline) StartAtomsAt(t plan.InfRational) []plan.Atom {
	return sortedCopy(tl.start.at(t))
}

// EndAtomsAt returns the atoms ending at pulse t, sorted by id.
func (tl *PulseTimeline) EndAtomsAt(t plan.InfRational) []plan.Atom {
	return sortedCopy(tl.end.at(t))
}

func sortedCopy(atoms []plan.Atom) []plan.Atom {
	if len(atoms) == 0 {
		return nil
	}
	out := append([]plan.Atom{}, atoms...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Pulses returns the sorted, deduplicated pulse times.
func (tl *PulseTimeline) Pulses() []plan.InfRational {
	return tl.pulses
}

// Min returns the earliest pulse and whether any pulse remains.
func (tl *PulseTimeline) Min() (plan.InfRational, bool) {
	if len(tl.pulses) == 0 {
		return plan.InfRational{}, false
	}
	return tl.pulses[0], true
}

// Remove erases t from the pulse set (spec.md section 4.4 step 3f,
// "Erase t from pulses"). It does not touch start_atoms/end_atoms, which
// are only cleared on the next Rebuild.
func (tl *PulseTimeline) Remove(t plan.InfRational) {
	i := sort.Search(len(tl.pulses), func(i int) bool { return tl.pulses[i].Cmp(t) >= 0 })
	if i >= len(tl.pulses) || tl.pulses[i].Cmp(t) != 0 {
		return
	}
	tl.pulses = append(tl.pulses[:i], tl.pulses[i+1:]...)
}

// Len reports how many distinct pulses remain.
func (tl *PulseTimeline) Len() int { return len(tl.pulses) }
