package sim

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/go-gl/mathgl/mgl64"
)

// Sample is the state of one unit at the end of a tick.
type Sample struct {
	Tick    int        `json:"tick"`
	Unit    string     `json:"unit"`
	Phase   string     `json:"phase"`
	Pos     mgl64.Vec3 `json:"pos"`
	Heading float64    `json:"heading"`
	Speed   float64    `json:"speed"`
	Motor   nav.Motor  `json:"motor"`
	Index   int        `json:"index"` // waypoint being followed
}

// SampleOf captures unit id as it stands now. Units without an order
// report the phase "idle".
func (ts *TestSim) SampleOf(id nav.EntityID) (Sample, bool) {
	u, ok := ts.World.Unit(id)
	if !ok {
		return Sample{}, false
	}
	s := Sample{
		Tick:    ts.Tick,
		Unit:    u.Label(),
		Phase:   "idle",
		Pos:     u.Position(),
		Heading: u.Heading(),
		Speed:   u.Speed(),
		Motor:   u.Motor(),
	}
	if o, ok := ts.orders[id]; ok {
		if snap, ok := ts.Nav.Snapshot(o.Handle); ok {
			s.Phase = snap.Phase.String()
			s.Index = snap.Index
		} else if o.Done() {
			s.Phase = nav.PhaseFailed.String()
		}
	}
	return s, true
}

// Recorder keeps every sample of one unit.
type Recorder struct {
	unit    nav.EntityID
	Samples []Sample
}

// Record attaches a recorder for unit id to ts.
func Record(ts *TestSim, id nav.EntityID) *Recorder {
	r := &Recorder{unit: id}
	ts.Observe(func(s *TestSim) {
		if smp, ok := s.SampleOf(r.unit); ok {
			r.Samples = append(r.Samples, smp)
		}
	})
	return r
}

// RunReport is the outcome of one scenario run for its subject unit.
type RunReport struct {
	Scenario   string
	Seed       int64
	Unit       string
	Status     nav.Status
	Err        error
	Timeout    bool
	Ticks      int
	Distance   float64
	Straight   float64 // start to end, as the crow flies
	Restarts   int
	Collisions int
	Leaks      int
	PlanPoints int
	Trail      []string
	FirstTick  map[string]int // first tick of each phase
	stages     []reportStage
	story      []string
}

// Outcome is a one-word verdict.
func (r RunReport) Outcome() string {
	switch {
	case r.Timeout:
		return "timeout"
	case r.Status == nav.StatusSucceeded:
		return "ok"
	case r.Err != nil:
		return reason(r.Err)
	default:
		return "failed"
	}
}

// Matches reports whether the run ended the way want describes; nil means
// success.
func (r RunReport) Matches(want error) bool {
	if want == nil {
		return !r.Timeout && r.Status == nav.StatusSucceeded
	}
	return errors.Is(r.Err, want)
}

var reasons = []struct {
	err  error
	name string
}{
	{nav.ErrBusy, "busy"},
	{nav.ErrImpossible, "impossible"},
	{nav.ErrIterationLimit, "iteration_limit"},
	{nav.ErrMoveBlocked, "move_blocked"},
	{nav.ErrInvalidTarget, "invalid_target"},
}

func reason(err error) string {
	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.name
		}
	}
	return "error"
}

// Expect is the outcome name a run of s should report.
func (s Scenario) Expect() string {
	if s.Want == nil {
		return "ok"
	}
	return reason(s.Want)
}

// Run plays a scenario for one seed and reports on its subject.
func Run(sc Scenario, seed int64, extra ...SimOption) (RunReport, *TestSim) {
	ts := sc.New(seed, extra...)
	rec := Record(ts, sc.Subject)
	var start mgl64.Vec3
	if u := ts.Unit(sc.Subject); u != nil {
		start = u.Position()
	}
	end := ts.RunOrders(sc.MaxTicks)
	return BuildReport(ts, sc.Name, sc.Subject, start, rec, end < 0 && !ts.AllDone()), ts
}

// BuildReport summarises a finished simulation for unit id.
func BuildReport(ts *TestSim, name string, id nav.EntityID, start mgl64.Vec3, rec *Recorder, timeout bool) RunReport {
	label := fmt.Sprintf("U%d", id)
	r := RunReport{
		Scenario:  name,
		Seed:      ts.Seed,
		Unit:      label,
		Timeout:   timeout,
		Ticks:     ts.Tick,
		Trail:     ts.Log.PhaseTrail(label),
		FirstTick: map[string]int{},
	}
	if o, ok := ts.OrderOf(id); ok {
		r.Status, r.Err = o.Status, o.Err
		r.Distance = o.Distance()
		if o.Done() {
			r.Ticks = o.EndTick - o.StartTick
		}
		r.Straight = math.Hypot(o.Unit.Position()[0]-start[0], o.Unit.Position()[2]-start[2])
	}
	for _, e := range ts.Log.FilterUnit(label) {
		switch {
		case e.Category == nav.CatRecover && e.Key == "restart":
			r.Restarts++
		case e.Category == nav.CatRecover && e.Key == "collision":
			r.Collisions++
		case e.Category == nav.CatRecover && e.Key == "leak":
			r.Leaks++
		case e.Category == nav.CatPlan && e.Key == "found":
			r.PlanPoints = int(e.NumVal)
		}
	}
	if rec != nil {
		for _, s := range rec.Samples {
			if _, seen := r.FirstTick[s.Phase]; !seen {
				r.FirstTick[s.Phase] = s.Tick
			}
		}
		r.stages = buildStages(rec.Samples)
		r.story = storyEvents(ts.Log.FilterUnit(label))
	}
	return r
}

// Line renders the report on one line.
func (r RunReport) Line() string {
	var phases []string
	for _, p := range r.Trail {
		if t, ok := r.FirstTick[p]; ok {
			phases = append(phases, fmt.Sprintf("%s@%d", p, t))
		} else {
			phases = append(phases, p)
		}
	}
	return fmt.Sprintf("%-12s seed=%-6d %-4s %-16s ticks=%-5d dist=%6.1f crow=%6.1f restarts=%d bumps=%d  %s",
		r.Scenario, r.Seed, r.Unit, r.Outcome(), r.Ticks, r.Distance, r.Straight,
		r.Restarts, r.Collisions, strings.Join(phases, " "))
}

// String renders the full report with stages and the event story.
func (r RunReport) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- NavSense run report ---\n")
	fmt.Fprintf(&b, "scenario=%s seed=%d unit=%s outcome=%s ticks=%d\n", r.Scenario, r.Seed, r.Unit, r.Outcome(), r.Ticks)
	if r.Err != nil {
		fmt.Fprintf(&b, "error: %v\n", r.Err)
	}
	fmt.Fprintf(&b, "summary: dist=%.1f crow=%.1f plan_points=%d restarts=%d collisions=%d leaks=%d\n",
		r.Distance, r.Straight, r.PlanPoints, r.Restarts, r.Collisions, r.Leaks)

	if len(r.story) > 0 {
		b.WriteString("events:\n")
		for _, e := range r.story {
			b.WriteString("  - ")
			b.WriteString(e)
			b.WriteByte('\n')
		}
	}
	if len(r.stages) > 0 {
		b.WriteString("stages:\n")
		for i, st := range r.stages {
			tag := ""
			if st.stalled {
				tag = " [STALL]"
			}
			fmt.Fprintf(&b, "  %02d) T=%d..%d (%dt)%s phase:%s wp:%d->%d moved:%.1f\n",
				i+1, st.startTick, st.endTick, st.count, tag, st.phase, st.firstIndex, st.lastIndex, st.moved)
		}
	}
	return b.String()
}

// reportStage is a run of consecutive samples in the same phase.
type reportStage struct {
	phase      string
	startTick  int
	endTick    int
	count      int
	firstIndex int
	lastIndex  int
	moved      float64
	stalled    bool
}

// stallMoved is the distance under which a long stage counts as stalled.
const stallMoved = 0.5

func buildStages(samples []Sample) []reportStage {
	if len(samples) == 0 {
		return nil
	}
	var stages []reportStage
	start := 0
	for i := 1; i <= len(samples); i++ {
		if i < len(samples) && samples[i].Phase == samples[start].Phase {
			continue
		}
		stages = append(stages, makeStage(samples, start, i-1))
		start = i
	}
	return stages
}

func makeStage(samples []Sample, start, end int) reportStage {
	first, last := samples[start], samples[end]
	moved := 0.0
	for i := start + 1; i <= end; i++ {
		a, b := samples[i-1].Pos, samples[i].Pos
		moved += math.Hypot(b[0]-a[0], b[2]-a[2])
	}
	count := end - start + 1
	return reportStage{
		phase:      first.Phase,
		startTick:  first.Tick,
		endTick:    last.Tick,
		count:      count,
		firstIndex: first.Index,
		lastIndex:  last.Index,
		moved:      moved,
		stalled:    count >= 20 && moved < stallMoved,
	}
}

// maxStory caps the events listed in a report.
const maxStory = 24

// storyEvents lists the notable events of one unit, skipping the phase
// changes the stages already show.
func storyEvents(events []nav.Event) []string {
	var out []string
	for _, e := range events {
		if e.Category == nav.CatPhase {
			continue
		}
		out = append(out, fmt.Sprintf("T=%d %s/%s %s", e.Tick, e.Category, e.Key, e.Value))
	}
	if len(out) > maxStory {
		out = append(out[:maxStory], fmt.Sprintf("... (%d more events)", len(out)-maxStory))
	}
	return out
}

// Aggregate sums a batch of runs.
type Aggregate struct {
	Runs       int
	Succeeded  int
	Expected   int // runs that ended the way their scenario intends
	Timeouts   int
	ByOutcome  map[string]int
	TotalTicks int
	TotalDist  float64
	Restarts   int
	Collisions int
}

// Summarize folds reports into an aggregate. want is the outcome each run
// is expected to have.
func Summarize(reports []RunReport, want error) Aggregate {
	a := Aggregate{ByOutcome: map[string]int{}}
	for _, r := range reports {
		a.Runs++
		if r.Status == nav.StatusSucceeded && !r.Timeout {
			a.Succeeded++
		}
		if r.Matches(want) {
			a.Expected++
		}
		if r.Timeout {
			a.Timeouts++
		}
		a.ByOutcome[r.Outcome()]++
		a.TotalTicks += r.Ticks
		a.TotalDist += r.Distance
		a.Restarts += r.Restarts
		a.Collisions += r.Collisions
	}
	return a
}

// MeanTicks returns the average run length.
func (a Aggregate) MeanTicks() float64 {
	if a.Runs == 0 {
		return 0
	}
	return float64(a.TotalTicks) / float64(a.Runs)
}
