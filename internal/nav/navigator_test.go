package nav

import (
	"errors"
	"math"
	"slices"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

func newTestNavigator(w *testWorld, opts ...Option) (*Navigator, *EventLog) {
	events := NewEventLog(false)
	opts = append([]Option{WithEventLog(events)}, opts...)
	return New(DefaultConfig(), flatTerrain(), w, opts...), events
}

// indexAfter returns the position of want in trail at or after from, or -1.
func indexAfter(trail []string, want string, from int) int {
	for i := from; i < len(trail); i++ {
		if trail[i] == want {
			return i
		}
	}
	return -1
}

func TestNavigator_OpenFieldSucceeds(t *testing.T) {
	n, events := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	goal := mgl64.Vec3{100, 0, 0}

	h, err := n.Start(b, ClassWheeled, Request{Goal: goal})
	if err != nil {
		t.Fatal(err)
	}
	if h.IsZero() {
		t.Fatal("Start should issue a handle")
	}
	st, err := runNav(t, n, h, b, 2000, nil)
	if st != StatusSucceeded || err != nil {
		t.Fatalf("expected success, got %s (%v)\n%s", st, err, events.Format())
	}
	if d := distXZ(b.pos, goal); d > 1.5 {
		t.Fatalf("unit stopped %.2f from the goal", d)
	}
	if b.motor != (Motor{}) {
		t.Fatalf("motors should be zero after completion, got %+v", b.motor)
	}

	snap, _ := n.Snapshot(h)
	if len(snap.Chain) != 6 {
		t.Fatalf("expected the raw 6-point chain, got %d", len(snap.Chain))
	}
	if len(snap.Route) != 2 || snap.Route[1] != goal {
		t.Fatalf("the shortcut pass should leave start and goal, got %v", snap.Route)
	}
	if !events.HasEntry(CatPlan, "found", "6 points") {
		t.Fatalf("expected a plan/found event:\n%s", events.Format())
	}
	trail := events.PhaseTrail("U1")
	if trail[0] != "search" || indexAfter(trail, "traverse", 0) < 0 || trail[len(trail)-1] != "completed" {
		t.Fatalf("unexpected phase trail %v", trail)
	}
	if again, _ := n.Tick(h, testDT); again != StatusSucceeded {
		t.Fatal("a finished attempt keeps reporting its result")
	}
}

func TestNavigator_DefaultsPerClass(t *testing.T) {
	n, _ := newTestNavigator(&testWorld{})

	ant := newTestBody(1, 0, 0)
	h, err := n.Start(ant, ClassCrawler, Request{Goal: mgl64.Vec3{50, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	snap, _ := n.Snapshot(h)
	if snap.Request.GoalMode != GoalExpress || snap.Request.Crash != CrashHalt || snap.Phase != PhaseAdvance {
		t.Fatalf("insects default to express+halt direct moves, got %s/%s in %s",
			snap.Request.GoalMode, snap.Request.Crash, snap.Phase)
	}

	close := newTestBody(2, 0, 40)
	h, _ = n.Start(close, ClassWheeled, Request{Goal: mgl64.Vec3{5, 0, 40}})
	snap, _ = n.Snapshot(h)
	if snap.Request.Crash != CrashRightLeft || snap.Phase != PhaseAdvance {
		t.Fatalf("goals within 10 skip planning, got %s in %s", snap.Request.Crash, snap.Phase)
	}

	flyer := newTestBody(3, 0, -40)
	h, _ = n.Start(flyer, ClassFlyer, Request{Goal: mgl64.Vec3{300, 0, -40}})
	snap, _ = n.Snapshot(h)
	if snap.Request.Altitude != DefaultConfig().Flight.DefaultAltitude {
		t.Fatalf("far flights get the default altitude, got %.1f", snap.Request.Altitude)
	}
}

func TestNavigator_BusyTarget(t *testing.T) {
	w := &testWorld{}
	cargo := rock(10, 60, 0, 1)
	cargo.Kind = KindCargo
	w.add(cargo)
	n, _ := newTestNavigator(w)

	first := newTestBody(1, 0, 0)
	h1, err := n.Start(first, ClassWheeled, Request{Target: 10})
	if err != nil {
		t.Fatal(err)
	}

	second := newTestBody(2, 0, 30)
	h2, err := n.Start(second, ClassWheeled, Request{Target: 10})
	if !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy for a claimed target, got %v", err)
	}
	if !h2.IsZero() {
		t.Fatal("a refused start must not issue a handle")
	}
	if second.motorCalls != 0 {
		t.Fatal("a refused start must not touch the motors")
	}

	n.Abort(h1)
	if _, err := n.Start(second, ClassWheeled, Request{Target: 10}); err != nil {
		t.Fatalf("the target should be free after abort, got %v", err)
	}
}

func TestNavigator_BusyApproachCell(t *testing.T) {
	w := &testWorld{}
	w.add(rock(5, 80, 0, 6))
	n, _ := newTestNavigator(w)

	b := newTestBody(1, 0, 0)
	if _, err := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{80, 0, 20}}); err != nil {
		t.Fatal(err)
	}
	other := newTestBody(2, 0, 20)
	if _, err := n.Start(other, ClassWheeled, Request{Goal: mgl64.Vec3{81, 0, 21}}); !errors.Is(err, ErrBusy) {
		t.Fatalf("two units cannot claim the same approach cell, got %v", err)
	}
	// A goal on top of a rock, but not close enough to target it.
	third := newTestBody(3, 0, -20)
	if _, err := n.Start(third, ClassWheeled, Request{Goal: mgl64.Vec3{83, 0, -3}}); !errors.Is(err, ErrBusy) {
		t.Fatalf("a goal inside an obstacle is busy, got %v", err)
	}
	if third.motorCalls != 0 {
		t.Fatal("a refused start must not touch the motors")
	}
}

func TestNavigator_InvalidTarget(t *testing.T) {
	n, _ := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	if _, err := n.Start(b, ClassWheeled, Request{Target: 99}); !errors.Is(err, ErrInvalidTarget) {
		t.Fatalf("expected ErrInvalidTarget, got %v", err)
	}
}

func TestNavigator_OffMapGoalImpossible(t *testing.T) {
	n, _ := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	h, err := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{9000, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	st, err := runNav(t, n, h, b, 10, nil)
	if st != StatusFailed || !errors.Is(err, ErrImpossible) {
		t.Fatalf("expected Impossible, got %s (%v)", st, err)
	}
	var fe *FailError
	if !errors.As(err, &fe) || fe.Phase != PhaseSearch || fe.Unit != 1 {
		t.Fatalf("expected a FailError from search, got %#v", err)
	}
}

func TestNavigator_LeakEscapeBeforeSearch(t *testing.T) {
	w := &testWorld{}
	w.add(rock(5, 3.5, 0, 2)) // overlapping, in front of the unit
	n, events := newTestNavigator(w)
	b := newTestBody(1, 0, 0)

	h, err := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{0, 0, 80}})
	if err != nil {
		t.Fatal(err)
	}
	if ph, _ := n.Phase(h); ph != PhaseLeakEscape {
		t.Fatalf("expected leak escape first, got %s", ph)
	}
	if b.motorCalls != 0 {
		t.Fatal("Start must not command the motors")
	}
	if _, err := n.Tick(h, testDT); err != nil {
		t.Fatal(err)
	}
	if b.motor.Linear >= 0 {
		t.Fatalf("first command should back away, got %+v", b.motor)
	}

	for i := 0; i < 200; i++ {
		b.step(testDT)
		if ph, _ := n.Phase(h); ph != PhaseLeakEscape {
			break
		}
		n.Tick(h, testDT)
	}
	trail := events.PhaseTrail("U1")
	if len(trail) < 2 || trail[0] != "leak_escape" || trail[1] != "search" {
		t.Fatalf("expected leak_escape → search, got %v", trail)
	}
}

func TestNavigator_LeakRecedeFromFactory(t *testing.T) {
	w := &testWorld{}
	factory := rock(5, 0, 5, 3)
	factory.Kind = KindInstallation
	factory.Installation = InstallFactory
	w.add(factory)
	n, _ := newTestNavigator(w)
	b := newTestBody(1, 0, 0)

	h, err := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{0, 0, -80}})
	if err != nil {
		t.Fatal(err)
	}
	n.Tick(h, testDT)
	if b.motor.Linear != -1 || b.motor.Angular != 0 {
		t.Fatalf("units recede straight out of a factory, got %+v", b.motor)
	}
}

func TestNavigator_AbortZeroesMotors(t *testing.T) {
	n, _ := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	h, _ := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{200, 0, 0}})
	for i := 0; i < 30; i++ {
		n.Tick(h, testDT)
		b.step(testDT)
	}
	if b.motor.Linear == 0 {
		t.Fatal("unit should be moving before abort")
	}
	n.Abort(h)
	if b.motor != (Motor{}) {
		t.Fatalf("abort must zero the motors, got %+v", b.motor)
	}
	if _, ok := n.Phase(h); ok {
		t.Fatal("aborted handles are forgotten")
	}
	if st, err := n.Tick(h, testDT); st != StatusFailed || !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("expected ErrUnknownHandle after abort, got %s (%v)", st, err)
	}
	if n.Active() != 0 {
		t.Fatal("no attempt should remain active")
	}
}

func TestNavigator_FinishedAttemptFreedByAbort(t *testing.T) {
	n, _ := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	h, _ := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{60, 0, 0}})
	if st, err := runNav(t, n, h, b, 2000, nil); st != StatusSucceeded {
		t.Fatalf("expected success, got %s (%v)", st, err)
	}
	if n.Active() != 0 {
		t.Fatal("a finished attempt is not active")
	}
	if ph, ok := n.Phase(h); !ok || ph != PhaseCompleted {
		t.Fatalf("the result stays readable until abort, got %s (%v)", ph, ok)
	}
	if n.Dump(h, 20) != "" || n.Overlay(h, 20) != nil {
		t.Fatal("a finished attempt has dropped its grid")
	}

	calls := b.motorCalls
	n.Abort(h)
	if b.motorCalls != calls {
		t.Fatal("aborting a finished attempt must not command the motors")
	}
	if _, ok := n.Snapshot(h); ok {
		t.Fatal("abort frees the finished record")
	}
	if st, err := n.Tick(h, testDT); st != StatusFailed || !errors.Is(err, ErrUnknownHandle) {
		t.Fatalf("expected ErrUnknownHandle after abort, got %s (%v)", st, err)
	}
}

func TestNavigator_CollisionRecoveryReturnsToTraverse(t *testing.T) {
	n, events := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	h, _ := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{150, 0, 0}})

	bumped := -1
	st, err := runNav(t, n, h, b, 4000, func(tick int) {
		ph, _ := n.Phase(h)
		if bumped < 0 && ph == PhaseTraverse && b.pos[0] > 30 {
			b.colliding = true
			bumped = tick
		}
	})
	if st != StatusSucceeded {
		t.Fatalf("expected success after recovery, got %s (%v)\n%s", st, err, events.Format())
	}

	trail := events.PhaseTrail("U1")
	w := indexAfter(trail, "collision_wait", 0)
	tr := indexAfter(trail, "collision_turn", w)
	adv := indexAfter(trail, "collision_advance", tr)
	back := indexAfter(trail, "traverse", adv)
	if w < 0 || tr < 0 || adv < 0 || back < 0 {
		t.Fatalf("expected wait → turn → advance → traverse, got %v", trail)
	}
	if events.Count(CatRecover, "collision") != 1 {
		t.Fatalf("expected one collision event:\n%s", events.Format())
	}

	// Recovery must hand control back within a bounded number of ticks.
	var resumed int
	for _, e := range events.Filter(CatPhase, "change") {
		if strings.HasPrefix(e.Value, "collision_advance → ") {
			resumed = e.Tick
			break
		}
	}
	if resumed == 0 || resumed-bumped > 200 {
		t.Fatalf("recovery took too long: bumped at %d, resumed at %d", bumped, resumed)
	}
}

func TestNavigator_SpacedCollisionsDoNotAccumulate(t *testing.T) {
	n, events := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	h, err := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{1200, 0, 0}})
	if err != nil {
		t.Fatal(err)
	}

	// One bump every 120 units, more than Recovery.MaxTries in total.
	next, bumps := 120.0, 0
	st, err := runNav(t, n, h, b, 20000, func(int) {
		ph, _ := n.Phase(h)
		if ph == PhaseTraverse && b.pos[0] > next {
			b.colliding = true
			bumps++
			next += 120
		}
	})
	if bumps <= n.Config().Recovery.MaxTries {
		t.Fatalf("expected more than %d bumps, got %d", n.Config().Recovery.MaxTries, bumps)
	}
	if st != StatusSucceeded || err != nil {
		t.Fatalf("every bump was recovered, expected success, got %s (%v)\n%s", st, err, events.Format())
	}
	if got := events.Count(CatRecover, "collision"); got != bumps {
		t.Fatalf("expected %d collision events, got %d", bumps, got)
	}
	for _, e := range events.Filter(CatRecover, "collision") {
		if e.NumVal != 1 {
			t.Fatalf("each isolated bump starts a fresh recovery, got try %.0f at T=%d", e.NumVal, e.Tick)
		}
	}
	if snap, _ := n.Snapshot(h); snap.Tries != 0 {
		t.Fatalf("tries should be cleared after recovery, got %d", snap.Tries)
	}
}

func TestNavigator_WatchdogRestartsSearch(t *testing.T) {
	n, events := newTestNavigator(&testWorld{})
	cfg := n.Config()
	b := newTestBody(1, 0, 0)
	h, _ := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{150, 0, 0}})

	st, err := runNav(t, n, h, b, 4000, func(int) {
		ph, _ := n.Phase(h)
		if ph == PhaseTraverse {
			b.frozen = true
		}
	})
	if st != StatusFailed || !errors.Is(err, ErrMoveBlocked) {
		t.Fatalf("a unit that never moves should end MoveBlocked, got %s (%v)", st, err)
	}
	if got := events.Count(CatRecover, "restart"); got != cfg.Recovery.MaxRestarts+1 {
		t.Fatalf("expected %d restarts, got %d", cfg.Recovery.MaxRestarts+1, got)
	}
	trail := events.PhaseTrail("U1")
	searches := 0
	for _, p := range trail {
		if p == "search" {
			searches++
		}
	}
	if searches != cfg.Recovery.MaxRestarts+1 {
		t.Fatalf("each restart before the cap should search again, got %d searches in %v", searches, trail)
	}
	if slices.Contains(trail, "collision_turn") {
		t.Fatal("the watchdog alone should not enter collision recovery")
	}
}

func TestNavigator_HaltPolicyFailsOnCollision(t *testing.T) {
	n, _ := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	h, _ := n.Start(b, ClassWheeled, Request{Goal: mgl64.Vec3{60, 0, 0}, Crash: CrashHalt})
	if ph, _ := n.Phase(h); ph != PhaseAdvance {
		t.Fatalf("halt moves are direct, got %s", ph)
	}
	st, err := runNav(t, n, h, b, 400, func(tick int) {
		if tick == 5 {
			b.colliding = true
		}
	})
	if st != StatusFailed || !errors.Is(err, ErrMoveBlocked) {
		t.Fatalf("expected MoveBlocked, got %s (%v)", st, err)
	}
}

func TestNavigator_ExpressInsectStopsWhenPassing(t *testing.T) {
	n, events := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	goal := mgl64.Vec3{60, 0, 0}
	h, _ := n.Start(b, ClassCrawler, Request{Goal: goal})

	st, err := runNav(t, n, h, b, 400, nil)
	if st != StatusSucceeded || err != nil {
		t.Fatalf("expected success, got %s (%v)\n%s", st, err, events.Format())
	}
	if d := distXZ(b.pos, goal); d >= DefaultConfig().Arrival.ExpressMargin {
		t.Fatalf("express stop should happen near the goal, got %.2f", d)
	}
}

func TestNavigator_DirectAdvanceArrives(t *testing.T) {
	n, _ := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	goal := mgl64.Vec3{6, 0, 4}
	h, _ := n.Start(b, ClassWheeled, Request{Goal: goal})
	st, err := runNav(t, n, h, b, 400, nil)
	if st != StatusSucceeded {
		t.Fatalf("expected success, got %s (%v)", st, err)
	}
	if d := distXZ(b.pos, goal); d > 0.2 {
		t.Fatalf("direct moves stop within 0.1 per axis, got %.2f", d)
	}
}

func TestNavigator_FacesTargetOnArrival(t *testing.T) {
	w := &testWorld{}
	cargo := rock(10, 80, 30, 1)
	cargo.Kind = KindCargo
	w.add(cargo)
	n, events := newTestNavigator(w)
	b := newTestBody(1, 0, 0)
	h, err := n.Start(b, ClassWheeled, Request{Target: 10})
	if err != nil {
		t.Fatal(err)
	}
	st, err := runNav(t, n, h, b, 3000, nil)
	if st != StatusSucceeded {
		t.Fatalf("expected success, got %s (%v)\n%s", st, err, events.Format())
	}
	want := headingOf(cargo.Position[0]-b.pos[0], cargo.Position[2]-b.pos[2])
	if e := math.Abs(turnError(b.heading, want)); e > 0.05 {
		t.Fatalf("unit should face the cargo, off by %.3f rad", e)
	}
	if !slices.Contains(events.PhaseTrail("U1"), "final_turn") {
		t.Fatal("expected a final turn")
	}
}

func TestNavigator_FlyerHoldsCruiseBand(t *testing.T) {
	w := &testWorld{}
	w.add(rock(5, 150, 0, 4)) // low obstacle below the flight band
	n, events := newTestNavigator(w)
	b := newTestBody(1, 0, 0)
	b.flying = true
	goal := mgl64.Vec3{300, 0, 0}

	h, err := n.Start(b, ClassFlyer, Request{Goal: goal, Altitude: 50})
	if err != nil {
		t.Fatal(err)
	}
	converged := false
	// seen is the altitude the navigator read during the tick, before the
	// body moved on the command it issued.
	seen := b.pos[1]
	st, err := runNav(t, n, h, b, 4000, func(int) {
		before := seen
		seen = b.pos[1]
		ph, _ := n.Phase(h)
		if ph != PhaseTraverse || b.OnGround() {
			return
		}
		alt := b.pos[1]
		if !converged && math.Abs(alt-50) <= 1 {
			converged = true
		}
		if converged && b.pos[0] < 290 {
			if math.Abs(alt-50) > 1 {
				t.Fatalf("altitude left the band after converging: %.2f", alt)
			}
			if math.Abs(before-50) <= 1 && b.motor.Vertical != 0 {
				t.Fatalf("vertical set-point should be 0 at altitude %.2f, got %.2f", before, b.motor.Vertical)
			}
		}
	})
	if st != StatusSucceeded {
		t.Fatalf("expected success, got %s (%v)\n%s", st, err, events.Format())
	}
	if !converged {
		t.Fatal("flyer never reached its cruise band")
	}
	trail := events.PhaseTrail("U1")
	if indexAfter(trail, "climb", 0) < 0 || indexAfter(trail, "descend", 0) < 0 {
		t.Fatalf("expected climb and descend phases, got %v", trail)
	}
	if !b.OnGround() {
		t.Fatal("flyer should land at the goal")
	}
}

func TestNavigator_FinalTurnTimesOut(t *testing.T) {
	w := &testWorld{}
	cargo := rock(10, 80, 30, 1)
	cargo.Kind = KindCargo
	w.add(cargo)
	n, events := newTestNavigator(w)
	b := newTestBody(1, 0, 0)
	h, err := n.Start(b, ClassWheeled, Request{Target: 10})
	if err != nil {
		t.Fatal(err)
	}

	// The unit jams facing away from the cargo as soon as it starts the turn.
	jammed := -1
	st, err := runNav(t, n, h, b, 3000, func(tick int) {
		if ph, _ := n.Phase(h); ph == PhaseFinalTurn && jammed < 0 {
			jammed = tick
			b.turnRate = 0
			b.heading = normAngle(b.heading + math.Pi)
		}
	})
	if st != StatusSucceeded {
		t.Fatalf("a jammed final turn should still finish, got %s (%v)\n%s", st, err, events.Format())
	}
	if jammed < 0 {
		t.Fatal("expected a final turn")
	}
	face, ok := events.FirstOf(CatRecover, "face")
	if !ok || !strings.Contains(face.Value, "timed out") {
		t.Fatalf("expected a face timeout event:\n%s", events.Format())
	}
	if limit := int(n.Config().Recovery.TurnTimeout/testDT) + 5; face.Tick-jammed > limit {
		t.Fatalf("final turn should give up within %d ticks of jamming at %d, gave up at %d", limit, jammed, face.Tick)
	}
}

func TestNavigator_DescendWithoutGroundFinishes(t *testing.T) {
	n, events := newTestNavigator(&testWorld{})
	b := newTestBody(1, 0, 0)
	b.flying = true
	goal := mgl64.Vec3{300, 0, 0}
	h, err := n.Start(b, ClassFlyer, Request{Goal: goal, Altitude: 50})
	if err != nil {
		t.Fatal(err)
	}

	// A platform at height 12 that the flyer cannot land on.
	st, err := runNav(t, n, h, b, 6000, func(int) {
		if ph, _ := n.Phase(h); ph == PhaseDescend {
			b.pos[1] = math.Max(b.pos[1], 12)
		}
	})
	if st != StatusSucceeded {
		t.Fatalf("a blocked landing should still finish, got %s (%v)\n%s", st, err, events.Format())
	}
	if !events.HasEntry(CatRecover, "landing", "in the air") {
		t.Fatalf("expected a landing event:\n%s", events.Format())
	}
	if b.OnGround() {
		t.Fatal("the flyer never reached the ground")
	}
	if d := distXZ(b.pos, goal); d > 5 {
		t.Fatalf("flyer should hover over the goal, got %.2f away", d)
	}
}
