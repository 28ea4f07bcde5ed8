package sim

import (
	"math"
	"testing"

	"github.com/Garsondee/Nav-Sense/internal/nav"
	"github.com/go-gl/mathgl/mgl64"
)

func TestSweepHitT_HeadOn(t *testing.T) {
	s := nav.Sphere{Center: mgl64.Vec3{8, 0, 0}, Radius: 2}
	tHit, ok := sweepHitT(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, 1, s)
	if !ok {
		t.Fatal("expected a hit")
	}
	if math.Abs(tHit-0.5) > 1e-9 {
		t.Fatalf("contact at t=%.4f, want 0.5", tHit)
	}
}

func TestSweepHitT_Miss(t *testing.T) {
	s := nav.Sphere{Center: mgl64.Vec3{5, 0, 10}, Radius: 2}
	if _, ok := sweepHitT(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, 1, s); ok {
		t.Fatal("segment passing 10 away should not hit")
	}
	s = nav.Sphere{Center: mgl64.Vec3{20, 0, 0}, Radius: 2}
	if _, ok := sweepHitT(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{10, 0, 0}, 1, s); ok {
		t.Fatal("sphere beyond the segment end should not hit")
	}
}

func TestSweepHitT_OverlapOnlyBlocksInward(t *testing.T) {
	s := nav.Sphere{Center: mgl64.Vec3{2, 0, 0}, Radius: 2}
	if _, ok := sweepHitT(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{-1, 0, 0}, 1, s); ok {
		t.Fatal("backing out of an overlap must be free")
	}
	tHit, ok := sweepHitT(mgl64.Vec3{0, 0, 0}, mgl64.Vec3{1, 0, 0}, 1, s)
	if !ok || tHit != 0 {
		t.Fatalf("pushing further in should hit at once, got t=%.3f ok=%v", tHit, ok)
	}
}

func TestClearPath(t *testing.T) {
	wall := nav.Entity{ID: 5, Spheres: []nav.Sphere{{Center: mgl64.Vec3{50, 0, 0}, Radius: 10}}}
	carried := nav.Entity{ID: 6, Transported: true, Spheres: []nav.Sphere{{Center: mgl64.Vec3{20, 0, 0}, Radius: 10}}}
	high := nav.Entity{ID: 7, Spheres: []nav.Sphere{{Center: mgl64.Vec3{80, 40, 0}, Radius: 5}}}

	a, b := mgl64.Vec3{0, 0, 0}, mgl64.Vec3{100, 0, 0}
	if ClearPath(a, b, 2, []nav.Entity{wall}, 0) {
		t.Fatal("path through the wall reported clear")
	}
	if !ClearPath(a, b, 2, []nav.Entity{wall}, 5) {
		t.Fatal("skipped entity still blocks")
	}
	if !ClearPath(a, b, 2, []nav.Entity{carried, high}, 0) {
		t.Fatal("transported or overhead entities must not block")
	}
}
