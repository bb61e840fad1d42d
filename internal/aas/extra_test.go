package aas

import (
	"math"
	"testing"

	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/trace"
)

// gridWorld lays out a size x size grid of 64 unit cubes with walk edges
// between orthogonal neighbours. Area numbers run row by row from 1.
func gridWorld(t *testing.T, size int) *World {
	t.Helper()
	b := NewBuilder()
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			x, y := float64(col*64), float64(row*64)
			b.AddArea(geom.V(x, y, 0), geom.V(x+64, y+64, 64))
		}
	}
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			areaNum := row*size + col + 1
			if col+1 < size {
				b.LinkWalk(areaNum, areaNum+1)
			}
			if row+1 < size {
				b.LinkWalk(areaNum, areaNum+size)
			}
		}
	}
	w, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	return w
}

func TestWallFlags(t *testing.T) {
	w := gridWorld(t, 3)
	w.ComputeExtraAreaData(nil, DefaultClusterConfig())

	flags := func(areaNum int) int { return w.AreaSettings()[areaNum].AreaFlags }
	if flags(1)&AreaWall == 0 {
		t.Fatalf("expected corner area to be a wall area")
	}
	if flags(5)&AreaWall != 0 {
		t.Fatalf("expected center area to have no walls")
	}
}

func TestFloorCluster(t *testing.T) {
	w := gridWorld(t, 3)
	summary := w.ComputeExtraAreaData(nil, DefaultClusterConfig())
	if summary.FloorClusters != 1 {
		t.Fatalf("expected one floor cluster, got %d", summary.FloorClusters)
	}
	clusters := w.FloorClusters()
	if len(clusters) != 2 || clusters[0] != nil || len(clusters[1]) != 9 {
		t.Fatalf("expected dummy plus a nine area cluster, got %v", clusters)
	}
	for areaNum := 1; areaNum <= 9; areaNum++ {
		if got := w.AreaFloorClusterNum(areaNum); got != 1 {
			t.Fatalf("area %d: expected floor cluster 1, got %d", areaNum, got)
		}
		if w.AreaSettings()[areaNum].AreaFlags&AreaNoFall == 0 {
			t.Fatalf("area %d: expected no fall flag", areaNum)
		}
	}
}

func TestNarrowRegionIsNotAFloor(t *testing.T) {
	b := NewBuilder()
	b.AddArea(geom.V(0, 0, 0), geom.V(64, 32, 64))
	b.AddArea(geom.V(64, 0, 0), geom.V(128, 32, 64))
	b.LinkWalk(1, 2)
	w, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	w.ComputeExtraAreaData(nil, DefaultClusterConfig())
	if got := w.AreaFloorClusterNum(1); got != 0 {
		t.Fatalf("expected corridor to stay unclustered, got %d", got)
	}
}

func TestStairsCluster(t *testing.T) {
	b := NewBuilder()
	for i := 0; i < 4; i++ {
		y, z := float64(16*i), float64(8*i)
		b.AddArea(geom.V(0, y, z), geom.V(128, y+16, z+64))
	}
	for i := 1; i < 4; i++ {
		b.LinkWalk(i, i+1)
	}
	w, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	summary := w.ComputeExtraAreaData(nil, DefaultClusterConfig())
	if summary.FloorClusters != 0 {
		t.Fatalf("expected no floor clusters, got %d", summary.FloorClusters)
	}
	if summary.StairsClusters != 1 {
		t.Fatalf("expected one stairs cluster, got %d", summary.StairsClusters)
	}
	steps := w.StairsClusters()[1]
	if len(steps) != 4 {
		t.Fatalf("expected four steps, got %v", steps)
	}
	for i, areaNum := range steps {
		if areaNum != i+1 {
			t.Fatalf("expected steps ordered from the lowest, got %v", steps)
		}
		if got := w.AreaStairsClusterNum(areaNum); got != 1 {
			t.Fatalf("area %d: expected stairs cluster 1, got %d", areaNum, got)
		}
	}
}

func TestLedgeJunkAndNoFallFlags(t *testing.T) {
	b := NewBuilder()
	b.AddArea(geom.V(0, 0, 64), geom.V(64, 64, 128))
	b.AddArea(geom.V(64, 0, 0), geom.V(128, 64, 64))
	b.AddArea(geom.V(128, 0, 0), geom.V(144, 16, 64))
	b.AddReach(1, 2, TravelWalkOffLedge, 80)
	b.AddReach(2, 3, TravelWalk, 20)
	w, err := b.Build()
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	summary := w.ComputeExtraAreaData(nil, DefaultClusterConfig())

	settings := w.AreaSettings()
	if settings[1].AreaFlags&AreaLedge == 0 {
		t.Fatalf("expected area 1 to be a ledge")
	}
	if settings[1].AreaFlags&AreaNoFall != 0 {
		t.Fatalf("expected a long drop to clear the no fall flag")
	}
	if settings[2].AreaFlags&AreaLedge != 0 {
		t.Fatalf("expected area 2 not to be a ledge")
	}
	if settings[2].AreaFlags&AreaNoFall == 0 {
		t.Fatalf("expected area 2 to be no fall")
	}
	if settings[3].AreaFlags&AreaJunk == 0 {
		t.Fatalf("expected tiny area 3 to be junk")
	}
	if settings[3].AreaFlags&AreaNoFall != 0 {
		t.Fatalf("expected junk area to skip the no fall flag")
	}
	if summary.Ledges != 1 || summary.Junk != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
}

func TestAreaTracerStopsAtFloor(t *testing.T) {
	w := cubeWorld(t)
	tracer := NewAreaTracer(w, 4)

	tr := tracer.Trace(geom.V(32, 32, 60), geom.V(32, 32, -40), geom.Vec3{}, geom.Vec3{}, trace.MaskSolid)
	if tr.StartSolid {
		t.Fatalf("expected trace to start in the open")
	}
	if tr.Fraction < 0.59 || tr.Fraction > 0.61 {
		t.Fatalf("expected fraction near 0.6, got %v", tr.Fraction)
	}
	if tr.Plane.Normal != geom.V(0, 0, 1) {
		t.Fatalf("expected an upward floor normal, got %v", tr.Plane.Normal)
	}
	if !trace.IsWalkablePlane(tr.Plane) {
		t.Fatalf("expected floor to be walkable")
	}

	open := tracer.Trace(geom.V(8, 8, 8), geom.V(56, 56, 56), geom.V(-4, -4, -4), geom.V(4, 4, 4), trace.MaskSolid)
	if open.Fraction != 1 {
		t.Fatalf("expected unobstructed trace, got fraction %v", open.Fraction)
	}

	solid := tracer.Trace(geom.V(-50, 0, 0), geom.V(32, 32, 32), geom.Vec3{}, geom.Vec3{}, trace.MaskSolid)
	if !solid.StartSolid || solid.AllSolid {
		t.Fatalf("expected start solid only, got %+v", solid)
	}
}

// slopedFloorTracer answers vertical rays with a floor hit halfway down whose plane
// normal has the given Z, and box traces through blocked(maxs).
func slopedFloorTracer(normalZ float64, blocked func(maxs geom.Vec3) bool) trace.Tracer {
	return trace.TracerFunc(func(start, end, mins, maxs geom.Vec3, mask int) trace.Result {
		if mins == (geom.Vec3{}) && maxs == (geom.Vec3{}) {
			if normalZ == 0 {
				return trace.Result{Fraction: 1, EndPos: end}
			}
			normal := geom.V(math.Sqrt(1-normalZ*normalZ), 0, normalZ)
			return trace.Result{Fraction: 0.5, EndPos: start.Lerp(end, 0.5), Plane: trace.Plane{Normal: normal}}
		}
		if blocked != nil && blocked(maxs) {
			return trace.Result{Fraction: 0, EndPos: start}
		}
		return trace.Result{Fraction: 1, EndPos: end}
	})
}

func TestRampFlags(t *testing.T) {
	cases := []struct {
		name     string
		normalZ  float64
		inclined bool
		slidable bool
	}{
		{name: "flat floor", normalZ: 1},
		{name: "gentle slope", normalZ: 0.97, inclined: true},
		{name: "slidable ramp", normalZ: 0.85, inclined: true, slidable: true},
		{name: "too steep to walk", normalZ: 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := gridWorld(t, 3)
			summary := w.ComputeExtraAreaData(slopedFloorTracer(tc.normalZ, nil), DefaultClusterConfig())
			flags := w.AreaSettings()[5].AreaFlags
			if got := flags&AreaInclinedFloor != 0; got != tc.inclined {
				t.Fatalf("expected inclined=%v, got flags %b", tc.inclined, flags)
			}
			if got := flags&AreaSlidableRamp != 0; got != tc.slidable {
				t.Fatalf("expected slidable=%v, got flags %b", tc.slidable, flags)
			}
			wantRamps := 0
			if tc.inclined {
				wantRamps = 9
			}
			if summary.Ramps != wantRamps {
				t.Fatalf("expected %d ramps, got %d", wantRamps, summary.Ramps)
			}
		})
	}
}

func TestSkipCollisionFlags(t *testing.T) {
	const all = AreaSkipCollision16 | AreaSkipCollision32 | AreaSkipCollision48
	// The center area of gridWorld is 64 wide, so a box widened by e reaches
	// 32+e from the center.
	cases := []struct {
		name    string
		blocked func(maxs geom.Vec3) bool
		want    int
	}{
		{name: "nothing hit", want: all},
		{name: "48 blocked", blocked: func(m geom.Vec3) bool { return m[0] > 32+16 }, want: AreaSkipCollision16 | AreaSkipCollision32},
		{name: "32 blocked", blocked: func(m geom.Vec3) bool { return m[0] > 32 }, want: AreaSkipCollision16},
		{name: "always blocked", blocked: func(geom.Vec3) bool { return true }, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := gridWorld(t, 3)
			w.ComputeExtraAreaData(slopedFloorTracer(0, tc.blocked), DefaultClusterConfig())
			if got := w.AreaSettings()[5].AreaFlags & all; got != tc.want {
				t.Fatalf("expected skip collision bits %b, got %b", tc.want, got)
			}
			if got := w.AreaSettings()[1].AreaFlags & all; got != 0 {
				t.Fatalf("expected wall area to be skipped, got %b", got)
			}
		})
	}

	t.Run("inclined floor is skipped", func(t *testing.T) {
		w := gridWorld(t, 3)
		w.ComputeExtraAreaData(slopedFloorTracer(0.9, nil), DefaultClusterConfig())
		if got := w.AreaSettings()[5].AreaFlags & all; got != 0 {
			t.Fatalf("expected ramp area to get no skip collision bits, got %b", got)
		}
	})
}
