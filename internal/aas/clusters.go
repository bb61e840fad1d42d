package aas

import (
	"math"
	"sort"
)

// ClusterConfig holds the empirically tuned thresholds of the floor and
// stairs cluster heuristics.
type ClusterConfig struct {
	FloorHeightEpsilon     float64 `toml:"floor_height_epsilon" json:"floor_height_epsilon"`
	MinFloorExtent         float64 `toml:"min_floor_extent" json:"min_floor_extent"`
	StairsMinStep          float64 `toml:"stairs_min_step" json:"stairs_min_step"`
	StairsMaxStep          float64 `toml:"stairs_max_step" json:"stairs_max_step"`
	StairsTreadRatio       float64 `toml:"stairs_tread_ratio" json:"stairs_tread_ratio"`
	StairsMinAreas         int     `toml:"stairs_min_areas" json:"stairs_min_areas"`
	StairsMaxAreas         int     `toml:"stairs_max_areas" json:"stairs_max_areas"`
	StairsConformanceRatio float64 `toml:"stairs_conformance_ratio" json:"stairs_conformance_ratio"`
	StairsHeightEpsilon    float64 `toml:"stairs_height_epsilon" json:"stairs_height_epsilon"`
	StairsGrowthRatio      float64 `toml:"stairs_growth_ratio" json:"stairs_growth_ratio"`
}

func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		FloorHeightEpsilon:     1,
		MinFloorExtent:         48,
		StairsMinStep:          4,
		StairsMaxStep:          -PlayerBoxStandMins[2],
		StairsTreadRatio:       4,
		StairsMinAreas:         3,
		StairsMaxAreas:         128,
		StairsConformanceRatio: 1.25,
		StairsHeightEpsilon:    1,
		StairsGrowthRatio:      1.25,
	}
}

// Normalized fills unset fields with defaults.
func (c ClusterConfig) Normalized() ClusterConfig {
	def := DefaultClusterConfig()
	if c.FloorHeightEpsilon <= 0 {
		c.FloorHeightEpsilon = def.FloorHeightEpsilon
	}
	if c.MinFloorExtent <= 0 {
		c.MinFloorExtent = def.MinFloorExtent
	}
	if c.StairsMinStep <= 0 {
		c.StairsMinStep = def.StairsMinStep
	}
	if c.StairsMaxStep <= c.StairsMinStep {
		c.StairsMaxStep = def.StairsMaxStep
	}
	if c.StairsTreadRatio <= 1 {
		c.StairsTreadRatio = def.StairsTreadRatio
	}
	if c.StairsMinAreas < 2 {
		c.StairsMinAreas = def.StairsMinAreas
	}
	if c.StairsMaxAreas < c.StairsMinAreas {
		c.StairsMaxAreas = def.StairsMaxAreas
	}
	if c.StairsConformanceRatio <= 1 {
		c.StairsConformanceRatio = def.StairsConformanceRatio
	}
	if c.StairsHeightEpsilon <= 0 {
		c.StairsHeightEpsilon = def.StairsHeightEpsilon
	}
	if c.StairsGrowthRatio <= 0 {
		c.StairsGrowthRatio = def.StairsGrowthRatio
	}
	return c
}

// classify results of a flood step.
const (
	floodReject = -1 // mark flooded and skip
	floodSkip   = 0  // skip, may be reached through another area
	floodAccept = 1
)

type flooder struct {
	w          *World
	flooded    []bool
	results    []int
	mins, maxs [2]float64
	classify   func(curr int, reach Reachability) int
}

func (f *flooder) reset() {
	for i := range f.flooded {
		f.flooded[i] = false
	}
	f.results = f.results[:0]
	f.mins = [2]float64{math.Inf(1), math.Inf(1)}
	f.maxs = [2]float64{math.Inf(-1), math.Inf(-1)}
}

func (f *flooder) flood(areaNum int) {
	f.results = append(f.results, areaNum)
	f.flooded[areaNum] = true
	area := &f.w.areas[areaNum]
	for i := 0; i < 2; i++ {
		f.mins[i] = math.Min(f.mins[i], area.Mins[i])
		f.maxs[i] = math.Max(f.maxs[i], area.Maxs[i])
	}
	for _, r := range f.w.ReachabilitiesOf(areaNum) {
		if r.AreaNum <= 0 || r.AreaNum >= len(f.flooded) || f.flooded[r.AreaNum] {
			continue
		}
		switch f.classify(areaNum, r) {
		case floodReject:
			f.flooded[r.AreaNum] = true
		case floodAccept:
			f.flood(r.AreaNum)
		}
	}
}

func looksLikeFloor(s AreaSettings) bool {
	return s.AreaFlags&AreaGrounded != 0 && s.AreaFlags&AreaInclinedFloor == 0
}

func (w *World) looksLikeStairs(areaNum int, cfg ClusterConfig) bool {
	if !looksLikeFloor(w.settings[areaNum]) {
		return false
	}
	area := &w.areas[areaNum]
	dx := area.Maxs[0] - area.Mins[0]
	dy := area.Maxs[1] - area.Mins[1]
	return dx/dy > cfg.StairsTreadRatio || dy/dx > cfg.StairsTreadRatio
}

func floorRegionDegenerate(f *flooder, cfg ClusterConfig) bool {
	dimsSum := 0.0
	for i := 0; i < 2; i++ {
		dims := f.maxs[i] - f.mins[i]
		if dims < cfg.MinFloorExtent {
			return true
		}
		dimsSum += dims
	}
	// Few areas must span a larger region to count as a floor.
	switch len(f.results) {
	case 1:
		return dimsSum < 256+32
	case 2:
		return dimsSum < 192+32
	case 3:
		return dimsSum < 144+32
	default:
		return dimsSum < 144
	}
}

func (w *World) computeClusters(cfg ClusterConfig) {
	numAreas := w.NumAreas()
	w.floorClusterNums = make([]int, len(w.areas))
	w.stairsClusterNums = make([]int, len(w.areas))
	w.floorClusters = [][]int{nil}
	w.stairsClusters = [][]int{nil}

	f := &flooder{w: w, flooded: make([]bool, len(w.areas))}
	f.classify = func(curr int, r Reachability) int {
		if r.TravelType != TravelWalk {
			return floodSkip
		}
		if math.Abs(w.areas[r.AreaNum].Mins[2]-w.areas[curr].Mins[2]) > cfg.FloorHeightEpsilon {
			return floodReject
		}
		if !looksLikeFloor(w.settings[r.AreaNum]) {
			return floodReject
		}
		return floodAccept
	}
	for areaNum := 1; areaNum < numAreas; areaNum++ {
		if w.floorClusterNums[areaNum] != 0 || !looksLikeFloor(w.settings[areaNum]) {
			continue
		}
		f.reset()
		f.flood(areaNum)
		if len(f.results) == 0 || floorRegionDegenerate(f, cfg) {
			continue
		}
		clusterNum := len(w.floorClusters)
		members := append([]int(nil), f.results...)
		for _, a := range members {
			w.floorClusterNums[a] = clusterNum
		}
		w.floorClusters = append(w.floorClusters, members)
	}

	f.classify = func(curr int, r Reachability) int {
		switch r.TravelType {
		case TravelWalk, TravelWalkOffLedge, TravelJump:
		default:
			return floodSkip
		}
		rise := math.Abs(w.areas[r.AreaNum].Mins[2] - w.areas[curr].Mins[2])
		if rise < cfg.StairsMinStep || rise > cfg.StairsMaxStep {
			return floodReject
		}
		if w.floorClusterNums[curr] != 0 {
			return floodReject
		}
		if !w.looksLikeStairs(r.AreaNum, cfg) {
			return floodReject
		}
		return floodAccept
	}
	for areaNum := 1; areaNum < numAreas; areaNum++ {
		if w.floorClusterNums[areaNum] != 0 || w.stairsClusterNums[areaNum] != 0 {
			continue
		}
		steps := w.buildStairs(f, areaNum, cfg)
		if steps == nil {
			continue
		}
		clusterNum := len(w.stairsClusters)
		for _, a := range steps {
			w.stairsClusterNums[a] = clusterNum
		}
		w.stairsClusters = append(w.stairsClusters, steps)
	}

	if w.logger != nil {
		w.logger.Printf("aas: %d floor clusters, %d stairs clusters (including dummy zero ones) detected",
			len(w.floorClusters), len(w.stairsClusters))
	}
}

// buildStairs floods from start and returns the areas of a staircase ordered
// from the lowest step, or nil when the flooded region does not look like one.
func (w *World) buildStairs(f *flooder, start int, cfg ClusterConfig) []int {
	if !w.looksLikeStairs(start, cfg) {
		return nil
	}
	f.reset()
	f.flood(start)
	numAreas := len(f.results)
	if numAreas < cfg.StairsMinAreas {
		return nil
	}
	if numAreas > cfg.StairsMaxAreas {
		if w.logger != nil {
			w.logger.Printf("aas: too many stairs-like areas in cluster started at %d", start)
		}
		return nil
	}

	steps := append([]int(nil), f.results...)
	var avg [2]float64
	for _, a := range steps {
		for j := 0; j < 2; j++ {
			avg[j] += w.areas[a].Maxs[j] - w.areas[a].Mins[j]
		}
	}
	for j := 0; j < 2; j++ {
		avg[j] /= float64(len(steps))
	}
	sort.SliceStable(steps, func(i, j int) bool {
		return w.areas[steps[i]].Mins[2] < w.areas[steps[j]].Mins[2]
	})

	conforms := func(areaNum int) bool {
		area := &w.areas[areaNum]
		for j := 0; j < 2; j++ {
			dim := area.Maxs[j] - area.Mins[j]
			if dim < avg[j]/cfg.StairsConformanceRatio || dim > avg[j]*cfg.StairsConformanceRatio {
				return false
			}
		}
		return true
	}

	// Huge entrance or exit areas are chopped.
	first, last := 0, len(steps)-1
	if !conforms(steps[first]) {
		first++
	}
	if !conforms(steps[last]) {
		last--
	}
	if last+1-first < cfg.StairsMinAreas {
		return nil
	}

	prev := w.areas[steps[first]].Mins[2]
	for i := first + 1; i < last; i++ {
		curr := w.areas[steps[i]].Mins[2]
		if math.Abs(curr-prev) <= cfg.StairsHeightEpsilon {
			return nil
		}
		prev = curr
	}

	// A landing in the middle makes the 2D footprint grow abruptly; cut the
	// sequence there.
	lo := [2]float64{w.areas[steps[first]].Mins[0], w.areas[steps[first]].Mins[1]}
	hi := [2]float64{w.areas[steps[first]].Maxs[0], w.areas[steps[first]].Maxs[1]}
	oldTotal := (hi[0] - lo[0]) * (hi[1] - lo[1])
	growthThreshold := cfg.StairsGrowthRatio * avg[0] * avg[1]
	for i := first + 1; i < last; i++ {
		area := &w.areas[steps[i]]
		for j := 0; j < 2; j++ {
			lo[j] = math.Min(lo[j], area.Mins[j])
			hi[j] = math.Max(hi[j], area.Maxs[j])
		}
		newTotal := (hi[0] - lo[0]) * (hi[1] - lo[1])
		if newTotal-oldTotal > growthThreshold {
			last = i - 1
			break
		}
		oldTotal = newTotal
	}
	if last+1-first < cfg.StairsMinAreas {
		return nil
	}

	// Sorting by height must keep neighbouring steps connected.
	for i := first; i < last-1; i++ {
		prevArea, currArea := steps[i], steps[i+1]
		connected := false
		for _, r := range w.ReachabilitiesOf(currArea) {
			if r.AreaNum == prevArea {
				connected = true
				break
			}
		}
		if !connected {
			return nil
		}
	}
	return steps[first : last+1]
}
