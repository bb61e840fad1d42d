// Package tactical finds positions worth moving to in a fight: areas that
// give a height and visibility advantage, areas that hide from an attacker,
// and the precomputed spot registry used for roaming.
package tactical

import (
	"context"
	"math"
	"sort"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/route"
	"arena-bots/server/internal/trace"
	"arena-bots/server/logging"
	loggingtactical "arena-bots/server/logging/tactical"
)

// Stage capacities. A stage never examines more entries than its capacity
// even when feasible areas get skipped.
const (
	MaxCandidateAreas    = 384
	MaxReachCheckedAreas = 256
	MaxTraceCheckedAreas = 128
	maxBoundsAreas       = 8192
)

const (
	minAreaExtent = 24.0
	// Eye height above an area floor: origin above floor plus view height.
	viewGroundOffset = 24.0 + aas.PlayerViewHeight
	spotGroundOffset = 16.0
)

const badAreaContents = aas.ContentsLava | aas.ContentsSlime | aas.ContentsDoNotEnter |
	aas.ContentsJumpPad | aas.ContentsTeleporter | aas.ContentsMover | aas.ContentsWater

// CommonParams tune every spot search.
type CommonParams struct {
	Origin geom.Vec3
	// OriginAreaNum is looked up from Origin when zero.
	OriginAreaNum                int
	SearchRadius                 float64
	MinHeightAdvantageOverOrigin float64
	OriginWeightFalloffRatio     float64
	DistanceInfluence            float64
	TravelTimeInfluence          float64
	HeightInfluence              float64
	// LowestWeightTravelTimeMillis is the travel time at which the travel
	// time factor reaches zero.
	LowestWeightTravelTimeMillis float64
	LedgePenalty                 float64
	WallPenalty                  float64
	SpotProximityThreshold       float64
	CheckToAndBackReach          bool
	TravelFlags                  aas.TravelFlags
}

func DefaultCommonParams() CommonParams {
	return CommonParams{
		SearchRadius:                 768,
		DistanceInfluence:            0.9,
		TravelTimeInfluence:          0.9,
		HeightInfluence:              0.9,
		LowestWeightTravelTimeMillis: 5000,
		LedgePenalty:                 0.33,
		WallPenalty:                  0.33,
		SpotProximityThreshold:       64,
		TravelFlags:                  aas.TFLDefault,
	}
}

// Normalized clamps influences and fills unusable values with defaults.
func (p CommonParams) Normalized() CommonParams {
	defaults := DefaultCommonParams()
	p.OriginWeightFalloffRatio = geom.Clamp01(p.OriginWeightFalloffRatio)
	p.DistanceInfluence = geom.Clamp01(p.DistanceInfluence)
	p.TravelTimeInfluence = geom.Clamp01(p.TravelTimeInfluence)
	p.HeightInfluence = geom.Clamp01(p.HeightInfluence)
	p.LedgePenalty = geom.Clamp01(p.LedgePenalty)
	p.WallPenalty = geom.Clamp01(p.WallPenalty)
	// Anything below one millisecond makes every travel time look endless.
	p.LowestWeightTravelTimeMillis = math.Max(1, p.LowestWeightTravelTimeMillis)
	if p.SearchRadius <= 0 {
		p.SearchRadius = defaults.SearchRadius
	}
	if p.SpotProximityThreshold < 0 {
		p.SpotProximityThreshold = 0
	}
	if p.TravelFlags == 0 {
		p.TravelFlags = defaults.TravelFlags
	}
	return p
}

// AdvantageProblem asks for elevated areas that keep KeepVisibleOrigin in
// sight.
type AdvantageProblem struct {
	CommonParams
	KeepVisibleOrigin geom.Vec3
}

// CoverProblem asks for areas that block every ray from AttackerOrigin
// passing within HarmfulRayThickness of the area center.
type CoverProblem struct {
	CommonParams
	AttackerOrigin      geom.Vec3
	HarmfulRayThickness float64
}

// Candidate is an area and its score inside one search.
type Candidate struct {
	AreaNum int
	Score   float64
}

// sortCandidates orders by descending score keeping discovery order on ties.
func sortCandidates(c []Candidate) {
	sort.SliceStable(c, func(i, j int) bool { return c[i].Score > c[j].Score })
}

// Detector runs area based spot searches against one world.
type Detector struct {
	world     *aas.World
	linker    *aas.Linker
	oracle    route.Oracle
	tracer    trace.Tracer
	publisher logging.Publisher
	actor     logging.EntityRef
}

// DetectorOption customises a Detector.
type DetectorOption func(*Detector)

// WithPublisher reports search summaries to pub on behalf of actor.
func WithPublisher(pub logging.Publisher, actor logging.EntityRef) DetectorOption {
	return func(d *Detector) {
		d.publisher = pub
		d.actor = actor
	}
}

func NewDetector(world *aas.World, linker *aas.Linker, oracle route.Oracle, tracer trace.Tracer, opts ...DetectorOption) *Detector {
	d := &Detector{world: world, linker: linker, oracle: oracle, tracer: tracer}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

type searchStats struct {
	bounds, candidates, reachChecked, traceChecked int
}

// FindPositionalAdvantageSpots returns up to maxSpots floor points of areas
// above the origin that see KeepVisibleOrigin and many of each other.
func (d *Detector) FindPositionalAdvantageSpots(problem AdvantageProblem, maxSpots int) []geom.Vec3 {
	if d == nil || !d.world.IsLoaded() || maxSpots <= 0 {
		return nil
	}
	params := d.prepare(problem.CommonParams)
	var stats searchStats
	reachChecked := d.findReachCheckedAreas(params, &stats)

	visible := make([]Candidate, 0, MaxTraceCheckedAreas)
	areas := d.world.Areas()
	for i := 0; i < len(reachChecked) && i < MaxTraceCheckedAreas; i++ {
		if trace.Visible(d.tracer, eyePoint(areas[reachChecked[i].AreaNum]), problem.KeepVisibleOrigin) {
			visible = append(visible, reachChecked[i])
		}
	}
	stats.traceChecked = len(visible)
	d.sortByVisAndOtherFactors(params, visible)

	spots := d.copyResults(visible, params.SpotProximityThreshold, maxSpots)
	d.report("advantage", stats, len(spots))
	return spots
}

// FindCoverSpots returns up to maxSpots floor points of areas hidden from
// the attacker.
func (d *Detector) FindCoverSpots(problem CoverProblem, maxSpots int) []geom.Vec3 {
	if d == nil || !d.world.IsLoaded() || maxSpots <= 0 {
		return nil
	}
	params := d.prepare(problem.CommonParams)
	var stats searchStats
	reachChecked := d.findReachCheckedAreas(params, &stats)

	covered := make([]Candidate, 0, MaxTraceCheckedAreas)
	areas := d.world.Areas()
	for i := 0; i < len(reachChecked) && i < MaxTraceCheckedAreas; i++ {
		area := areas[reachChecked[i].AreaNum]
		if !d.looksLikeCover(area, problem) {
			continue
		}
		dims := geom.BoundedFraction(area.Maxs[0]-area.Mins[0], 64)
		dims *= geom.BoundedFraction(area.Maxs[1]-area.Mins[1], 64)
		covered = append(covered, Candidate{AreaNum: reachChecked[i].AreaNum, Score: reachChecked[i].Score * dims})
	}
	stats.traceChecked = len(covered)
	sortCandidates(covered)

	spots := d.copyResults(covered, params.SpotProximityThreshold, maxSpots)
	d.report("cover", stats, len(spots))
	return spots
}

func (d *Detector) prepare(params CommonParams) CommonParams {
	params = params.Normalized()
	if params.OriginAreaNum == 0 {
		params.OriginAreaNum = d.world.FindAreaNum(params.Origin)
	}
	return params
}

func (d *Detector) report(problem string, stats searchStats, spots int) {
	loggingtactical.SpotSearchCompleted(context.Background(), d.publisher, 0, d.actor, loggingtactical.SpotSearchPayload{
		Problem:      problem,
		BoundsAreas:  stats.bounds,
		Candidates:   stats.candidates,
		ReachChecked: stats.reachChecked,
		TraceChecked: stats.traceChecked,
		Spots:        spots,
	}, nil)
}

func (d *Detector) findReachCheckedAreas(params CommonParams, stats *searchStats) []Candidate {
	r := params.SearchRadius
	mins := params.Origin.Add(geom.V(-r, -r, params.MinHeightAdvantageOverOrigin))
	maxs := params.Origin.Add(geom.V(r, r, r))

	var boundsAreas []int
	if d.linker != nil {
		boundsAreas = d.linker.BBoxAreas(mins, maxs, maxBoundsAreas)
	}
	stats.bounds = len(boundsAreas)

	candidates := d.selectCandidateAreas(params, boundsAreas)
	stats.candidates = len(candidates)
	reachChecked := d.checkAreasReach(params, candidates)
	stats.reachChecked = len(reachChecked)
	return reachChecked
}

// SelectCandidateAreas applies the geometric filter and base scoring to
// areas, in the given order, and returns the survivors sorted by score.
func (d *Detector) SelectCandidateAreas(params CommonParams, areas []int) []Candidate {
	if d == nil || !d.world.IsLoaded() {
		return nil
	}
	return d.selectCandidateAreas(params.Normalized(), areas)
}

func (d *Detector) selectCandidateAreas(params CommonParams, areaNums []int) []Candidate {
	areas := d.world.Areas()
	settings := d.world.AreaSettings()
	minHeight := params.MinHeightAdvantageOverOrigin

	result := make([]Candidate, 0, MaxCandidateAreas)
	for _, areaNum := range areaNums {
		if len(result) >= MaxCandidateAreas {
			break
		}
		if areaNum <= 0 || areaNum >= len(areas) {
			continue
		}
		s := settings[areaNum]
		if s.AreaFlags&aas.AreaGrounded == 0 {
			continue
		}
		if s.AreaFlags&(aas.AreaDisabled|aas.AreaJunk) != 0 {
			continue
		}
		if s.Contents&badAreaContents != 0 {
			continue
		}
		if s.NumReachableAreas == 0 {
			continue
		}
		area := areas[areaNum]
		height := area.Mins[2] - params.Origin[2]
		if height < minHeight {
			continue
		}
		dx := area.Maxs[0] - area.Mins[0]
		dy := area.Maxs[1] - area.Mins[1]
		if dx < minAreaExtent || dy < minAreaExtent {
			continue
		}

		score := geom.ApplyFactor(1, geom.BoundedFraction(height-minHeight, params.SearchRadius), params.HeightInfluence)
		score *= 1 + 2*geom.BoundedFraction(dx-minAreaExtent, 96)
		score *= 1 + 2*geom.BoundedFraction(dy-minAreaExtent, 96)
		if s.AreaFlags&aas.AreaLedge != 0 {
			score *= params.LedgePenalty
		}
		if s.AreaFlags&aas.AreaWall != 0 {
			score *= params.WallPenalty
		}
		result = append(result, Candidate{AreaNum: areaNum, Score: score})
	}
	sortCandidates(result)
	return result
}

func (d *Detector) checkAreasReach(params CommonParams, candidates []Candidate) []Candidate {
	areas := d.world.Areas()
	result := make([]Candidate, 0, MaxReachCheckedAreas)
	if d.oracle == nil {
		return result
	}
	originArea := params.OriginAreaNum
	for i := 0; i < len(candidates) && i < MaxReachCheckedAreas; i++ {
		areaNum := candidates[i].AreaNum
		toSpot := d.oracle.TravelTimeToGoalArea(originArea, areaNum, params.TravelFlags)
		if toSpot == 0 {
			continue
		}
		millis := 10 * toSpot
		if params.CheckToAndBackReach {
			back := d.oracle.TravelTimeToGoalArea(areaNum, originArea, params.TravelFlags)
			if back == 0 {
				continue
			}
			millis = 10 * (toSpot + back)
		}
		ttFactor := travelTimeFactor(float64(millis), params.LowestWeightTravelTimeMillis)
		distFactor := distanceFactor(areas[areaNum].Center, params)
		score := geom.ApplyFactor(candidates[i].Score, distFactor, params.DistanceInfluence)
		score = geom.ApplyFactor(score, ttFactor, params.TravelTimeInfluence)
		result = append(result, Candidate{AreaNum: areaNum, Score: score})
	}
	sortCandidates(result)
	return result
}

// travelTimeFactor is 1 for an instant trip and falls to 0 at bound.
func travelTimeFactor(millis, bound float64) float64 {
	return math.Sqrt(1 - geom.BoundedFraction(millis, bound))
}

// distanceFactor grows up to the falloff distance and decays after it.
func distanceFactor(point geom.Vec3, params CommonParams) float64 {
	falloff := params.OriginWeightFalloffRatio * params.SearchRadius
	dist := point.DistanceTo(params.Origin)
	if dist < falloff {
		return dist / falloff
	}
	return geom.Clamp01(1 - (dist-falloff)/(1e-6+params.SearchRadius-falloff))
}

func eyePoint(area aas.Area) geom.Vec3 {
	return area.Center.WithZ(area.Mins[2] + viewGroundOffset)
}

func spotPoint(area aas.Area) geom.Vec3 {
	return area.Center.WithZ(area.Mins[2] + spotGroundOffset)
}

func (d *Detector) sortByVisAndOtherFactors(params CommonParams, candidates []Candidate) {
	n := len(candidates)
	if n == 0 {
		return
	}
	areas := d.world.Areas()
	settings := d.world.AreaSettings()
	points := make([]geom.Vec3, n)
	for i, c := range candidates {
		points[i] = eyePoint(areas[c.AreaNum])
	}
	visible := make([]int, n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if trace.Visible(d.tracer, points[i], points[j]) {
				visible[i]++
				visible[j]++
			}
		}
	}

	minHeight := params.MinHeightAdvantageOverOrigin
	for i := range candidates {
		visFactor := math.Sqrt(float64(visible[i]) / float64(n))
		candidates[i].Score *= 0.1 + 0.9*visFactor

		areaNum := candidates[i].AreaNum
		height := areas[areaNum].Mins[2] - params.Origin[2] - minHeight
		heightFactor := geom.BoundedFraction(height, params.SearchRadius-minHeight)
		candidates[i].Score = geom.ApplyFactor(candidates[i].Score, heightFactor, params.HeightInfluence)

		flags := settings[areaNum].AreaFlags
		if flags&aas.AreaWall != 0 {
			candidates[i].Score *= params.WallPenalty
		}
		if flags&aas.AreaLedge != 0 {
			candidates[i].Score *= params.LedgePenalty
		}
	}
	sortCandidates(candidates)
}

func (d *Detector) looksLikeCover(area aas.Area, problem CoverProblem) bool {
	attacker := problem.AttackerOrigin
	if trace.Visible(d.tracer, attacker, area.Center) {
		return false
	}
	t := problem.HarmfulRayThickness
	bounds := [2]geom.Vec3{
		area.Center.Add(geom.V(-t, -t, -t)),
		area.Center.Add(geom.V(t, t, t)),
	}
	for i := 0; i < 8; i++ {
		end := geom.Vec3{
			bounds[(i>>2)&1][0],
			bounds[(i>>1)&1][1],
			bounds[(i>>0)&1][2],
		}
		if trace.Visible(d.tracer, attacker, end) {
			return false
		}
	}
	return true
}

// copyResults keeps the best not yet excluded area and excludes every lower
// scored area whose spot lies closer than threshold to it.
func (d *Detector) copyResults(results []Candidate, threshold float64, maxSpots int) []geom.Vec3 {
	if maxSpots <= 0 || len(results) == 0 {
		return nil
	}
	areas := d.world.Areas()
	excluded := make([]bool, len(results))
	spots := make([]geom.Vec3, 0, maxSpots)
	thresholdSq := threshold * threshold
	for kept := 0; kept < len(results) && len(spots) < maxSpots; kept++ {
		if excluded[kept] {
			continue
		}
		keptPoint := spotPoint(areas[results[kept].AreaNum])
		spots = append(spots, keptPoint)
		for tested := kept + 1; tested < len(results); tested++ {
			if excluded[tested] {
				continue
			}
			if spotPoint(areas[results[tested].AreaNum]).SquareDistanceTo(keptPoint) < thresholdSq {
				excluded[tested] = true
			}
		}
	}
	return spots
}
