package tactical

import (
	"context"
	"log"
	"math"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/telemetry"
	"arena-bots/server/internal/trace"
	"arena-bots/server/logging"
	loggingtactical "arena-bots/server/logging/tactical"
)

const (
	MaxSpots         = 2048
	MaxSpotsPerQuery = 768

	minGridCellSide  = 512
	maxGridDimension = 32

	// NoSpot is returned by FindSpotsInRadius when the origin is not inside
	// any spot.
	NoSpot = -1

	spotOffsetStep       = 24.0
	spotProximity        = 96.0
	intermediatePointGap = 108
	groundProbeDepth     = 32.0
	stepSize             = 18.0
)

var (
	spotBoundsMins   = geom.V(-24, -24, 0)
	spotBoundsMaxs   = geom.V(24, 24, 64)
	spotClearMins    = geom.V(-36, -36, 0)
	spotClearMaxs    = geom.V(36, 36, 72)
	walkabilityMins  = geom.V(-2, -2, stepSize+4).Add(aas.PlayerBoxStandMins)
	walkabilityMaxs  = geom.V(2, 2, 2).Add(aas.PlayerBoxStandMaxs)
	spotBadContents  = aas.ContentsLava | aas.ContentsSlime | aas.ContentsDoNotEnter
	spotAreaContents = spotBadContents | aas.ContentsWater
)

// Spot is a precomputed standing position. Origin is where a player
// standing there would have its origin.
type Spot struct {
	Origin  geom.Vec3 `msgpack:"origin"`
	AreaNum int       `msgpack:"area"`
	AbsMins geom.Vec3 `msgpack:"mins"`
	AbsMaxs geom.Vec3 `msgpack:"maxs"`
}

func newSpot(origin geom.Vec3, areaNum int) Spot {
	return Spot{
		Origin:  origin,
		AreaNum: areaNum,
		AbsMins: origin.Add(spotBoundsMins),
		AbsMaxs: origin.Add(spotBoundsMaxs),
	}
}

// Registry holds the spots of one level indexed by a uniform grid.
type Registry struct {
	checksum string
	spots    []Spot
	grid     spotsGrid
	logger   telemetry.Logger
}

// NewRegistry indexes already picked spots of world.
func NewRegistry(world *aas.World, spots []Spot) *Registry {
	r := &Registry{
		checksum: world.Checksum(),
		spots:    spots,
		logger:   telemetry.WrapLogger(log.Default()),
	}
	r.grid.setup(worldBounds(world))
	for i := range spots {
		r.grid.add(spots[i].Origin, i)
	}
	return r
}

func (r *Registry) Checksum() string { return r.checksum }

func (r *Registry) NumSpots() int {
	if r == nil {
		return 0
	}
	return len(r.spots)
}

func (r *Registry) Spots() []Spot {
	if r == nil {
		return nil
	}
	return r.spots
}

func (r *Registry) Spot(num int) (Spot, bool) {
	if r == nil || num < 0 || num >= len(r.spots) {
		return Spot{}, false
	}
	return r.spots[num], true
}

// FindSpotsInRadius returns the spots whose origin lies strictly within
// radius of origin, and the spot whose bounds contain origin or NoSpot.
func (r *Registry) FindSpotsInRadius(origin geom.Vec3, radius float64) ([]int, int) {
	if r == nil || len(r.spots) == 0 {
		return nil, NoSpot
	}
	return r.grid.findInRadius(r.spots, origin, radius, r.logger)
}

func worldBounds(world *aas.World) (geom.Vec3, geom.Vec3) {
	areas := world.Areas()
	if len(areas) < 2 {
		return geom.Vec3{}, geom.Vec3{}
	}
	mins, maxs := areas[1].Mins, areas[1].Maxs
	for _, a := range areas[2:] {
		for i := 0; i < 3; i++ {
			mins[i] = math.Min(mins[i], a.Mins[i])
			maxs[i] = math.Max(maxs[i], a.Maxs[i])
		}
	}
	return mins, maxs
}

type spotsGrid struct {
	worldMins geom.Vec3
	worldMaxs geom.Vec3
	cellSize  [3]float64
	numCells  [3]int
	cells     map[int][]int
}

func (g *spotsGrid) setup(mins, maxs geom.Vec3) {
	g.worldMins, g.worldMaxs = mins, maxs
	g.cells = make(map[int][]int)
	for i := 0; i < 3; i++ {
		dim := int(maxs[i] - mins[i])
		if dim > minGridCellSide*maxGridDimension {
			g.cellSize[i] = float64(dim / maxGridDimension)
			g.numCells[i] = maxGridDimension
		} else {
			g.cellSize[i] = minGridCellSide
			g.numCells[i] = dim/minGridCellSide + 1
		}
	}
}

func (g *spotsGrid) cellIndex(point geom.Vec3) [3]int {
	var idx [3]int
	for i := 0; i < 3; i++ {
		v := int((point[i] - g.worldMins[i]) / g.cellSize[i])
		if v < 0 {
			v = 0
		}
		if v >= g.numCells[i] {
			v = g.numCells[i] - 1
		}
		idx[i] = v
	}
	return idx
}

func (g *spotsGrid) cellNum(i, j, k int) int {
	return i*(g.numCells[1]*g.numCells[2]) + j*g.numCells[2] + k
}

func (g *spotsGrid) add(origin geom.Vec3, spotNum int) {
	idx := g.cellIndex(origin)
	num := g.cellNum(idx[0], idx[1], idx[2])
	g.cells[num] = append(g.cells[num], spotNum)
}

func (g *spotsGrid) findInRadius(spots []Spot, origin geom.Vec3, radius float64, logger telemetry.Logger) ([]int, int) {
	r := geom.V(radius, radius, radius)
	lo := g.cellIndex(origin.Sub(r))
	hi := g.cellIndex(origin.Add(r))
	radiusSq := radius * radius
	inside := NoSpot
	var found []int
	for i := lo[0]; i <= hi[0]; i++ {
		for j := lo[1]; j <= hi[1]; j++ {
			for k := lo[2]; k <= hi[2]; k++ {
				for _, spotNum := range g.cells[g.cellNum(i, j, k)] {
					spot := &spots[spotNum]
					if spot.Origin.SquareDistanceTo(origin) >= radiusSq {
						continue
					}
					if len(found) >= MaxSpotsPerQuery {
						if logger != nil {
							logger.Printf("tactical: spots query at %v truncated to %d spots", origin, MaxSpotsPerQuery)
						}
						return found, inside
					}
					found = append(found, spotNum)
					if geom.BoundsContain(spot.AbsMins, spot.AbsMaxs, origin) {
						inside = spotNum
					}
				}
			}
		}
	}
	return found, inside
}

// RegistryBuilder picks spots of a level.
type RegistryBuilder struct {
	world     *aas.World
	tracer    trace.Tracer
	publisher logging.Publisher

	spots []Spot
	grid  spotsGrid
}

func NewRegistryBuilder(world *aas.World, tracer trace.Tracer, pub logging.Publisher) *RegistryBuilder {
	return &RegistryBuilder{world: world, tracer: tracer, publisher: pub}
}

// Build picks spots and returns the indexed registry. A nil registry is
// returned for an unloaded world.
func (b *RegistryBuilder) Build() *Registry {
	if !b.world.IsLoaded() || b.tracer == nil {
		return nil
	}
	b.spots = b.spots[:0]
	b.grid.setup(worldBounds(b.world))
	for _, point := range b.candidatePoints() {
		if len(b.spots) >= MaxSpots {
			break
		}
		b.tryAddSpotFromPoint(point)
	}
	registry := NewRegistry(b.world, append([]Spot(nil), b.spots...))
	loggingtactical.SpotRegistryBuilt(context.Background(), b.publisher, 0, loggingtactical.SpotRegistryPayload{
		Checksum: registry.Checksum(),
		Spots:    registry.NumSpots(),
		Source:   "built",
	}, nil)
	return registry
}

func looksLikeGoodArea(s aas.AreaSettings, badContents int) bool {
	if s.AreaFlags&aas.AreaGrounded == 0 {
		return false
	}
	if s.AreaFlags&(aas.AreaJunk|aas.AreaDisabled) != 0 {
		return false
	}
	return s.Contents&badContents == 0
}

// candidatePoints lists face points of every good area first, then their
// floor centers and intermediate points.
func (b *RegistryBuilder) candidatePoints() []geom.Vec3 {
	settings := b.world.AreaSettings()
	areas := b.world.Areas()
	var good []int
	for areaNum := 1; areaNum < b.world.NumAreas(); areaNum++ {
		if looksLikeGoodArea(settings[areaNum], spotAreaContents) {
			good = append(good, areaNum)
		}
	}

	var points []geom.Vec3
	for _, areaNum := range good {
		points = b.appendFacePoints(points, areaNum)
	}
	for _, areaNum := range good {
		area := areas[areaNum]
		floor := area.Center.WithZ(area.Mins[2])
		points = append(points, floor)
		xSteps := int(area.Maxs[0]-area.Mins[0]) / intermediatePointGap
		ySteps := int(area.Maxs[1]-area.Mins[1]) / intermediatePointGap
		if xSteps < 2 || ySteps < 2 {
			continue
		}
		for xi := 0; xi < xSteps; xi++ {
			for yi := 0; yi < ySteps; yi++ {
				points = append(points, geom.V(
					area.Mins[0]+float64(xi*intermediatePointGap),
					area.Mins[1]+float64(yi*intermediatePointGap),
					area.Mins[2],
				))
			}
		}
	}
	return points
}

// appendFacePoints adds the middle of the lowest horizontal edge of every
// vertical face shared with another area.
func (b *RegistryBuilder) appendFacePoints(points []geom.Vec3, areaNum int) []geom.Vec3 {
	w := b.world
	faces, planes := w.Faces(), w.Planes()
	edges, edgeIndex, vertexes := w.Edges(), w.EdgeIndex(), w.Vertexes()
	for _, idx := range w.AreaFaces(areaNum) {
		faceNum := abs(idx)
		if faceNum >= len(faces) {
			continue
		}
		face := faces[faceNum]
		if face.FrontArea == 0 || face.BackArea == 0 {
			continue
		}
		if math.Abs(planes[face.PlaneNum].Normal[2]) > 0.1 {
			continue
		}
		lowest := -1
		minZ := math.Inf(1)
		for e := face.FirstEdge; e < face.FirstEdge+face.NumEdges && e < len(edgeIndex); e++ {
			edgeNum := abs(edgeIndex[e])
			v1, v2 := vertexes[edges[edgeNum].V[0]], vertexes[edges[edgeNum].V[1]]
			if math.Abs(v1[2]-v2[2]) > 1 || v1[2] >= minZ {
				continue
			}
			minZ = v1[2]
			lowest = edgeNum
		}
		if lowest < 0 {
			continue
		}
		edge := edges[lowest]
		points = append(points, vertexes[edge.V[0]].Add(vertexes[edge.V[1]]).Scale(0.5))
	}
	return points
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// tryAddSpotFromPoint probes a 6x6 pattern around point and keeps the good
// position that sees the most nearby spots.
func (b *RegistryBuilder) tryAddSpotFromPoint(point geom.Vec3) {
	nearby, _ := b.grid.findInRadius(b.spots, point, 1024, nil)

	bestVis := -1
	bestArea := 0
	var bestOrigin geom.Vec3
	for i := -3; i < 3; i++ {
		for j := -3; j < 3; j++ {
			probe := point.Add(geom.V(float64(i)*spotOffsetStep, float64(j)*spotOffsetStep, 1))
			origin, areaNum, numVis, ok := b.goodSpotPosition(probe, nearby)
			if ok && numVis > bestVis {
				bestVis, bestArea, bestOrigin = numVis, areaNum, origin
			}
		}
	}
	if bestVis < 0 {
		return
	}
	b.spots = append(b.spots, newSpot(bestOrigin, bestArea))
	b.grid.add(bestOrigin, len(b.spots)-1)
}

func (b *RegistryBuilder) goodSpotPosition(point geom.Vec3, nearby []int) (geom.Vec3, int, int, bool) {
	room := b.tracer.Trace(point, point, spotClearMins, spotClearMaxs, trace.MaskSolid)
	if room.Fraction != 1 || room.StartSolid {
		return geom.Vec3{}, 0, 0, false
	}
	ground := trace.Ray(b.tracer, point, point.Sub(geom.V(0, 0, groundProbeDepth)), trace.MaskSolid)
	if ground.Fraction == 1 || ground.StartSolid || ground.AllSolid {
		return geom.Vec3{}, 0, 0, false
	}
	if ground.Contents&(trace.ContentsLava|trace.ContentsSlime) != 0 {
		return geom.Vec3{}, 0, 0, false
	}
	if !trace.IsWalkablePlane(ground.Plane) {
		return geom.Vec3{}, 0, 0, false
	}

	origin := ground.EndPos.Add(geom.V(0, 0, -aas.PlayerBoxStandMins[2]+1+4))
	origin = truncateToGrid(origin, 4)

	areaNum := b.goodAreaNum(origin)
	if areaNum == 0 {
		return geom.Vec3{}, 0, 0, false
	}

	numVis := 0
	for _, spotNum := range nearby {
		spot := b.spots[spotNum]
		tr := b.tracer.Trace(origin, spot.Origin, walkabilityMins, walkabilityMaxs, trace.MaskSolid)
		if tr.Fraction != 1 || tr.StartSolid {
			continue
		}
		if origin.SquareDistanceTo(spot.Origin) < spotProximity*spotProximity {
			return geom.Vec3{}, 0, 0, false
		}
		numVis++
	}
	return origin, areaNum, numVis, true
}

// truncateToGrid drops the fractional part of every axis towards zero onto
// a multiple of step, matching how world state origins are quantised.
func truncateToGrid(v geom.Vec3, step int) geom.Vec3 {
	var out geom.Vec3
	for i := 0; i < 3; i++ {
		out[i] = float64(step * (int(v[i]) / step))
	}
	return out
}

func isWalkOrTeleport(travelType int) bool {
	t := travelType & aas.TravelTypeMask
	return t == aas.TravelWalk || t == aas.TravelTeleport
}

// goodAreaNum returns the area of point when it is good and connected to
// at least two good areas by walk or teleport reachabilities both ways.
func (b *RegistryBuilder) goodAreaNum(point geom.Vec3) int {
	w := b.world
	areaNum := w.FindAreaNum(point)
	if areaNum == 0 {
		return 0
	}
	settings := w.AreaSettings()
	if !looksLikeGoodArea(settings[areaNum], spotBadContents) {
		return 0
	}
	numGood := 0
	for _, reach := range w.ReachabilitiesOf(areaNum) {
		if !isWalkOrTeleport(reach.TravelType) {
			continue
		}
		if !looksLikeGoodArea(settings[reach.AreaNum], spotBadContents) {
			continue
		}
		for _, back := range w.ReachabilitiesOf(reach.AreaNum) {
			if back.AreaNum != areaNum || !isWalkOrTeleport(back.TravelType) {
				continue
			}
			numGood++
			if numGood > 1 {
				return areaNum
			}
		}
	}
	return 0
}
