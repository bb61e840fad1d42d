// Package roaming picks exploration targets for idle agents. Targets are
// biased away from tactical spots the agent visited recently.
package roaming

import (
	"math/rand"
	"time"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/route"
	"arena-bots/server/internal/tactical"
	"arena-bots/server/internal/trace"
)

// NoSpot is the far-away point reported by callers that need a position
// even when no roaming target exists.
var NoSpot = geom.V(-99999, -99999, -99999)

const (
	neverVisited = time.Duration(-1)

	nearbyBoxHalfWidth  = 192.0
	nearbyBoxHalfHeight = 128.0
	maxNearbyAreas      = 64
	minAreaFootprint    = 24.0
	minAreaDistance     = 12.0
	// enabledSpotsToKeep is how many unvisited spots avoid a wholesale reset.
	enabledSpotsToKeep = 3
)

// Config tunes a Selector.
type Config struct {
	VisitedSpotExpiration time.Duration `toml:"visited_spot_expiration" json:"visited_spot_expiration"`
	CandidatesCapacity    int           `toml:"candidates_capacity" json:"candidates_capacity"`
	MinSpotDistance       float64       `toml:"min_spot_distance" json:"min_spot_distance"`
	ReachedRadius         float64       `toml:"reached_radius" json:"reached_radius"`
}

func DefaultConfig() Config {
	return Config{
		VisitedSpotExpiration: 10 * time.Second,
		CandidatesCapacity:    16,
		MinSpotDistance:       384,
		ReachedRadius:         128,
	}
}

// Normalized fills zero or negative fields with defaults.
func (c Config) Normalized() Config {
	def := DefaultConfig()
	if c.VisitedSpotExpiration <= 0 {
		c.VisitedSpotExpiration = def.VisitedSpotExpiration
	}
	if c.CandidatesCapacity <= 0 {
		c.CandidatesCapacity = def.CandidatesCapacity
	}
	if c.MinSpotDistance < 0 {
		c.MinSpotDistance = def.MinSpotDistance
	}
	if c.ReachedRadius <= 0 {
		c.ReachedRadius = def.ReachedRadius
	}
	return c
}

// Agent is the per-tick view of the agent a Selector works for.
type Agent struct {
	Origin          geom.Vec3
	CurrAreaNum     int
	GroundedAreaNum int
	PreferredFlags  aas.TravelFlags
	AllowedFlags    aas.TravelFlags
}

func (a Agent) fromAreas() []int {
	if a.CurrAreaNum == a.GroundedAreaNum {
		return []int{a.CurrAreaNum}
	}
	return []int{a.CurrAreaNum, a.GroundedAreaNum}
}

func (a Agent) travelFlags() []aas.TravelFlags {
	if a.PreferredFlags == a.AllowedFlags {
		return []aas.TravelFlags{a.AllowedFlags}
	}
	return []aas.TravelFlags{a.PreferredFlags, a.AllowedFlags}
}

// Selector keeps the roaming state of one agent. It is not safe for
// concurrent use.
type Selector struct {
	world    *aas.World
	linker   *aas.Linker
	registry *tactical.Registry
	oracle   route.Oracle
	tracer   trace.Tracer
	rng      *rand.Rand
	cfg      Config

	visitedAt []time.Duration

	currSpotNum int
	spotOrigin  geom.Vec3
	spotFound   bool

	cachedAt    time.Duration
	cachedValid bool
	cached      geom.Vec3
	cachedOK    bool
}

// NewSelector creates a selector with an empty visit history. A nil rng
// falls back to a fixed seed so runs stay reproducible.
func NewSelector(world *aas.World, linker *aas.Linker, registry *tactical.Registry, oracle route.Oracle, tracer trace.Tracer, rng *rand.Rand, cfg Config) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	s := &Selector{
		world:       world,
		linker:      linker,
		registry:    registry,
		oracle:      oracle,
		tracer:      tracer,
		rng:         rng,
		cfg:         cfg.Normalized(),
		visitedAt:   make([]time.Duration, registry.NumSpots()),
		currSpotNum: tactical.NoSpot,
	}
	s.clearVisitedSpots()
	return s
}

func (s *Selector) clearVisitedSpots() {
	for i := range s.visitedAt {
		s.visitedAt[i] = neverVisited
	}
}

// CurrentSpotNum returns the tactical spot currently used as a target or
// tactical.NoSpot.
func (s *Selector) CurrentSpotNum() int { return s.currSpotNum }

// GetCachedRoamingSpot returns the roaming target for the tick at now. The
// target is computed at most once per distinct now.
func (s *Selector) GetCachedRoamingSpot(now time.Duration, agent Agent) (geom.Vec3, bool) {
	if s.cachedValid && s.cachedAt == now {
		return s.cached, s.cachedOK
	}
	s.cached, s.cachedOK = s.roamingSpot(now, agent)
	s.cachedAt = now
	s.cachedValid = true
	return s.cached, s.cachedOK
}

func (s *Selector) roamingSpot(now time.Duration, agent Agent) (geom.Vec3, bool) {
	if s.currSpotNum != tactical.NoSpot && !s.keepCurrentSpot(now, agent) {
		s.currSpotNum = tactical.NoSpot
	}
	if s.currSpotNum != tactical.NoSpot {
		return s.spotOrigin, true
	}

	if spotNum := s.TrySuggestTacticalSpot(now, agent); spotNum != tactical.NoSpot {
		spot, _ := s.registry.Spot(spotNum)
		s.currSpotNum = spotNum
		s.spotOrigin = spot.Origin
		return s.spotOrigin, true
	}
	if areaNum := s.TrySuggestRandomAasArea(agent); areaNum != 0 {
		return s.areaSpot(areaNum), true
	}
	if areaNum := s.TrySuggestNearbyAasArea(agent); areaNum != 0 {
		return s.areaSpot(areaNum), true
	}
	return NoSpot, false
}

func (s *Selector) keepCurrentSpot(now time.Duration, agent Agent) bool {
	if s.isTemporarilyDisabled(s.currSpotNum, now) {
		return false
	}
	spot, ok := s.registry.Spot(s.currSpotNum)
	if !ok {
		return false
	}
	for _, flags := range agent.travelFlags() {
		if route.TravelTimeFromAny(s.oracle, agent.fromAreas(), spot.AreaNum, flags) > 0 {
			return true
		}
	}
	return false
}

func (s *Selector) areaSpot(areaNum int) geom.Vec3 {
	area := s.world.Areas()[areaNum]
	return area.Center.WithZ(area.Mins[2] + 8)
}

func (s *Selector) isTemporarilyDisabled(spotNum int, now time.Duration) bool {
	visited := s.visitedAt[spotNum]
	return visited != neverVisited && now-visited < s.cfg.VisitedSpotExpiration
}

// TrySuggestTacticalSpot samples random spots that were not visited
// recently and are far enough from the agent, and returns the first
// reachable one or tactical.NoSpot.
func (s *Selector) TrySuggestTacticalSpot(now time.Duration, agent Agent) int {
	numSpots := s.registry.NumSpots()
	if numSpots == 0 {
		return tactical.NoSpot
	}
	spots := s.registry.Spots()
	minDistSq := s.cfg.MinSpotDistance * s.cfg.MinSpotDistance

	candidates := make([]int, 0, s.cfg.CandidatesCapacity)
	for i := 0; i < s.cfg.CandidatesCapacity; i++ {
		spotNum := s.rng.Intn(numSpots)
		if s.isTemporarilyDisabled(spotNum, now) {
			continue
		}
		if agent.Origin.SquareDistanceTo(spots[spotNum].Origin) < minDistSq {
			continue
		}
		candidates = append(candidates, spotNum)
	}

	if len(candidates) < s.cfg.CandidatesCapacity/2 {
		s.tryResetAllSpotsDisabledState(now)
	}

	for _, flags := range agent.travelFlags() {
		for _, spotNum := range candidates {
			if route.TravelTimeFromAny(s.oracle, agent.fromAreas(), spots[spotNum].AreaNum, flags) > 0 {
				return spotNum
			}
		}
	}
	return tactical.NoSpot
}

func (s *Selector) tryResetAllSpotsDisabledState(now time.Duration) {
	enabled := 0
	for i := range s.visitedAt {
		if !s.isTemporarilyDisabled(i, now) {
			enabled++
			if enabled > enabledSpotsToKeep {
				return
			}
		}
	}
	s.clearVisitedSpots()
}

// TrySuggestRandomAasArea samples random feasible areas and returns the
// first reachable one or 0.
func (s *Selector) TrySuggestRandomAasArea(agent Agent) int {
	numAreas := s.world.NumAreas()
	if numAreas < 2 {
		return 0
	}
	candidates := make([]int, 0, s.cfg.CandidatesCapacity)
	for i := 0; i < s.cfg.CandidatesCapacity; i++ {
		areaNum := 1 + s.rng.Intn(numAreas-1)
		if areaNum == agent.CurrAreaNum || areaNum == agent.GroundedAreaNum {
			continue
		}
		if !s.IsFeasibleArea(areaNum, agent.Origin) {
			continue
		}
		candidates = append(candidates, areaNum)
	}
	for _, flags := range agent.travelFlags() {
		if areaNum := FindReachableArea(s.oracle, candidates, flags, agent.fromAreas()); areaNum != 0 {
			return areaNum
		}
	}
	return 0
}

// TrySuggestNearbyAasArea scans a box around the agent for feasible areas
// and returns the first reachable one or 0.
func (s *Selector) TrySuggestNearbyAasArea(agent Agent) int {
	if s.linker == nil {
		return 0
	}
	half := geom.V(nearbyBoxHalfWidth, nearbyBoxHalfWidth, nearbyBoxHalfHeight)
	areas := s.linker.BBoxAreas(agent.Origin.Sub(half), agent.Origin.Add(half), maxNearbyAreas)

	candidates := make([]int, 0, s.cfg.CandidatesCapacity)
	for _, areaNum := range areas {
		if areaNum == agent.CurrAreaNum || areaNum == agent.GroundedAreaNum {
			continue
		}
		if !s.IsFeasibleArea(areaNum, agent.Origin) {
			continue
		}
		candidates = append(candidates, areaNum)
		if len(candidates) == s.cfg.CandidatesCapacity {
			break
		}
	}
	for _, flags := range agent.travelFlags() {
		if areaNum := FindReachableArea(s.oracle, candidates, flags, agent.fromAreas()); areaNum != 0 {
			return areaNum
		}
	}
	return 0
}

// IsFeasibleArea reports whether an area is worth roaming to from origin.
func (s *Selector) IsFeasibleArea(areaNum int, origin geom.Vec3) bool {
	if !s.world.IsLoaded() || areaNum <= 0 || areaNum >= s.world.NumAreas() {
		return false
	}
	settings := s.world.AreaSettings()[areaNum]
	if settings.AreaFlags&aas.AreaGrounded == 0 {
		return false
	}
	if settings.AreaFlags&(aas.AreaJunk|aas.AreaDisabled) != 0 {
		return false
	}
	if settings.Contents&aas.ContentsDoNotEnter != 0 {
		return false
	}
	area := s.world.Areas()[areaNum]
	if area.Maxs[0]-area.Mins[0] < minAreaFootprint || area.Maxs[1]-area.Mins[1] < minAreaFootprint {
		return false
	}
	point := area.Center.WithZ(area.Mins[2] + 16)
	return point.SquareDistanceTo(origin) > minAreaDistance*minAreaDistance
}

// FindReachableArea returns the first candidate with a nonzero travel time
// from any of fromAreas, or 0 when none is reachable.
func FindReachableArea(oracle route.Oracle, candidates []int, flags aas.TravelFlags, fromAreas []int) int {
	for _, areaNum := range candidates {
		if route.TravelTimeFromAny(oracle, fromAreas, areaNum, flags) > 0 {
			return areaNum
		}
	}
	return 0
}

// OnNavTargetReached marks the spots around a reached target as visited.
// Spots hidden from agentOrigin by an obstacle stay unmarked unless the
// agent stands inside one.
func (s *Selector) OnNavTargetReached(now time.Duration, agentOrigin, targetOrigin geom.Vec3) {
	spotNums, insideSpotNum := s.registry.FindSpotsInRadius(targetOrigin, s.cfg.ReachedRadius)
	spots := s.registry.Spots()
	for _, spotNum := range spotNums {
		if spotNum != insideSpotNum && !trace.Visible(s.tracer, agentOrigin, spots[spotNum].Origin) {
			continue
		}
		s.visitedAt[spotNum] = now
	}
}

// VisitedAt reports when a spot was last marked visited.
func (s *Selector) VisitedAt(spotNum int) (time.Duration, bool) {
	if spotNum < 0 || spotNum >= len(s.visitedAt) || s.visitedAt[spotNum] == neverVisited {
		return 0, false
	}
	return s.visitedAt[spotNum], true
}
