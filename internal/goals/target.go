package goals

import (
	"fmt"
	"time"

	"arena-bots/server/internal/geom"
)

// DefaultSpotReachRadius is the reach radius of tactical spot targets.
const DefaultSpotReachRadius = 32.0

// NavTarget is a goal. It is either built on a nav entity or placed at an
// arbitrary tactical spot.
type NavTarget struct {
	registry *Registry
	nav      NavHandle

	origin  geom.Vec3
	areaNum int
	radius  float64
	name    string
}

// EntityTarget returns a target following the nav entity h.
func EntityTarget(registry *Registry, h NavHandle) NavTarget {
	return NavTarget{registry: registry, nav: h}
}

// SpotTarget returns a synthetic target reached within radius of origin.
// A non-positive radius selects DefaultSpotReachRadius.
func SpotTarget(origin geom.Vec3, areaNum int, radius float64) NavTarget {
	if radius <= 0 {
		radius = DefaultSpotReachRadius
	}
	return NavTarget{
		origin:  origin,
		areaNum: areaNum,
		radius:  radius,
		name:    fmt.Sprintf("spot@%.0f,%.0f,%.0f", origin[0], origin[1], origin[2]),
	}
}

func (t *NavTarget) entity() *NavEntity {
	if t == nil || !t.nav.Valid() {
		return nil
	}
	return t.registry.Get(t.nav)
}

// Nav returns the handle of the underlying nav entity, if any.
func (t *NavTarget) Nav() NavHandle { return t.nav }

func (t *NavTarget) IsBasedOnSomeEntity() bool { return t.nav.Valid() }

func (t *NavTarget) IsBasedOnNavEntity(h NavHandle) bool {
	return h.Valid() && t.nav == h
}

func (t *NavTarget) IsBasedOnEntity(entityID int) bool {
	e := t.entity()
	return e != nil && e.EntityID == entityID
}

func (t *NavTarget) IsTacticalSpot() bool { return !t.nav.Valid() }

// IsDisabled reports whether an entity target lost its entity.
func (t *NavTarget) IsDisabled() bool {
	return t.nav.Valid() && t.entity() == nil
}

func (t *NavTarget) IsDroppedEntity() bool {
	e := t.entity()
	return e != nil && e.IsDroppedEntity()
}

func (t *NavTarget) Name() string {
	if t.nav.Valid() {
		if e := t.entity(); e != nil {
			return e.Name
		}
		return "???"
	}
	return t.name
}

func (t *NavTarget) Origin() geom.Vec3 {
	if t.nav.Valid() {
		if e := t.entity(); e != nil {
			return e.Origin
		}
	}
	return t.origin
}

func (t *NavTarget) AreaNum() int {
	if t.nav.Valid() {
		if e := t.entity(); e != nil {
			return e.AreaNum
		}
		return 0
	}
	return t.areaNum
}

// SpawnTime follows NavEntity.SpawnTime. Spot targets are always spawned.
func (t *NavTarget) SpawnTime(now time.Duration) (time.Duration, bool) {
	if t.nav.Valid() {
		if e := t.entity(); e != nil {
			return e.SpawnTime(now)
		}
		return 0, false
	}
	return now, true
}

func (t *NavTarget) Timeout() time.Duration {
	if e := t.entity(); e != nil {
		return e.Timeout()
	}
	return NoTimeout
}

func (t *NavTarget) ShouldBeReachedAtTouch() bool {
	e := t.entity()
	return e != nil && e.ShouldBeReachedAtTouch()
}

func (t *NavTarget) ShouldBeReachedAtRadius() bool {
	if t.nav.Valid() {
		e := t.entity()
		return e != nil && e.ShouldBeReachedAtRadius()
	}
	return true
}

// RadiusOrDefault returns the reach radius of radius-reached targets.
func (t *NavTarget) RadiusOrDefault(defaultRadius float64) float64 {
	if !t.ShouldBeReachedAtRadius() {
		return defaultRadius
	}
	if e := t.entity(); e != nil {
		return e.Radius
	}
	return t.radius
}
