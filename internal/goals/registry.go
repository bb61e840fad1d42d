package goals

import (
	"math"
	"time"

	"arena-bots/server/internal/geom"
)

// NoTimeout is the timeout of goals that never expire.
const NoTimeout = time.Duration(math.MaxInt64)

// NavEntityFlags define how a nav entity is reached.
type NavEntityFlags uint32

const (
	ReachAtTouch NavEntityFlags = 1 << iota
	ReachAtRadius
	ReachOnEvent
	ReachInGroup
	DroppedEntity
	NotifyScript
	Movable
)

// NavHandle addresses a nav entity in a Registry. Handles of removed entities
// stop resolving even when their slot is reused.
type NavHandle struct {
	index int32
	gen   uint32
}

// Valid reports whether h was ever issued.
func (h NavHandle) Valid() bool { return h.gen != 0 }

// NavEntity is a navigable world entity, usually an item.
type NavEntity struct {
	Handle NavHandle
	// EntityID is the number of the underlying world entity.
	EntityID int
	Name     string
	// Kind selects the weight of the entity, e.g. "health_mega".
	Kind    string
	AreaNum int
	Origin  geom.Vec3
	Flags   NavEntityFlags
	Radius  float64
	Client  bool

	spawned      bool
	respawnKnown bool
	respawnAt    time.Duration
	expiresAt    time.Duration
}

func (e *NavEntity) has(flag NavEntityFlags) bool { return e.Flags&flag != 0 }

func (e *NavEntity) IsDroppedEntity() bool         { return e.has(DroppedEntity) }
func (e *NavEntity) ShouldBeReachedAtTouch() bool  { return e.has(ReachAtTouch) }
func (e *NavEntity) ShouldBeReachedAtRadius() bool { return e.has(ReachAtRadius) }
func (e *NavEntity) MayBeReachedInGroup() bool     { return e.has(ReachInGroup) }

// IsSpawned reports whether the entity can be picked up right now.
func (e *NavEntity) IsSpawned() bool { return e.spawned }

// SpawnTime returns now for a spawned entity and the predicted respawn time
// otherwise. ok is false when the respawn time is unknown.
func (e *NavEntity) SpawnTime(now time.Duration) (time.Duration, bool) {
	if e.spawned {
		return now, true
	}
	if e.respawnKnown {
		return e.respawnAt, true
	}
	return 0, false
}

// Timeout returns when a dropped entity disappears. Other entities never
// time out.
func (e *NavEntity) Timeout() time.Duration {
	if !e.IsDroppedEntity() {
		return NoTimeout
	}
	return e.expiresAt
}

// NavEntitySpec describes an entity being added to a Registry.
type NavEntitySpec struct {
	EntityID  int
	Name      string
	Kind      string
	Origin    geom.Vec3
	Flags     NavEntityFlags
	Radius    float64
	Client    bool
	Spawned   bool
	ExpiresAt time.Duration
}

// AreaFinder locates the area of a point.
type AreaFinder interface {
	FindAreaNum(origin geom.Vec3) int
}

type navSlot struct {
	entity NavEntity
	gen    uint32
	inUse  bool
}

// Registry owns every nav entity of a level. Entities are kept in an arena
// and iterated in slot order, so iteration is deterministic.
type Registry struct {
	areas    AreaFinder
	slots    []navSlot
	free     []int32
	byEntity map[int]NavHandle
}

// NewRegistry creates an empty registry. areas may be nil, in which case
// entities keep area 0 until SetAreaNum is called.
func NewRegistry(areas AreaFinder) *Registry {
	return &Registry{areas: areas, byEntity: make(map[int]NavHandle)}
}

// Add registers a nav entity and returns its handle. Adding an entity id
// that is already registered replaces the previous nav entity.
func (r *Registry) Add(spec NavEntitySpec) NavHandle {
	if old, ok := r.byEntity[spec.EntityID]; ok {
		r.Remove(old)
	}
	var index int32
	if n := len(r.free); n > 0 {
		index = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, navSlot{})
		index = int32(len(r.slots) - 1)
	}
	slot := &r.slots[index]
	slot.gen++
	slot.inUse = true
	h := NavHandle{index: index, gen: slot.gen}
	slot.entity = NavEntity{
		Handle:    h,
		EntityID:  spec.EntityID,
		Name:      spec.Name,
		Kind:      spec.Kind,
		Origin:    spec.Origin,
		Flags:     spec.Flags,
		Radius:    spec.Radius,
		Client:    spec.Client,
		spawned:   spec.Spawned,
		expiresAt: spec.ExpiresAt,
		AreaNum:   r.findArea(spec.Origin),
	}
	r.byEntity[spec.EntityID] = h
	return h
}

func (r *Registry) findArea(origin geom.Vec3) int {
	if r.areas == nil {
		return 0
	}
	return r.areas.FindAreaNum(origin)
}

// Remove frees the slot of h. Stale handles are ignored.
func (r *Registry) Remove(h NavHandle) bool {
	e := r.Get(h)
	if e == nil {
		return false
	}
	slot := &r.slots[h.index]
	delete(r.byEntity, e.EntityID)
	slot.inUse = false
	slot.entity = NavEntity{}
	r.free = append(r.free, h.index)
	return true
}

// Get resolves a handle, returning nil for stale or unknown handles.
func (r *Registry) Get(h NavHandle) *NavEntity {
	if r == nil || !h.Valid() || int(h.index) >= len(r.slots) {
		return nil
	}
	slot := &r.slots[h.index]
	if !slot.inUse || slot.gen != h.gen {
		return nil
	}
	return &slot.entity
}

// ByEntity returns the handle of the nav entity built on a world entity.
func (r *Registry) ByEntity(entityID int) (NavHandle, bool) {
	h, ok := r.byEntity[entityID]
	return h, ok
}

// Len returns the number of live entities.
func (r *Registry) Len() int { return len(r.byEntity) }

// Each calls fn for every live entity in slot order until fn returns false.
func (r *Registry) Each(fn func(e *NavEntity) bool) {
	if r == nil {
		return
	}
	for i := range r.slots {
		if !r.slots[i].inUse {
			continue
		}
		if !fn(&r.slots[i].entity) {
			return
		}
	}
}

// SetSpawned marks an entity present. Picking it up should call SetRespawn.
func (r *Registry) SetSpawned(h NavHandle) {
	if e := r.Get(h); e != nil {
		e.spawned = true
		e.respawnKnown = false
	}
}

// SetRespawn marks an entity taken. When known is false the respawn time is
// unknown and goals on the entity are cancelled.
func (r *Registry) SetRespawn(h NavHandle, at time.Duration, known bool) {
	if e := r.Get(h); e != nil {
		e.spawned = false
		e.respawnKnown = known
		e.respawnAt = at
	}
}

// UpdateOrigin moves a movable entity and refreshes its area.
func (r *Registry) UpdateOrigin(h NavHandle, origin geom.Vec3) {
	e := r.Get(h)
	if e == nil {
		return
	}
	e.Origin = origin
	e.AreaNum = r.findArea(origin)
}

// SetAreaNum overrides the area of an entity.
func (r *Registry) SetAreaNum(h NavHandle, areaNum int) {
	if e := r.Get(h); e != nil {
		e.AreaNum = areaNum
	}
}
