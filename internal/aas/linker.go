package aas

import (
	"context"

	"arena-bots/server/internal/geom"
	"arena-bots/server/logging/navigation"
)

// DefaultLinkPoolSize is the number of entity/area links preallocated.
const DefaultLinkPoolSize = 6144

const noLink = -1

// QueryEntity is the entity number used for link/unlink pairs that only
// collect areas.
const QueryEntity = -1

// LinkHandle addresses a pooled link. A handle whose link has been freed and
// reused no longer resolves.
type LinkHandle struct {
	index int32
	gen   uint32
}

// Valid reports whether h was ever issued. It does not check staleness.
func (h LinkHandle) Valid() bool { return h.gen != 0 }

// LinkedAreas is the per-entity chain returned by LinkEntity.
type LinkedAreas struct {
	head LinkHandle
}

func (l LinkedAreas) Empty() bool { return !l.head.Valid() }

type areaLink struct {
	entity   int
	area     int
	gen      uint32
	inUse    bool
	prevEnt  int32
	nextEnt  int32
	prevArea int32
	nextArea int32
}

// Linker keeps the mutual entity/area overlap lists of a world. Links live in
// a fixed arena threaded into a free chain; linking never allocates.
type Linker struct {
	world     *World
	links     []areaLink
	freeHead  int32
	freeCount int
	areaHeads []int32
	byEntity  map[int]LinkedAreas
}

// NewLinker builds a link arena of poolSize links for world.
func NewLinker(world *World, poolSize int) *Linker {
	if poolSize <= 0 {
		poolSize = DefaultLinkPoolSize
	}
	l := &Linker{
		world:    world,
		links:    make([]areaLink, poolSize),
		byEntity: make(map[int]LinkedAreas),
	}
	numAreas := 0
	if world.IsLoaded() {
		numAreas = len(world.areas)
	}
	l.areaHeads = make([]int32, numAreas)
	for i := range l.areaHeads {
		l.areaHeads[i] = noLink
	}
	for i := range l.links {
		l.links[i] = areaLink{gen: 1, prevEnt: noLink, nextEnt: int32(i + 1), prevArea: noLink, nextArea: noLink}
	}
	l.links[poolSize-1].nextEnt = noLink
	l.freeHead = 0
	l.freeCount = poolSize
	return l
}

func (l *Linker) Capacity() int  { return len(l.links) }
func (l *Linker) FreeLinks() int { return l.freeCount }

func (l *Linker) alloc() int32 {
	idx := l.freeHead
	if idx == noLink {
		return noLink
	}
	lk := &l.links[idx]
	l.freeHead = lk.nextEnt
	l.freeCount--
	lk.inUse = true
	return idx
}

func (l *Linker) release(idx int32) {
	lk := &l.links[idx]
	lk.inUse = false
	lk.gen++
	if lk.gen == 0 {
		lk.gen = 1
	}
	lk.prevEnt, lk.prevArea, lk.nextArea = noLink, noLink, noLink
	lk.nextEnt = l.freeHead
	l.freeHead = idx
	l.freeCount++
}

func (l *Linker) resolve(h LinkHandle) (int32, bool) {
	if !h.Valid() || int(h.index) < 0 || int(h.index) >= len(l.links) {
		return noLink, false
	}
	lk := &l.links[h.index]
	if !lk.inUse || lk.gen != h.gen {
		return noLink, false
	}
	return h.index, true
}

// LinkEntity links entity into every area its box touches. When the pool runs
// dry the chain built so far is returned so it can still be unlinked.
func (l *Linker) LinkEntity(absMins, absMaxs geom.Vec3, entity int) LinkedAreas {
	head := int32(noLink)
	exhausted := false
	l.world.boxLeaves(absMins, absMaxs, func(areaNum int) bool {
		if areaNum >= len(l.areaHeads) {
			return true
		}
		// Several leaves may belong to the same area.
		for it := l.areaHeads[areaNum]; it != noLink; it = l.links[it].nextEnt {
			if l.links[it].entity == entity {
				return true
			}
		}
		idx := l.alloc()
		if idx == noLink {
			exhausted = true
			return false
		}
		lk := &l.links[idx]
		lk.entity = entity
		lk.area = areaNum

		lk.prevArea = noLink
		lk.nextArea = head
		if head != noLink {
			l.links[head].prevArea = idx
		}
		head = idx

		lk.prevEnt = noLink
		lk.nextEnt = l.areaHeads[areaNum]
		if lk.nextEnt != noLink {
			l.links[lk.nextEnt].prevEnt = idx
		}
		l.areaHeads[areaNum] = idx
		return true
	})
	if exhausted {
		if l.world.logger != nil {
			l.world.logger.Printf("aas: empty link heap while linking entity %d", entity)
		}
		navigation.LinkPoolExhausted(context.Background(), l.world.publisher, 0, navigation.LinkPoolExhaustedPayload{
			Entity:   entity,
			Capacity: len(l.links),
		}, nil)
	}
	if head == noLink {
		return LinkedAreas{}
	}
	return LinkedAreas{head: LinkHandle{index: head, gen: l.links[head].gen}}
}

// UnlinkFromAreas detaches every link of the chain from its area and returns
// it to the pool. Stale chains are ignored.
func (l *Linker) UnlinkFromAreas(list LinkedAreas) {
	idx, ok := l.resolve(list.head)
	if !ok {
		return
	}
	for idx != noLink {
		lk := &l.links[idx]
		next := lk.nextArea
		if lk.prevEnt != noLink {
			l.links[lk.prevEnt].nextEnt = lk.nextEnt
		} else {
			l.areaHeads[lk.area] = lk.nextEnt
		}
		if lk.nextEnt != noLink {
			l.links[lk.nextEnt].prevEnt = lk.prevEnt
		}
		l.release(idx)
		idx = next
	}
}

// Areas lists the areas of a chain, most recently linked first.
func (l *Linker) Areas(list LinkedAreas) []int {
	return l.AppendAreas(nil, list)
}

// AppendAreas appends the areas of a chain to dst. Per-tick callers pass a
// reused buffer truncated to zero length.
func (l *Linker) AppendAreas(dst []int, list LinkedAreas) []int {
	idx, ok := l.resolve(list.head)
	if !ok {
		return dst
	}
	for ; idx != noLink; idx = l.links[idx].nextArea {
		dst = append(dst, l.links[idx].area)
	}
	return dst
}

// AreaEntities lists the entities linked into an area.
func (l *Linker) AreaEntities(areaNum int) []int {
	return l.AppendAreaEntities(nil, areaNum)
}

// AppendAreaEntities appends the entities linked into an area to dst.
func (l *Linker) AppendAreaEntities(dst []int, areaNum int) []int {
	if areaNum <= 0 || areaNum >= len(l.areaHeads) {
		return dst
	}
	for it := l.areaHeads[areaNum]; it != noLink; it = l.links[it].nextEnt {
		dst = append(dst, l.links[it].entity)
	}
	return dst
}

// BBoxAreas collects up to maxAreas areas touched by a box using a temporary
// link/unlink pair.
func (l *Linker) BBoxAreas(absMins, absMaxs geom.Vec3, maxAreas int) []int {
	if !l.world.IsLoaded() || maxAreas <= 0 {
		return nil
	}
	list := l.LinkEntity(absMins, absMaxs, QueryEntity)
	areas := l.Areas(list)
	l.UnlinkFromAreas(list)
	if len(areas) > maxAreas {
		areas = areas[:maxAreas]
	}
	return areas
}

// Relink moves entity to the areas touched by its new bounds, releasing the
// links it held before. The returned chain is valid until the next Relink or
// Unlink of entity; read it with AppendAreas.
func (l *Linker) Relink(entity int, absMins, absMaxs geom.Vec3) LinkedAreas {
	if prev, ok := l.byEntity[entity]; ok {
		l.UnlinkFromAreas(prev)
		delete(l.byEntity, entity)
	}
	list := l.LinkEntity(absMins, absMaxs, entity)
	if !list.Empty() {
		l.byEntity[entity] = list
	}
	return list
}

// Unlink releases every link held by entity.
func (l *Linker) Unlink(entity int) {
	if prev, ok := l.byEntity[entity]; ok {
		l.UnlinkFromAreas(prev)
		delete(l.byEntity, entity)
	}
}

// EntityAreas returns the areas entity is currently linked into.
func (l *Linker) EntityAreas(entity int) []int {
	return l.AppendEntityAreas(nil, entity)
}

// AppendEntityAreas appends the areas entity is linked into to dst.
func (l *Linker) AppendEntityAreas(dst []int, entity int) []int {
	list, ok := l.byEntity[entity]
	if !ok {
		return dst
	}
	return l.AppendAreas(dst, list)
}
