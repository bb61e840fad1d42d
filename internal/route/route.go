// Package route answers travel time queries over the reachability graph of
// an area world. Planning code depends on the Oracle contract only.
package route

import (
	"container/heap"

	"arena-bots/server/internal/aas"
	"arena-bots/server/internal/telemetry"
)

// Oracle returns the travel time in hundredths of a second between two
// areas using only reachabilities allowed by flags. Zero means unreachable.
type Oracle interface {
	TravelTimeToGoalArea(fromArea, toArea int, flags aas.TravelFlags) int
}

// OracleFunc adapts a function into an Oracle.
type OracleFunc func(fromArea, toArea int, flags aas.TravelFlags) int

func (f OracleFunc) TravelTimeToGoalArea(fromArea, toArea int, flags aas.TravelFlags) int {
	if f == nil {
		return 0
	}
	return f(fromArea, toArea, flags)
}

// TravelTimeFromAny returns the best travel time from any of the source
// areas, or zero when none of them reaches toArea.
func TravelTimeFromAny(o Oracle, fromAreas []int, toArea int, flags aas.TravelFlags) int {
	if o == nil {
		return 0
	}
	best := 0
	for _, from := range fromAreas {
		if from <= 0 {
			continue
		}
		t := o.TravelTimeToGoalArea(from, toArea, flags)
		if t > 0 && (best == 0 || t < best) {
			best = t
		}
	}
	return best
}

type sourceKey struct {
	area  int
	flags aas.TravelFlags
}

// Cache is a reference Oracle computing shortest travel times with
// Dijkstra's algorithm. Results are memoised per source area and flag set
// until the graph changes.
type Cache struct {
	world    *aas.World
	disabled map[int]bool
	times    map[sourceKey][]int
	metrics  telemetry.Metrics
}

// NewCache binds a cache to world. metrics may be nil.
func NewCache(world *aas.World, metrics telemetry.Metrics) *Cache {
	return &Cache{
		world:    world,
		disabled: make(map[int]bool),
		times:    make(map[sourceKey][]int),
		metrics:  metrics,
	}
}

// SetAreaDisabled excludes or restores an area for routing.
func (c *Cache) SetAreaDisabled(areaNum int, disabled bool) {
	if c == nil {
		return
	}
	if c.disabled[areaNum] == disabled {
		return
	}
	if disabled {
		c.disabled[areaNum] = true
	} else {
		delete(c.disabled, areaNum)
	}
	c.Invalidate()
}

// Invalidate drops every memoised result.
func (c *Cache) Invalidate() {
	if c == nil {
		return
	}
	c.times = make(map[sourceKey][]int)
}

func (c *Cache) areaUsable(areaNum int) bool {
	if c.disabled[areaNum] {
		return false
	}
	return c.world.AreaSettings()[areaNum].AreaFlags&aas.AreaDisabled == 0
}

func (c *Cache) TravelTimeToGoalArea(fromArea, toArea int, flags aas.TravelFlags) int {
	if c == nil || !c.world.IsLoaded() {
		return 0
	}
	numAreas := c.world.NumAreas()
	if fromArea <= 0 || fromArea >= numAreas || toArea <= 0 || toArea >= numAreas {
		return 0
	}
	if !c.areaUsable(toArea) {
		return 0
	}
	if fromArea == toArea {
		return 1
	}
	key := sourceKey{area: fromArea, flags: flags}
	times, ok := c.times[key]
	if ok {
		c.count("route_cache_hits_total")
	} else {
		c.count("route_cache_misses_total")
		times = c.shortestTimes(fromArea, flags)
		c.times[key] = times
	}
	t := times[toArea]
	if t < 0 {
		return 0
	}
	if t < 1 {
		return 1
	}
	return t
}

func (c *Cache) count(key string) {
	if c.metrics != nil {
		c.metrics.Add(key, 1)
	}
}

func (c *Cache) shortestTimes(fromArea int, flags aas.TravelFlags) []int {
	numAreas := c.world.NumAreas()
	settings := c.world.AreaSettings()
	times := make([]int, numAreas)
	for i := range times {
		times[i] = -1
	}
	done := make([]bool, numAreas)
	times[fromArea] = 0

	queue := &areaQueue{{area: fromArea, time: 0}}
	for queue.Len() > 0 {
		item := heap.Pop(queue).(queued)
		if done[item.area] {
			continue
		}
		done[item.area] = true
		for _, reach := range c.world.ReachabilitiesOf(item.area) {
			next := reach.AreaNum
			if next <= 0 || next >= numAreas || done[next] {
				continue
			}
			if aas.TravelFlagForType(reach.TravelType)&^flags != 0 {
				continue
			}
			if aas.ContentsTravelFlags(settings[next].Contents)&^flags != 0 {
				continue
			}
			if !c.areaUsable(next) {
				continue
			}
			step := reach.TravelTime
			if step < 1 {
				step = 1
			}
			candidate := item.time + step
			if times[next] < 0 || candidate < times[next] {
				times[next] = candidate
				heap.Push(queue, queued{area: next, time: candidate})
			}
		}
	}
	return times
}

type queued struct {
	area int
	time int
}

type areaQueue []queued

func (q areaQueue) Len() int { return len(q) }
func (q areaQueue) Less(i, j int) bool {
	if q[i].time != q[j].time {
		return q[i].time < q[j].time
	}
	return q[i].area < q[j].area
}
func (q areaQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *areaQueue) Push(x any) { *q = append(*q, x.(queued)) }

func (q *areaQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

var _ Oracle = (*Cache)(nil)
