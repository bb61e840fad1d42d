package aas

import (
	"context"

	"arena-bots/server/internal/geom"
	"arena-bots/server/logging/navigation"
)

const (
	traceStackSize = 127
	linkStackSize  = 256
)

// PointAreaNum returns the area containing point, or 0 for solid space and
// for an unloaded world.
func (w *World) PointAreaNum(point geom.Vec3) int {
	if !w.IsLoaded() || w.counts[lumpNodes] < 2 {
		return 0
	}
	// Node 0 is a dummy used for solid leaves.
	nodeNum := 1
	for steps := 0; nodeNum > 0; steps++ {
		if steps > w.counts[lumpNodes] {
			return 0
		}
		node := &w.nodes[nodeNum]
		plane := &w.planes[node.PlaneNum]
		if point.Dot(plane.Normal)-plane.Dist > 0 {
			nodeNum = node.Children[0]
		} else {
			nodeNum = node.Children[1]
		}
	}
	return -nodeNum
}

// FindAreaNumInBox probes the eight corners of a box and returns the first
// area hit.
func (w *World) FindAreaNumInBox(mins, maxs geom.Vec3) int {
	bounds := [2]geom.Vec3{maxs, mins}
	for i := 0; i < 8; i++ {
		corner := geom.Vec3{
			bounds[(i>>0)&1][0],
			bounds[(i>>1)&1][1],
			bounds[(i>>2)&1][2],
		}
		if areaNum := w.PointAreaNum(corner); areaNum != 0 {
			return areaNum
		}
	}
	return 0
}

// FindAreaNum tolerates points slightly below the floor or inside a wall by
// falling back to a small box around the point.
func (w *World) FindAreaNum(origin geom.Vec3) int {
	if areaNum := w.PointAreaNum(origin); areaNum != 0 {
		return areaNum
	}
	return w.FindAreaNumInBox(origin.Add(geom.Vec3{-8, -8, 0}), origin.Add(geom.Vec3{8, 8, 16}))
}

// FindEntityAreaNum locates an entity given its origin and absolute bounds.
func (w *World) FindEntityAreaNum(origin, absMins, absMaxs geom.Vec3) int {
	if absMins == absMaxs {
		return w.FindAreaNum(origin)
	}
	if areaNum := w.PointAreaNum(origin); areaNum != 0 {
		return areaNum
	}
	return w.FindAreaNumInBox(absMins, absMaxs)
}

type traceFrame struct {
	start, end geom.Vec3
	planeNum   int
	nodeNum    int
}

// TraceAreas returns the areas crossed by the segment in start to end order.
func (w *World) TraceAreas(start, end geom.Vec3, maxAreas int) []int {
	areas, _ := w.traceAreas(start, end, maxAreas, false)
	return areas
}

// TraceAreasWithPoints also returns the point where the segment enters each
// area.
func (w *World) TraceAreasWithPoints(start, end geom.Vec3, maxAreas int) ([]int, []geom.Vec3) {
	return w.traceAreas(start, end, maxAreas, true)
}

func (w *World) traceAreas(start, end geom.Vec3, maxAreas int, withPoints bool) ([]int, []geom.Vec3) {
	if !w.IsLoaded() || maxAreas <= 0 || w.counts[lumpNodes] < 2 {
		return nil, nil
	}
	var stack [traceStackSize]traceFrame
	var areas []int
	var points []geom.Vec3

	stack[0] = traceFrame{start: start, end: end, nodeNum: 1}
	top := 1
	for top > 0 {
		top--
		frame := stack[top]
		nodeNum := frame.nodeNum
		if nodeNum < 0 {
			areaNum := -nodeNum
			// A convex area split over several leaves shows up consecutively.
			if n := len(areas); n > 0 && areas[n-1] == areaNum {
				continue
			}
			areas = append(areas, areaNum)
			if withPoints {
				points = append(points, frame.start)
			}
			if len(areas) >= maxAreas {
				break
			}
			continue
		}
		if nodeNum == 0 {
			continue
		}

		node := &w.nodes[nodeNum]
		plane := &w.planes[node.PlaneNum]
		front := frame.start.Dot(plane.Normal) - plane.Dist
		back := frame.end.Dot(plane.Normal) - plane.Dist

		switch {
		case front > 0 && back > 0:
			stack[top].nodeNum = node.Children[0]
			top++
		case front <= 0 && back <= 0:
			stack[top].nodeNum = node.Children[1]
			top++
		default:
			frac := geom.Clamp01(front / (front - back))
			mid := frame.start.Lerp(frame.end, frac)
			side := 0
			if front < 0 {
				side = 1
			}
			if top+2 > traceStackSize {
				w.warnOverflow("trace_areas", traceStackSize, len(areas))
				return areas, points
			}
			// Far part first so the near part is popped first.
			stack[top] = traceFrame{start: mid, end: frame.end, planeNum: node.PlaneNum, nodeNum: node.Children[1-side]}
			top++
			stack[top] = traceFrame{start: frame.start, end: mid, planeNum: frame.planeNum, nodeNum: node.Children[side]}
			top++
		}
	}
	return areas, points
}

// BoxOnPlaneSide returns 1 when the box has a part in front of the plane, 2
// when it has a part behind it, 3 for both.
func BoxOnPlaneSide(absMins, absMaxs geom.Vec3, p *Plane) int {
	var near, far geom.Vec3
	for i := 0; i < 3; i++ {
		if p.Normal[i] < 0 {
			near[i] = absMins[i]
			far[i] = absMaxs[i]
		} else {
			far[i] = absMins[i]
			near[i] = absMaxs[i]
		}
	}
	sides := 0
	if p.Normal.Dot(near)-p.Dist >= 0 {
		sides = 1
	}
	if p.Normal.Dot(far)-p.Dist < 0 {
		sides |= 2
	}
	return sides
}

// boxLeaves walks the tree and calls visit for every leaf area the box
// touches, in discovery order. visit returns false to stop the walk.
func (w *World) boxLeaves(absMins, absMaxs geom.Vec3, visit func(areaNum int) bool) {
	if !w.IsLoaded() || w.counts[lumpNodes] < 2 {
		return
	}
	var stack [linkStackSize]int
	stack[0] = 1
	top := 1
	for top > 0 {
		top--
		nodeNum := stack[top]
		if nodeNum < 0 {
			if !visit(-nodeNum) {
				return
			}
			continue
		}
		if nodeNum == 0 {
			continue
		}
		node := &w.nodes[nodeNum]
		sides := BoxOnPlaneSide(absMins, absMaxs, &w.planes[node.PlaneNum])
		if sides&1 != 0 {
			stack[top] = node.Children[0]
			top++
		}
		if top >= linkStackSize-1 {
			w.warnOverflow("link_entity", linkStackSize, 0)
			return
		}
		if sides&2 != 0 {
			stack[top] = node.Children[1]
			top++
		}
		if top >= linkStackSize-1 {
			w.warnOverflow("link_entity", linkStackSize, 0)
			return
		}
	}
}

func (w *World) warnOverflow(routine string, limit, collected int) {
	if w.logger != nil {
		w.logger.Printf("aas: %s stack overflow (limit %d, collected %d)", routine, limit, collected)
	}
	navigation.TraversalOverflow(context.Background(), w.publisher, 0, navigation.TraversalOverflowPayload{
		Routine:   routine,
		Limit:     limit,
		Collected: collected,
	}, nil)
}
