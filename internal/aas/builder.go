package aas

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math"

	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/telemetry"
)

// AreaSpec describes one axis aligned box area handed to a Builder.
type AreaSpec struct {
	Mins, Maxs   geom.Vec3
	Contents     int
	Flags        int
	PresenceType int
}

// Builder assembles a World from non overlapping axis aligned boxes. Space
// outside every box is solid. It is used by tests and by generated levels.
type Builder struct {
	areas   []AreaSpec
	reaches map[int][]Reachability
}

var (
	ErrOverlappingAreas = errors.New("aas: builder areas overlap")
	ErrDegenerateArea   = errors.New("aas: builder area has no volume")
	ErrUnknownArea      = errors.New("aas: unknown builder area")
)

func NewBuilder() *Builder {
	return &Builder{reaches: make(map[int][]Reachability)}
}

// AddArea adds a grounded walkable box and returns its area number.
func (b *Builder) AddArea(mins, maxs geom.Vec3) int {
	return b.AddAreaSpec(AreaSpec{Mins: mins, Maxs: maxs, Flags: AreaGrounded, PresenceType: PresenceNormal})
}

func (b *Builder) AddAreaSpec(spec AreaSpec) int {
	if spec.PresenceType == 0 {
		spec.PresenceType = PresenceNormal
	}
	b.areas = append(b.areas, spec)
	return len(b.areas)
}

func (b *Builder) NumAreas() int { return len(b.areas) }

// Area returns the spec of area areaNum.
func (b *Builder) Area(areaNum int) (AreaSpec, bool) {
	if areaNum <= 0 || areaNum > len(b.areas) {
		return AreaSpec{}, false
	}
	return b.areas[areaNum-1], true
}

// AddReach adds an edge between two areas going from floor center to floor
// center.
func (b *Builder) AddReach(from, to, travelType, travelTime int) {
	fromSpec, ok1 := b.Area(from)
	toSpec, ok2 := b.Area(to)
	if !ok1 || !ok2 {
		return
	}
	center := func(s AreaSpec) geom.Vec3 {
		return s.Mins.Add(s.Maxs).Scale(0.5).WithZ(s.Mins[2])
	}
	b.AddReachability(from, Reachability{
		AreaNum:    to,
		Start:      center(fromSpec),
		End:        center(toSpec),
		TravelType: travelType,
		TravelTime: travelTime,
	})
}

// AddReachability adds a fully specified edge leaving from.
func (b *Builder) AddReachability(from int, reach Reachability) {
	b.reaches[from] = append(b.reaches[from], reach)
}

// RemoveReach drops every edge from one area to another.
func (b *Builder) RemoveReach(from, to int) {
	kept := b.reaches[from][:0]
	for _, r := range b.reaches[from] {
		if r.AreaNum != to {
			kept = append(kept, r)
		}
	}
	b.reaches[from] = kept
}

// LinkWalk adds mutual walk edges with a travel time derived from distance.
func (b *Builder) LinkWalk(a, c int) {
	as, ok1 := b.Area(a)
	cs, ok2 := b.Area(c)
	if !ok1 || !ok2 {
		return
	}
	dist := as.Mins.Add(as.Maxs).Scale(0.5).DistanceTo(cs.Mins.Add(cs.Maxs).Scale(0.5))
	// 320 units per second walking, travel time in hundredths.
	t := int(math.Max(1, math.Round(dist/320*100)))
	b.AddReach(a, c, TravelWalk, t)
	b.AddReach(c, a, TravelWalk, t)
}

type planeKey struct {
	axis int
	dist float64
}

type clippedBox struct {
	area       int
	mins, maxs geom.Vec3
}

type region struct {
	mins, maxs geom.Vec3
}

type treeBuilder struct {
	planes   []Plane
	planeIdx map[planeKey]int
	nodes    []Node
}

func (t *treeBuilder) plane(axis int, dist float64) int {
	key := planeKey{axis: axis, dist: dist}
	if idx, ok := t.planeIdx[key]; ok {
		return idx
	}
	var normal geom.Vec3
	normal[axis] = 1
	t.planes = append(t.planes, Plane{Normal: normal, Dist: dist, Type: axis})
	t.planeIdx[key] = len(t.planes) - 1
	return len(t.planes) - 1
}

type split struct {
	axis int
	dist float64
}

// chooseSplit prefers planes that cut no box, then the most balanced one.
func chooseSplit(boxes []clippedBox, r region) (split, bool) {
	best := split{}
	bestCuts, bestBalance := math.MaxInt, math.MaxInt
	found := false
	consider := func(axis int, d float64) {
		if d <= r.mins[axis] || d >= r.maxs[axis] {
			return
		}
		cuts, front, back := 0, 0, 0
		for _, bx := range boxes {
			switch {
			case bx.mins[axis] >= d:
				front++
			case bx.maxs[axis] <= d:
				back++
			default:
				cuts++
			}
		}
		balance := front - back
		if balance < 0 {
			balance = -balance
		}
		if cuts < bestCuts || (cuts == bestCuts && balance < bestBalance) {
			best, bestCuts, bestBalance, found = split{axis: axis, dist: d}, cuts, balance, true
		}
	}
	for _, bx := range boxes {
		for axis := 0; axis < 3; axis++ {
			consider(axis, bx.mins[axis])
			consider(axis, bx.maxs[axis])
		}
	}
	return best, found
}

// build returns the child value addressing the subtree for boxes in r.
func (t *treeBuilder) build(boxes []clippedBox, r region) int {
	if len(boxes) == 0 {
		return 0
	}
	if len(boxes) == 1 {
		bx := boxes[0]
		if bx.mins == r.mins && bx.maxs == r.maxs {
			return -bx.area
		}
	}
	s, ok := chooseSplit(boxes, r)
	if !ok {
		// Boxes fill the region but more than one remains: they overlap.
		return -boxes[0].area
	}
	nodeNum := len(t.nodes)
	t.nodes = append(t.nodes, Node{PlaneNum: t.plane(s.axis, s.dist)})

	var front, back []clippedBox
	for _, bx := range boxes {
		switch {
		case bx.mins[s.axis] >= s.dist:
			front = append(front, bx)
		case bx.maxs[s.axis] <= s.dist:
			back = append(back, bx)
		default:
			f, bk := bx, bx
			f.mins[s.axis] = s.dist
			bk.maxs[s.axis] = s.dist
			front = append(front, f)
			back = append(back, bk)
		}
	}
	frontRegion, backRegion := r, r
	frontRegion.mins[s.axis] = s.dist
	backRegion.maxs[s.axis] = s.dist

	frontChild := t.build(front, frontRegion)
	backChild := t.build(back, backRegion)
	t.nodes[nodeNum].Children = [2]int{frontChild, backChild}
	return nodeNum
}

func overlaps(a, b AreaSpec) bool {
	for i := 0; i < 3; i++ {
		if a.Mins[i] >= b.Maxs[i] || a.Maxs[i] <= b.Mins[i] {
			return false
		}
	}
	return true
}

type faceKey struct {
	plane       int
	front, back int
	lo, hi      [2]float64
}

type meshBuilder struct {
	vertexes  []geom.Vec3
	vertexIdx map[geom.Vec3]int
	edges     []Edge
	edgeIdx   map[[2]int]int
	edgeIndex []int
}

func (m *meshBuilder) vertex(v geom.Vec3) int {
	if idx, ok := m.vertexIdx[v]; ok {
		return idx
	}
	m.vertexes = append(m.vertexes, v)
	m.vertexIdx[v] = len(m.vertexes) - 1
	return len(m.vertexes) - 1
}

// polygon appends the edge loop of a quad and returns its first edge index
// entry.
func (m *meshBuilder) polygon(corners [4]geom.Vec3) int {
	first := len(m.edgeIndex)
	for i := 0; i < 4; i++ {
		v1, v2 := m.vertex(corners[i]), m.vertex(corners[(i+1)%4])
		if idx, ok := m.edgeIdx[[2]int{v1, v2}]; ok {
			m.edgeIndex = append(m.edgeIndex, idx)
			continue
		}
		if idx, ok := m.edgeIdx[[2]int{v2, v1}]; ok {
			m.edgeIndex = append(m.edgeIndex, -idx)
			continue
		}
		m.edges = append(m.edges, Edge{V: [2]int{v1, v2}})
		idx := len(m.edges) - 1
		m.edgeIdx[[2]int{v1, v2}] = idx
		m.edgeIndex = append(m.edgeIndex, idx)
	}
	return first
}

func quad(axis int, d float64, lo, hi [2]float64) [4]geom.Vec3 {
	u, v := (axis+1)%3, (axis+2)%3
	var c [4]geom.Vec3
	pts := [4][2]float64{{lo[0], lo[1]}, {hi[0], lo[1]}, {hi[0], hi[1]}, {lo[0], hi[1]}}
	for i, p := range pts {
		c[i][axis] = d
		c[i][u] = p[0]
		c[i][v] = p[1]
	}
	return c
}

// Build assembles the world. The builder may be modified and built again.
func (b *Builder) Build(opts ...Option) (*World, error) {
	for i, a := range b.areas {
		for axis := 0; axis < 3; axis++ {
			if a.Maxs[axis] <= a.Mins[axis] {
				return nil, fmt.Errorf("%w: area %d", ErrDegenerateArea, i+1)
			}
		}
		for j := i + 1; j < len(b.areas); j++ {
			if overlaps(a, b.areas[j]) {
				return nil, fmt.Errorf("%w: areas %d and %d", ErrOverlappingAreas, i+1, j+1)
			}
		}
	}
	for from, reaches := range b.reaches {
		if from <= 0 || from > len(b.areas) {
			return nil, fmt.Errorf("%w: reachability from %d", ErrUnknownArea, from)
		}
		for _, r := range reaches {
			if r.AreaNum <= 0 || r.AreaNum > len(b.areas) {
				return nil, fmt.Errorf("%w: reachability to %d", ErrUnknownArea, r.AreaNum)
			}
		}
	}

	tb := &treeBuilder{planeIdx: make(map[planeKey]int)}
	// Plane 0 and node 0 are dummies.
	tb.planes = append(tb.planes, Plane{Normal: geom.Vec3{1, 0, 0}})
	tb.nodes = append(tb.nodes, Node{})

	boxes := make([]clippedBox, len(b.areas))
	for i, a := range b.areas {
		boxes[i] = clippedBox{area: i + 1, mins: a.Mins, maxs: a.Maxs}
	}
	inf := math.Inf(1)
	root := region{mins: geom.Vec3{-inf, -inf, -inf}, maxs: geom.Vec3{inf, inf, inf}}
	if len(boxes) > 0 {
		tb.build(boxes, root)
	}

	w := &World{
		version: Version,
		logger:  telemetry.WrapLogger(log.Default()),
	}
	w.apply(opts)
	w.planes = tb.planes
	w.nodes = tb.nodes

	mesh := &meshBuilder{
		vertexIdx: make(map[geom.Vec3]int),
		edgeIdx:   make(map[[2]int]int),
		vertexes:  []geom.Vec3{{}},
		edges:     []Edge{{}},
		edgeIndex: []int{0},
	}
	faces := []Face{{}}
	faceIdx := make(map[faceKey]int)
	faceIndex := []int{0}

	w.areas = make([]Area, len(b.areas)+1)
	w.settings = make([]AreaSettings, len(b.areas)+1)
	w.reach = []Reachability{{}}

	for i, a := range b.areas {
		areaNum := i + 1
		firstFace := len(faceIndex)
		for axis := 0; axis < 3; axis++ {
			u, v := (axis+1)%3, (axis+2)%3
			for side := 0; side < 2; side++ {
				d := a.Mins[axis]
				if side == 1 {
					d = a.Maxs[axis]
				}
				planeNum := tb.plane(axis, d)
				faceArea := (a.Maxs[u] - a.Mins[u]) * (a.Maxs[v] - a.Mins[v])
				covered := 0.0

				addFace := func(neighbor int, lo, hi [2]float64) {
					front, back := areaNum, neighbor
					sign := 1
					if side == 1 {
						front, back, sign = neighbor, areaNum, -1
					}
					key := faceKey{plane: planeNum, front: front, back: back, lo: lo, hi: hi}
					idx, ok := faceIdx[key]
					if !ok {
						flags := 0
						if neighbor == 0 {
							flags |= FaceSolid
							if axis == 2 && side == 0 {
								flags |= FaceGround
							}
						}
						faces = append(faces, Face{
							PlaneNum:  planeNum,
							FaceFlags: flags,
							NumEdges:  4,
							FirstEdge: mesh.polygon(quad(axis, d, lo, hi)),
							FrontArea: front,
							BackArea:  back,
						})
						idx = len(faces) - 1
						faceIdx[key] = idx
					}
					faceIndex = append(faceIndex, sign*idx)
				}

				for j, other := range b.areas {
					if j == i {
						continue
					}
					touching := (side == 0 && other.Maxs[axis] == d) || (side == 1 && other.Mins[axis] == d)
					if !touching {
						continue
					}
					lo := [2]float64{math.Max(a.Mins[u], other.Mins[u]), math.Max(a.Mins[v], other.Mins[v])}
					hi := [2]float64{math.Min(a.Maxs[u], other.Maxs[u]), math.Min(a.Maxs[v], other.Maxs[v])}
					if hi[0] <= lo[0] || hi[1] <= lo[1] {
						continue
					}
					covered += (hi[0] - lo[0]) * (hi[1] - lo[1])
					addFace(j+1, lo, hi)
				}
				if covered < faceArea-1e-6 {
					addFace(0, [2]float64{a.Mins[u], a.Mins[v]}, [2]float64{a.Maxs[u], a.Maxs[v]})
				}
			}
		}
		w.areas[areaNum] = Area{
			AreaNum:   areaNum,
			NumFaces:  len(faceIndex) - firstFace,
			FirstFace: firstFace,
			Mins:      a.Mins,
			Maxs:      a.Maxs,
			Center:    a.Mins.Add(a.Maxs).Scale(0.5),
		}

		reaches := b.reaches[areaNum]
		w.settings[areaNum] = AreaSettings{
			Contents:           a.Contents,
			AreaFlags:          a.Flags,
			PresenceType:       a.PresenceType,
			Cluster:            1,
			ClusterAreaNum:     i,
			NumReachableAreas:  len(reaches),
			FirstReachableArea: len(w.reach),
		}
		w.reach = append(w.reach, reaches...)
	}

	w.faces = faces
	w.faceIndex = faceIndex
	w.vertexes = mesh.vertexes
	w.edges = mesh.edges
	w.edgeIndex = mesh.edgeIndex
	w.bboxes = []BBox{
		{PresenceType: PresenceNormal, Mins: geom.Vec3{-15, -15, -24}, Maxs: geom.Vec3{15, 15, 32}},
		{PresenceType: PresenceCrouch, Mins: geom.Vec3{-15, -15, -24}, Maxs: geom.Vec3{15, 15, 8}},
	}
	w.portals = make([]Portal, 1)
	w.portalIndex = make([]int, 1)
	w.clusters = []Cluster{{}, {NumAreas: len(b.areas), NumReachabilityAreas: len(b.areas)}}

	w.counts = [numLumps]int{
		lumpBBoxes:       len(w.bboxes),
		lumpVertexes:     len(w.vertexes),
		lumpPlanes:       len(w.planes),
		lumpEdges:        len(w.edges),
		lumpEdgeIndex:    len(w.edgeIndex),
		lumpFaces:        len(w.faces),
		lumpFaceIndex:    len(w.faceIndex),
		lumpAreas:        len(w.areas),
		lumpAreaSettings: len(w.settings),
		lumpReachability: len(w.reach),
		lumpNodes:        len(w.nodes),
		lumpClusters:     len(w.clusters),
	}
	w.loaded = true

	var buf bytes.Buffer
	if err := Encode(&buf, w); err != nil {
		return nil, err
	}
	digest := md5.Sum(buf.Bytes())
	w.checksum = base64.StdEncoding.EncodeToString(digest[:])
	return w, nil
}
