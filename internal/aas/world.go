// Package aas owns the area awareness graph of a level: the convex areas,
// the plane tree used to locate points in them, the reachability edges
// between them and the per-area data derived after loading.
package aas

import (
	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/telemetry"
	"arena-bots/server/logging"
)

// World is an immutable, loaded area graph. The zero value is an unloaded
// world whose queries all return their "no data" sentinels.
type World struct {
	version     int
	bspChecksum int
	checksum    string

	bboxes      []BBox
	vertexes    []geom.Vec3
	planes      []Plane
	edges       []Edge
	edgeIndex   []int
	faces       []Face
	faceIndex   []int
	areas       []Area
	settings    []AreaSettings
	reach       []Reachability
	nodes       []Node
	portals     []Portal
	portalIndex []int
	clusters    []Cluster

	counts [numLumps]int

	floorClusterNums  []int
	stairsClusterNums []int
	floorClusters     [][]int
	stairsClusters    [][]int

	loaded    bool
	logger    telemetry.Logger
	publisher logging.Publisher
}

// Option configures diagnostics of a World.
type Option func(*World)

// WithLogger routes plain text diagnostics to logger.
func WithLogger(logger telemetry.Logger) Option {
	return func(w *World) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithPublisher routes structured warnings to pub.
func WithPublisher(pub logging.Publisher) Option {
	return func(w *World) {
		if pub != nil {
			w.publisher = pub
		}
	}
}

func (w *World) apply(opts []Option) {
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
}

func (w *World) IsLoaded() bool { return w != nil && w.loaded }

// Version is the file format version the world was decoded from.
func (w *World) Version() int { return w.version }

// Checksum is the base64 encoded MD5 digest of the source file.
func (w *World) Checksum() string { return w.checksum }

func (w *World) BSPChecksum() int { return w.bspChecksum }

// Raw arrays. An empty lump is represented by a single zero record so that
// index 0 is always addressable; the Num* accessors report decoded counts.

func (w *World) BBoxes() []BBox                 { return w.bboxes }
func (w *World) Vertexes() []geom.Vec3          { return w.vertexes }
func (w *World) Planes() []Plane                { return w.planes }
func (w *World) Edges() []Edge                  { return w.edges }
func (w *World) EdgeIndex() []int               { return w.edgeIndex }
func (w *World) Faces() []Face                  { return w.faces }
func (w *World) FaceIndex() []int               { return w.faceIndex }
func (w *World) Areas() []Area                  { return w.areas }
func (w *World) AreaSettings() []AreaSettings   { return w.settings }
func (w *World) Reachabilities() []Reachability { return w.reach }
func (w *World) Nodes() []Node                  { return w.nodes }
func (w *World) Portals() []Portal              { return w.portals }
func (w *World) PortalIndex() []int             { return w.portalIndex }
func (w *World) Clusters() []Cluster            { return w.clusters }

func (w *World) NumAreas() int          { return w.count(lumpAreas) }
func (w *World) NumAreaSettings() int   { return w.count(lumpAreaSettings) }
func (w *World) NumReachabilities() int { return w.count(lumpReachability) }
func (w *World) NumNodes() int          { return w.count(lumpNodes) }
func (w *World) NumPlanes() int         { return w.count(lumpPlanes) }
func (w *World) NumFaces() int          { return w.count(lumpFaces) }
func (w *World) NumVertexes() int       { return w.count(lumpVertexes) }
func (w *World) NumEdges() int          { return w.count(lumpEdges) }
func (w *World) NumPortals() int        { return w.count(lumpPortals) }
func (w *World) NumClusters() int       { return w.count(lumpClusters) }

// LumpCount reports the number of records decoded for lump.
func (w *World) LumpCount(lump int) int { return w.count(lump) }

func (w *World) count(lump int) int {
	if w == nil || !w.loaded {
		return 0
	}
	return w.counts[lump]
}

func (w *World) validArea(areaNum int) bool {
	return w.IsLoaded() && areaNum > 0 && areaNum < w.counts[lumpAreas] && areaNum < len(w.settings)
}

// ReachabilitiesOf returns the outgoing edges of an area.
func (w *World) ReachabilitiesOf(areaNum int) []Reachability {
	if !w.validArea(areaNum) {
		return nil
	}
	s := w.settings[areaNum]
	first, end := s.FirstReachableArea, s.FirstReachableArea+s.NumReachableAreas
	if first < 0 || end > len(w.reach) || first >= end {
		return nil
	}
	return w.reach[first:end]
}

// AreaFaces returns the signed face index entries of an area.
func (w *World) AreaFaces(areaNum int) []int {
	if !w.validArea(areaNum) {
		return nil
	}
	a := w.areas[areaNum]
	if a.FirstFace < 0 || a.FirstFace+a.NumFaces > len(w.faceIndex) {
		return nil
	}
	return w.faceIndex[a.FirstFace : a.FirstFace+a.NumFaces]
}

func (w *World) AreaFloorClusterNum(areaNum int) int {
	if areaNum <= 0 || areaNum >= len(w.floorClusterNums) {
		return 0
	}
	return w.floorClusterNums[areaNum]
}

func (w *World) AreaStairsClusterNum(areaNum int) int {
	if areaNum <= 0 || areaNum >= len(w.stairsClusterNums) {
		return 0
	}
	return w.stairsClusterNums[areaNum]
}

// FloorClusters lists the areas of every floor cluster. Cluster 0 is a dummy.
func (w *World) FloorClusters() [][]int { return w.floorClusters }

// StairsClusters lists the areas of every stairs cluster ordered from the
// lowest step. Cluster 0 is a dummy.
func (w *World) StairsClusters() [][]int { return w.stairsClusters }
