package aas

import "arena-bots/server/internal/geom"

type BBox struct {
	PresenceType int
	Flags        int
	Mins, Maxs   geom.Vec3
}

type Plane struct {
	Normal geom.Vec3
	Dist   float64
	Type   int
}

// Edge joins two vertex indices.
type Edge struct {
	V [2]int
}

// Face bounds an area. Negative entries in the face index refer to the face
// seen from its back side.
type Face struct {
	PlaneNum  int
	FaceFlags int
	NumEdges  int
	FirstEdge int
	FrontArea int
	BackArea  int
}

type Area struct {
	AreaNum   int
	NumFaces  int
	FirstFace int
	Mins      geom.Vec3
	Maxs      geom.Vec3
	Center    geom.Vec3
}

type AreaSettings struct {
	Contents           int
	AreaFlags          int
	PresenceType       int
	Cluster            int
	ClusterAreaNum     int
	NumReachableAreas  int
	FirstReachableArea int
}

// Reachability is a directed movement edge towards AreaNum. TravelTime is in
// hundredths of a second.
type Reachability struct {
	AreaNum    int
	FaceNum    int
	EdgeNum    int
	Start      geom.Vec3
	End        geom.Vec3
	TravelType int
	TravelTime int
}

// Type returns the travel type with team restriction bits stripped.
func (r Reachability) Type() int { return r.TravelType & TravelTypeMask }

// Node is a plane tree node. A positive child is a node index, a negative
// child is a leaf area (-areaNum) and zero is solid.
type Node struct {
	PlaneNum int
	Children [2]int
}

type Portal struct {
	AreaNum        int
	FrontCluster   int
	BackCluster    int
	ClusterAreaNum [2]int
}

type Cluster struct {
	NumAreas             int
	NumReachabilityAreas int
	NumPortals           int
	FirstPortal          int
}
