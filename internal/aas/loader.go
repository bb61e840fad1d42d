package aas

import (
	"bytes"
	"crypto/md5"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"arena-bots/server/internal/geom"
	"arena-bots/server/internal/telemetry"
)

// Ident is the magic number opening every area file ("EAAS" little-endian).
const Ident = int32('S')<<24 | int32('A')<<16 | int32('A')<<8 | int32('E')

const (
	VersionOld = 4
	Version    = 5
)

// ZShift moves file coordinates down so that area mins match the ground.
const ZShift = -24.0 + 0.25

const (
	lumpBBoxes = iota
	lumpVertexes
	lumpPlanes
	lumpEdges
	lumpEdgeIndex
	lumpFaces
	lumpFaceIndex
	lumpAreas
	lumpAreaSettings
	lumpReachability
	lumpNodes
	lumpPortals
	lumpPortalIndex
	lumpClusters
	numLumps
)

// Exported lump numbers for LumpCount.
const (
	LumpBBoxes       = lumpBBoxes
	LumpVertexes     = lumpVertexes
	LumpPlanes       = lumpPlanes
	LumpEdges        = lumpEdges
	LumpEdgeIndex    = lumpEdgeIndex
	LumpFaces        = lumpFaces
	LumpFaceIndex    = lumpFaceIndex
	LumpAreas        = lumpAreas
	LumpAreaSettings = lumpAreaSettings
	LumpReachability = lumpReachability
	LumpNodes        = lumpNodes
	LumpPortals      = lumpPortals
	LumpPortalIndex  = lumpPortalIndex
	LumpClusters     = lumpClusters
	NumLumps         = numLumps
)

var lumpNames = [numLumps]string{
	"bboxes", "vertexes", "planes", "edges", "edgeindex", "faces", "faceindex",
	"areas", "areasettings", "reachability", "nodes", "portals", "portalindex", "clusters",
}

// LumpName returns a short human readable lump name.
func LumpName(lump int) string {
	if lump < 0 || lump >= numLumps {
		return "unknown"
	}
	return lumpNames[lump]
}

var (
	ErrTruncatedHeader    = errors.New("aas: truncated header")
	ErrBadIdent           = errors.New("aas: not an area file")
	ErrUnsupportedVersion = errors.New("aas: unsupported version")
	ErrTruncatedLump      = errors.New("aas: truncated lump")
	ErrCorruptTree        = errors.New("aas: corrupt plane tree")
)

type lumpHeader struct {
	Ofs int32
	Len int32
}

type fileHeader struct {
	Ident       int32
	Version     int32
	BSPChecksum int32
	Lumps       [numLumps]lumpHeader
}

// HeaderSize is the encoded size of the file header.
const HeaderSize = 12 + numLumps*8

type fileBBox struct {
	PresenceType int32
	Flags        int32
	Mins, Maxs   [3]float32
}

type filePlane struct {
	Normal [3]float32
	Dist   float32
	Type   int32
}

type fileFace struct {
	PlaneNum, FaceFlags, NumEdges, FirstEdge, FrontArea, BackArea int32
}

type fileArea struct {
	AreaNum, NumFaces, FirstFace int32
	Mins, Maxs, Center           [3]float32
}

type fileAreaSettings struct {
	Contents, AreaFlags, PresenceType, Cluster, ClusterAreaNum int32
	NumReachableAreas, FirstReachableArea                      int32
}

type fileReach struct {
	AreaNum, FaceNum, EdgeNum int32
	Start, End                [3]float32
	TravelType                int32
	TravelTime                uint16
	Pad                       uint16
}

type fileNode struct {
	PlaneNum int32
	Children [2]int32
}

type filePortal struct {
	AreaNum, FrontCluster, BackCluster int32
	ClusterAreaNum                     [2]int32
}

type fileCluster struct {
	NumAreas, NumReachabilityAreas, NumPortals, FirstPortal int32
}

// obfuscateHeader toggles the XOR keystream applied to version 5 headers
// from byte 8 onwards. Applying it twice restores the input.
func obfuscateHeader(raw []byte) {
	for i := 0; i+8 < len(raw) && i+8 < HeaderSize; i++ {
		raw[i+8] ^= byte(i * 119)
	}
}

// Load reads maps/<mapName>.aas below baseDir.
func Load(baseDir, mapName string, opts ...Option) (*World, error) {
	return LoadFile(filepath.Join(baseDir, "maps", mapName+".aas"), opts...)
}

// LoadFile decodes the area file at path.
func LoadFile(path string, opts ...Option) (*World, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("aas: read %s: %w", path, err)
	}
	world, err := Decode(data, opts...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return world, nil
}

// Decode parses a complete area file. Either every lump decodes and a loaded
// world is returned, or an error is returned and nothing is kept.
func Decode(data []byte, opts ...Option) (*World, error) {
	if len(data) < HeaderSize {
		return nil, ErrTruncatedHeader
	}
	raw := make([]byte, HeaderSize)
	copy(raw, data[:HeaderSize])

	var hdr fileHeader
	ident := int32(binary.LittleEndian.Uint32(raw[0:4]))
	if ident != Ident {
		return nil, fmt.Errorf("%w: ident %#x", ErrBadIdent, uint32(ident))
	}
	version := int32(binary.LittleEndian.Uint32(raw[4:8]))
	if version != VersionOld && version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}
	if version == Version {
		obfuscateHeader(raw)
	}
	if err := binary.Read(bytes.NewReader(raw), binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedHeader, err)
	}

	w := &World{
		version:     int(hdr.Version),
		bspChecksum: int(hdr.BSPChecksum),
		logger:      telemetry.WrapLogger(log.Default()),
	}
	w.apply(opts)
	if err := w.decodeLumps(data, &hdr); err != nil {
		return nil, err
	}
	if err := w.validateTree(); err != nil {
		return nil, err
	}

	digest := md5.Sum(data)
	w.checksum = base64.StdEncoding.EncodeToString(digest[:])
	w.loaded = true
	return w, nil
}

func readLump[T any](data []byte, hdr *fileHeader, lump int) ([]T, int, error) {
	var zero T
	size := binary.Size(zero)
	l := hdr.Lumps[lump]
	if l.Len == 0 {
		return make([]T, 1), 0, nil
	}
	if l.Ofs < 0 || l.Len < 0 || int64(l.Ofs)+int64(l.Len) > int64(len(data)) {
		return nil, 0, fmt.Errorf("%w: %s at %d+%d exceeds %d bytes", ErrTruncatedLump, LumpName(lump), l.Ofs, l.Len, len(data))
	}
	n := int(l.Len) / size
	if n == 0 {
		return make([]T, 1), 0, nil
	}
	out := make([]T, n)
	chunk := data[int(l.Ofs) : int(l.Ofs)+n*size]
	if err := binary.Read(bytes.NewReader(chunk), binary.LittleEndian, out); err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrTruncatedLump, LumpName(lump), err)
	}
	return out, n, nil
}

func vec(v [3]float32, zShift float64) geom.Vec3 {
	return geom.Vec3{float64(v[0]), float64(v[1]), float64(v[2]) + zShift}
}

func ints(src []int32) []int {
	out := make([]int, len(src))
	for i, v := range src {
		out[i] = int(v)
	}
	return out
}

func (w *World) decodeLumps(data []byte, hdr *fileHeader) error {
	shift := 0.0
	if w.version == Version {
		shift = ZShift
	}

	bboxes, n, err := readLump[fileBBox](data, hdr, lumpBBoxes)
	if err != nil {
		return err
	}
	w.counts[lumpBBoxes] = n
	w.bboxes = make([]BBox, len(bboxes))
	for i, b := range bboxes {
		w.bboxes[i] = BBox{PresenceType: int(b.PresenceType), Flags: int(b.Flags), Mins: vec(b.Mins, 0), Maxs: vec(b.Maxs, 0)}
	}

	vertexes, n, err := readLump[[3]float32](data, hdr, lumpVertexes)
	if err != nil {
		return err
	}
	w.counts[lumpVertexes] = n
	w.vertexes = make([]geom.Vec3, len(vertexes))
	for i, v := range vertexes {
		w.vertexes[i] = vec(v, shift)
	}

	planes, n, err := readLump[filePlane](data, hdr, lumpPlanes)
	if err != nil {
		return err
	}
	w.counts[lumpPlanes] = n
	w.planes = make([]Plane, len(planes))
	for i, p := range planes {
		w.planes[i] = Plane{Normal: vec(p.Normal, 0), Dist: float64(p.Dist), Type: int(p.Type)}
	}

	edges, n, err := readLump[[2]int32](data, hdr, lumpEdges)
	if err != nil {
		return err
	}
	w.counts[lumpEdges] = n
	w.edges = make([]Edge, len(edges))
	for i, e := range edges {
		w.edges[i] = Edge{V: [2]int{int(e[0]), int(e[1])}}
	}

	edgeIndex, n, err := readLump[int32](data, hdr, lumpEdgeIndex)
	if err != nil {
		return err
	}
	w.counts[lumpEdgeIndex] = n
	w.edgeIndex = ints(edgeIndex)

	faces, n, err := readLump[fileFace](data, hdr, lumpFaces)
	if err != nil {
		return err
	}
	w.counts[lumpFaces] = n
	w.faces = make([]Face, len(faces))
	for i, f := range faces {
		w.faces[i] = Face{
			PlaneNum:  int(f.PlaneNum),
			FaceFlags: int(f.FaceFlags),
			NumEdges:  int(f.NumEdges),
			FirstEdge: int(f.FirstEdge),
			FrontArea: int(f.FrontArea),
			BackArea:  int(f.BackArea),
		}
	}

	faceIndex, n, err := readLump[int32](data, hdr, lumpFaceIndex)
	if err != nil {
		return err
	}
	w.counts[lumpFaceIndex] = n
	w.faceIndex = ints(faceIndex)

	areas, n, err := readLump[fileArea](data, hdr, lumpAreas)
	if err != nil {
		return err
	}
	w.counts[lumpAreas] = n
	w.areas = make([]Area, len(areas))
	for i, a := range areas {
		w.areas[i] = Area{
			AreaNum:   int(a.AreaNum),
			NumFaces:  int(a.NumFaces),
			FirstFace: int(a.FirstFace),
			Mins:      vec(a.Mins, shift),
			Maxs:      vec(a.Maxs, shift),
			Center:    vec(a.Center, shift),
		}
	}

	settings, n, err := readLump[fileAreaSettings](data, hdr, lumpAreaSettings)
	if err != nil {
		return err
	}
	w.counts[lumpAreaSettings] = n
	w.settings = make([]AreaSettings, len(settings))
	for i, s := range settings {
		w.settings[i] = AreaSettings{
			Contents:           int(s.Contents),
			AreaFlags:          int(s.AreaFlags),
			PresenceType:       int(s.PresenceType),
			Cluster:            int(s.Cluster),
			ClusterAreaNum:     int(s.ClusterAreaNum),
			NumReachableAreas:  int(s.NumReachableAreas),
			FirstReachableArea: int(s.FirstReachableArea),
		}
	}

	reach, n, err := readLump[fileReach](data, hdr, lumpReachability)
	if err != nil {
		return err
	}
	w.counts[lumpReachability] = n
	w.reach = make([]Reachability, len(reach))
	for i, r := range reach {
		w.reach[i] = Reachability{
			AreaNum:    int(r.AreaNum),
			FaceNum:    int(r.FaceNum),
			EdgeNum:    int(r.EdgeNum),
			Start:      vec(r.Start, shift),
			End:        vec(r.End, shift),
			TravelType: int(r.TravelType),
			TravelTime: int(r.TravelTime),
		}
	}

	nodes, n, err := readLump[fileNode](data, hdr, lumpNodes)
	if err != nil {
		return err
	}
	w.counts[lumpNodes] = n
	w.nodes = make([]Node, len(nodes))
	for i, nd := range nodes {
		w.nodes[i] = Node{PlaneNum: int(nd.PlaneNum), Children: [2]int{int(nd.Children[0]), int(nd.Children[1])}}
	}

	portals, n, err := readLump[filePortal](data, hdr, lumpPortals)
	if err != nil {
		return err
	}
	w.counts[lumpPortals] = n
	w.portals = make([]Portal, len(portals))
	for i, p := range portals {
		w.portals[i] = Portal{
			AreaNum:        int(p.AreaNum),
			FrontCluster:   int(p.FrontCluster),
			BackCluster:    int(p.BackCluster),
			ClusterAreaNum: [2]int{int(p.ClusterAreaNum[0]), int(p.ClusterAreaNum[1])},
		}
	}

	portalIndex, n, err := readLump[int32](data, hdr, lumpPortalIndex)
	if err != nil {
		return err
	}
	w.counts[lumpPortalIndex] = n
	w.portalIndex = ints(portalIndex)

	clusters, n, err := readLump[fileCluster](data, hdr, lumpClusters)
	if err != nil {
		return err
	}
	w.counts[lumpClusters] = n
	w.clusters = make([]Cluster, len(clusters))
	for i, c := range clusters {
		w.clusters[i] = Cluster{
			NumAreas:             int(c.NumAreas),
			NumReachabilityAreas: int(c.NumReachabilityAreas),
			NumPortals:           int(c.NumPortals),
			FirstPortal:          int(c.FirstPortal),
		}
	}
	return nil
}

// validateTree rejects plane trees that would make descents index out of
// range.
func (w *World) validateTree() error {
	numNodes := w.counts[lumpNodes]
	for i := 1; i < numNodes; i++ {
		node := w.nodes[i]
		if node.PlaneNum < 0 || node.PlaneNum >= len(w.planes) {
			return fmt.Errorf("%w: node %d references plane %d", ErrCorruptTree, i, node.PlaneNum)
		}
		for _, child := range node.Children {
			if child >= numNodes || -child >= len(w.areas) {
				return fmt.Errorf("%w: node %d has child %d", ErrCorruptTree, i, child)
			}
		}
	}
	for i := 1; i < w.counts[lumpAreaSettings]; i++ {
		s := w.settings[i]
		if s.NumReachableAreas < 0 || s.FirstReachableArea < 0 || s.FirstReachableArea+s.NumReachableAreas > len(w.reach) {
			return fmt.Errorf("%w: area %d reachability range out of bounds", ErrCorruptTree, i)
		}
	}
	return nil
}
