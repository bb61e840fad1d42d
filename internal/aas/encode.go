package aas

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"

	"arena-bots/server/internal/geom"
)

// Encode writes world as a version 5 area file. Coordinates are shifted back
// into file space so that Decode reproduces the in-memory values.
func Encode(out io.Writer, w *World) error {
	if !w.IsLoaded() {
		return ErrNotLoaded
	}
	unshift := -ZShift

	var body bytes.Buffer
	var hdr fileHeader
	hdr.Ident = Ident
	hdr.Version = Version
	hdr.BSPChecksum = int32(w.bspChecksum)

	writeLump := func(lump int, records any) error {
		start := body.Len()
		if w.counts[lump] > 0 {
			if err := binary.Write(&body, binary.LittleEndian, records); err != nil {
				return err
			}
		}
		hdr.Lumps[lump] = lumpHeader{Ofs: int32(HeaderSize + start), Len: int32(body.Len() - start)}
		return nil
	}

	f32 := func(v geom.Vec3, zShift float64) [3]float32 {
		return [3]float32{float32(v[0]), float32(v[1]), float32(v[2] + zShift)}
	}

	bboxes := make([]fileBBox, w.counts[lumpBBoxes])
	for i := range bboxes {
		b := w.bboxes[i]
		bboxes[i] = fileBBox{PresenceType: int32(b.PresenceType), Flags: int32(b.Flags), Mins: f32(b.Mins, 0), Maxs: f32(b.Maxs, 0)}
	}
	vertexes := make([][3]float32, w.counts[lumpVertexes])
	for i := range vertexes {
		vertexes[i] = f32(w.vertexes[i], unshift)
	}
	planes := make([]filePlane, w.counts[lumpPlanes])
	for i := range planes {
		p := w.planes[i]
		planes[i] = filePlane{Normal: f32(p.Normal, 0), Dist: float32(p.Dist), Type: int32(p.Type)}
	}
	edges := make([][2]int32, w.counts[lumpEdges])
	for i := range edges {
		edges[i] = [2]int32{int32(w.edges[i].V[0]), int32(w.edges[i].V[1])}
	}
	faces := make([]fileFace, w.counts[lumpFaces])
	for i := range faces {
		f := w.faces[i]
		faces[i] = fileFace{
			PlaneNum:  int32(f.PlaneNum),
			FaceFlags: int32(f.FaceFlags),
			NumEdges:  int32(f.NumEdges),
			FirstEdge: int32(f.FirstEdge),
			FrontArea: int32(f.FrontArea),
			BackArea:  int32(f.BackArea),
		}
	}
	areas := make([]fileArea, w.counts[lumpAreas])
	for i := range areas {
		a := w.areas[i]
		areas[i] = fileArea{
			AreaNum:   int32(a.AreaNum),
			NumFaces:  int32(a.NumFaces),
			FirstFace: int32(a.FirstFace),
			Mins:      f32(a.Mins, unshift),
			Maxs:      f32(a.Maxs, unshift),
			Center:    f32(a.Center, unshift),
		}
	}
	settings := make([]fileAreaSettings, w.counts[lumpAreaSettings])
	for i := range settings {
		s := w.settings[i]
		settings[i] = fileAreaSettings{
			Contents:           int32(s.Contents),
			AreaFlags:          int32(s.AreaFlags),
			PresenceType:       int32(s.PresenceType),
			Cluster:            int32(s.Cluster),
			ClusterAreaNum:     int32(s.ClusterAreaNum),
			NumReachableAreas:  int32(s.NumReachableAreas),
			FirstReachableArea: int32(s.FirstReachableArea),
		}
	}
	reach := make([]fileReach, w.counts[lumpReachability])
	for i := range reach {
		r := w.reach[i]
		reach[i] = fileReach{
			AreaNum:    int32(r.AreaNum),
			FaceNum:    int32(r.FaceNum),
			EdgeNum:    int32(r.EdgeNum),
			Start:      f32(r.Start, unshift),
			End:        f32(r.End, unshift),
			TravelType: int32(r.TravelType),
			TravelTime: uint16(r.TravelTime),
		}
	}
	nodes := make([]fileNode, w.counts[lumpNodes])
	for i := range nodes {
		n := w.nodes[i]
		nodes[i] = fileNode{PlaneNum: int32(n.PlaneNum), Children: [2]int32{int32(n.Children[0]), int32(n.Children[1])}}
	}
	portals := make([]filePortal, w.counts[lumpPortals])
	for i := range portals {
		p := w.portals[i]
		portals[i] = filePortal{
			AreaNum:        int32(p.AreaNum),
			FrontCluster:   int32(p.FrontCluster),
			BackCluster:    int32(p.BackCluster),
			ClusterAreaNum: [2]int32{int32(p.ClusterAreaNum[0]), int32(p.ClusterAreaNum[1])},
		}
	}
	clusters := make([]fileCluster, w.counts[lumpClusters])
	for i := range clusters {
		c := w.clusters[i]
		clusters[i] = fileCluster{
			NumAreas:             int32(c.NumAreas),
			NumReachabilityAreas: int32(c.NumReachabilityAreas),
			NumPortals:           int32(c.NumPortals),
			FirstPortal:          int32(c.FirstPortal),
		}
	}

	toInt32 := func(src []int, n int) []int32 {
		out := make([]int32, n)
		for i := 0; i < n; i++ {
			out[i] = int32(src[i])
		}
		return out
	}

	lumps := [numLumps]any{
		bboxes, vertexes, planes, edges,
		toInt32(w.edgeIndex, w.counts[lumpEdgeIndex]),
		faces,
		toInt32(w.faceIndex, w.counts[lumpFaceIndex]),
		areas, settings, reach, nodes, portals,
		toInt32(w.portalIndex, w.counts[lumpPortalIndex]),
		clusters,
	}
	for lump, records := range lumps {
		if err := writeLump(lump, records); err != nil {
			return err
		}
	}

	var head bytes.Buffer
	if err := binary.Write(&head, binary.LittleEndian, &hdr); err != nil {
		return err
	}
	raw := head.Bytes()
	obfuscateHeader(raw)
	if _, err := out.Write(raw); err != nil {
		return err
	}
	_, err := out.Write(body.Bytes())
	return err
}

// ErrNotLoaded is returned by operations that need a loaded world.
var ErrNotLoaded = errors.New("aas: world not loaded")
