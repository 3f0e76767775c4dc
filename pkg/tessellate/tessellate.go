// Package tessellate converts implicit surfaces into triangle meshes with
// uniform marching cubes. The model is tessellated one part at a time so
// each part gets its own mesh.
package tessellate

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/chazu/curvshade/pkg/logging"
	"github.com/chazu/curvshade/pkg/model"
	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
)

// DefaultCells is the marching cubes resolution along the longest axis of
// the bounding box.
const DefaultCells = 200

// Mesh is a triangle mesh suitable for rendering.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Mesh struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	PartName string    `json:"partName"` // model part this came from
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Vertices) == 0
}

// WriteJSON encodes the mesh as a single JSON object.
func (m *Mesh) WriteJSON(w io.Writer) error {
	if err := json.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("tessellate: encoding mesh %q: %w", m.PartName, err)
	}
	return nil
}

func checkCells(cells int) error {
	if cells <= 0 {
		return fmt.Errorf("tessellate: cells must be positive, got %d", cells)
	}
	return nil
}

// Tessellate runs marching cubes over s's bounding box. Every triangle gets
// its own three vertices carrying the face normal.
func Tessellate(s sdf.SDF3, cells int) (*Mesh, error) {
	if err := checkCells(cells); err != nil {
		return nil, err
	}
	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))

	numVerts := len(triangles) * 3
	vertices := make([]float32, 0, numVerts*3)
	normals := make([]float32, 0, numVerts*3)
	indices := make([]uint32, 0, numVerts)

	for i, tri := range triangles {
		n := tri.Normal()
		nx, ny, nz := float32(n.X), float32(n.Y), float32(n.Z)
		for j := 0; j < 3; j++ {
			v := tri[j]
			vertices = append(vertices, float32(v.X), float32(v.Y), float32(v.Z))
			normals = append(normals, nx, ny, nz)
			indices = append(indices, uint32(i*3+j))
		}
	}

	return &Mesh{
		Vertices: vertices,
		Normals:  normals,
		Indices:  indices,
	}, nil
}

// Parts tessellates each part of the model separately. Parts with no
// geometry in the table are skipped.
func Parts(f model.Field, cells int) ([]*Mesh, error) {
	parts := []model.Part{model.PartBody}
	if len(f.Table.Laces) > 0 {
		parts = append(parts, model.PartLace)
	}

	var meshes []*Mesh
	for _, part := range parts {
		mesh, err := Tessellate(f.Only(part), cells)
		if err != nil {
			return nil, fmt.Errorf("tessellate: part %s: %w", part, err)
		}
		mesh.PartName = part.String()
		logging.Logger().Debug("part tessellated",
			"part", mesh.PartName,
			"cells", cells,
			"triangles", mesh.TriangleCount())
		meshes = append(meshes, mesh)
	}
	return meshes, nil
}

// SaveSTL tessellates s and writes the triangles to path as binary STL.
func SaveSTL(path string, s sdf.SDF3, cells int) error {
	if err := checkCells(cells); err != nil {
		return err
	}
	triangles := render.ToTriangles(s, render.NewMarchingCubesUniform(cells))
	if err := render.SaveSTL(path, triangles); err != nil {
		return fmt.Errorf("tessellate: writing %s: %w", path, err)
	}
	logging.Logger().Info("mesh written", "path", path, "triangles", len(triangles))
	return nil
}
