package navgraph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Load reads a navigation graph document from path. JSON and YAML are both
// accepted. Any read or parse failure wraps ErrInvalidGraph.
func Load(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidGraph, path, err)
	}
	g, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return g, nil
}

// Parse decodes a graph document. If the document has a non-empty "levels"
// map, the first level in document order is used; otherwise the root is.
func Parse(data []byte) (*Graph, error) {
	// Tab-indented JSON is not valid YAML; compacting keeps key order.
	if json.Valid(data) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err == nil {
			data = buf.Bytes()
		}
	}

	var doc rawDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidGraph, err)
	}

	level := doc.Root
	if doc.Levels.Kind == yaml.MappingNode && len(doc.Levels.Content) >= 2 {
		level = rawLevel{}
		if err := doc.Levels.Content[1].Decode(&level); err != nil {
			return nil, fmt.Errorf("%w: level %q: %v", ErrInvalidGraph, doc.Levels.Content[0].Value, err)
		}
	}
	if len(level.Vertices) == 0 {
		return nil, fmt.Errorf("%w: no vertices", ErrInvalidGraph)
	}

	vertices := make([]Vertex, len(level.Vertices))
	for i, rv := range level.Vertices {
		vertices[i] = Vertex{
			Name:      rv.Attrs.Name,
			Pos:       Point{X: rv.X, Y: rv.Y},
			IsCharger: rv.Attrs.IsCharger,
		}
	}
	lanes := make([][2]VertexID, len(level.Lanes))
	for i, rl := range level.Lanes {
		lanes[i] = [2]VertexID{VertexID(rl.From), VertexID(rl.To)}
	}
	return New(vertices, lanes)
}

type rawDoc struct {
	Levels yaml.Node `yaml:"levels"`
	Root   rawLevel  `yaml:",inline"`
}

type rawLevel struct {
	Vertices []rawVertex `yaml:"vertices"`
	Lanes    []rawLane   `yaml:"lanes"`
}

type vertexAttrs struct {
	Name      string `yaml:"name"`
	IsCharger bool   `yaml:"is_charger"`
}

// rawVertex is the tuple [x, y, {attrs}].
type rawVertex struct {
	X, Y  float64
	Attrs vertexAttrs
}

func (v *rawVertex) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode || len(n.Content) < 2 {
		return fmt.Errorf("line %d: vertex must be [x, y, {attrs}]", n.Line)
	}
	if err := n.Content[0].Decode(&v.X); err != nil {
		return fmt.Errorf("line %d: vertex x: %w", n.Line, err)
	}
	if err := n.Content[1].Decode(&v.Y); err != nil {
		return fmt.Errorf("line %d: vertex y: %w", n.Line, err)
	}
	if len(n.Content) > 2 && n.Content[2].Kind == yaml.MappingNode {
		if err := n.Content[2].Decode(&v.Attrs); err != nil {
			return fmt.Errorf("line %d: vertex attrs: %w", n.Line, err)
		}
	}
	return nil
}

// rawLane is the tuple [from, to, {attrs}]; attrs are ignored.
type rawLane struct {
	From, To int
}

func (l *rawLane) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode || len(n.Content) < 2 {
		return fmt.Errorf("line %d: lane must be [from, to, {attrs}]", n.Line)
	}
	if err := n.Content[0].Decode(&l.From); err != nil {
		return fmt.Errorf("line %d: lane from: %w", n.Line, err)
	}
	if err := n.Content[1].Decode(&l.To); err != nil {
		return fmt.Errorf("line %d: lane to: %w", n.Line, err)
	}
	return nil
}
