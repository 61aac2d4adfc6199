package backend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/example/go-onnx-infer/internal/errs"
	"github.com/example/go-onnx-infer/internal/tensor"
)

// NodeSpec describes one declared graph input or output.
type NodeSpec struct {
	Name  string              `json:"name"`
	DType tensor.ElementType  `json:"dtype"`
	Shape []int64             `json:"shape"`
}

// GraphSpec is one entry of a model manifest: a named ONNX graph file
// plus its declared I/O signature.
type GraphSpec struct {
	Name    string
	Path    string
	Inputs  []NodeSpec
	Outputs []NodeSpec
}

// inputSpec implements the lookup half of Backend.InputShape and
// Backend.InputElementType for any type holding a GraphSpec.
func (g GraphSpec) inputSpec(name string) (NodeSpec, bool) {
	for _, n := range g.Inputs {
		if n.Name == name {
			return n, true
		}
	}

	return NodeSpec{}, false
}

type manifestFile struct {
	Graphs []manifestGraph `json:"graphs"`
}

type manifestGraph struct {
	Name     string     `json:"name"`
	Filename string     `json:"filename"`
	Inputs   []NodeSpec `json:"inputs"`
	Outputs  []NodeSpec `json:"outputs"`
}

// Manifest indexes every graph a model bundle declares, keyed by graph
// name (e.g. "encoder", "decoder", "classifier").
type Manifest struct {
	mu     sync.RWMutex
	graphs map[string]GraphSpec
	order  []string
}

// LoadManifest reads a model.json manifest describing one or more ONNX
// graphs belonging to a single model bundle. Filenames are resolved
// relative to the manifest's directory.
func LoadManifest(manifestPath string) (*Manifest, error) {
	if manifestPath == "" {
		return nil, fmt.Errorf("%w: manifest path is required", errs.ErrModelSource)
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read manifest: %v", errs.ErrModelSource, err)
	}

	var mf manifestFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, fmt.Errorf("%w: decode manifest: %v", errs.ErrModelSource, err)
	}

	if len(mf.Graphs) == 0 {
		return nil, fmt.Errorf("%w: manifest declares no graphs", errs.ErrModelSource)
	}

	baseDir := filepath.Dir(manifestPath)

	m := &Manifest{
		graphs: make(map[string]GraphSpec, len(mf.Graphs)),
		order:  make([]string, 0, len(mf.Graphs)),
	}

	for _, g := range mf.Graphs {
		if g.Name == "" {
			return nil, fmt.Errorf("%w: manifest graph has empty name", errs.ErrModelSource)
		}

		if g.Filename == "" {
			return nil, fmt.Errorf("%w: graph %q has empty filename", errs.ErrModelSource, g.Name)
		}

		if _, exists := m.graphs[g.Name]; exists {
			return nil, fmt.Errorf("%w: duplicate graph name %q", errs.ErrModelSource, g.Name)
		}

		path := g.Filename
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, g.Filename)
		}

		path = filepath.Clean(path)

		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: graph %q file: %v", errs.ErrModelSource, g.Name, err)
		}

		spec := GraphSpec{
			Name:    g.Name,
			Path:    path,
			Inputs:  append([]NodeSpec(nil), g.Inputs...),
			Outputs: append([]NodeSpec(nil), g.Outputs...),
		}

		m.graphs[g.Name] = spec
		m.order = append(m.order, g.Name)

		slog.Info("loaded onnx graph spec",
			"name", g.Name,
			"path", path,
			"inputs", nodeNames(g.Inputs),
			"outputs", nodeNames(g.Outputs))
	}

	return m, nil
}

// Graph returns the named graph spec.
func (m *Manifest) Graph(name string) (GraphSpec, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	g, ok := m.graphs[name]

	return g, ok
}

// Graphs returns every declared graph, in manifest order.
func (m *Manifest) Graphs() []GraphSpec {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]GraphSpec, 0, len(m.order))
	for _, name := range m.order {
		g := m.graphs[name]
		g.Inputs = append([]NodeSpec(nil), g.Inputs...)
		g.Outputs = append([]NodeSpec(nil), g.Outputs...)
		out = append(out, g)
	}

	return out
}

func nodeNames(nodes []NodeSpec) string {
	if len(nodes) == 0 {
		return ""
	}

	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}

	return strings.Join(names, ",")
}
