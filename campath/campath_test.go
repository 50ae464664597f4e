package campath

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/achilleasa/radiance/types"
)

func TestReadWrite(t *testing.T) {
	nodes := []Node{
		{Tick: 0, Pose: Pose{Position: types.XYZ(1, 2, 3), Theta: 0.5, Phi: 1.25}},
		{Tick: 30, Pose: Pose{Position: types.XYZ(-1, 0, 4), Theta: 1.5, Phi: -0.25}},
	}

	var buf bytes.Buffer
	if err := Write(&buf, nodes); err != nil {
		t.Fatal(err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != len(nodes) {
		t.Fatalf("expected %d nodes; got %d", len(nodes), len(got))
	}
	for i := range nodes {
		if got[i] != nodes[i] {
			t.Fatalf("[node %d] expected %+v; got %+v", i, nodes[i], got[i])
		}
	}
}

func TestReadRecordFormat(t *testing.T) {
	type spec struct {
		input  string
		expErr bool
	}

	specs := []spec{
		{`[[10, 1, 2, 3, 0.5, 0.25, 0, 0]]`, false},
		{`[]`, false},
		{`[[10, 1, 2, 3, 0.5, 0.25]]`, true},
		{`[{"tick": 10}]`, true},
		{`not json`, true},
	}

	for specIndex, s := range specs {
		nodes, err := Read(strings.NewReader(s.input))
		if s.expErr {
			if err == nil {
				t.Fatalf("[spec %d] expected an error", specIndex)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
		}
		if len(nodes) == 1 {
			exp := Node{Tick: 10, Pose: Pose{Position: types.XYZ(1, 2, 3), Theta: 0.5, Phi: 0.25}}
			if nodes[0] != exp {
				t.Fatalf("[spec %d] expected %+v; got %+v", specIndex, exp, nodes[0])
			}
		}
	}
}

func TestPlayer(t *testing.T) {
	nodes := make([]Node, 5)
	for i := range nodes {
		nodes[i] = Node{Tick: i, Pose: Pose{Theta: float32(i)}}
	}

	type spec struct {
		offset int
		exp    []float32
	}

	specs := []spec{
		{0, []float32{0, 1, 2, 3, 4}},
		{3, []float32{3, 4}},
		{-1, []float32{0, 1, 2, 3, 4}},
		{10, nil},
	}

	for specIndex, s := range specs {
		p := NewPlayer(nodes, s.offset)
		var got []float32
		for {
			pose, ok := p.Next()
			if !ok {
				break
			}
			got = append(got, pose.Theta)
		}
		if len(got) != len(s.exp) {
			t.Fatalf("[spec %d] expected %d poses; got %d", specIndex, len(s.exp), len(got))
		}
		for i := range got {
			if got[i] != s.exp[i] {
				t.Fatalf("[spec %d] expected pose %d to have theta %f; got %f", specIndex, i, s.exp[i], got[i])
			}
		}
		if !p.Finished() {
			t.Fatalf("[spec %d] expected player to be finished", specIndex)
		}
		if p.Len() != len(nodes) {
			t.Fatalf("[spec %d] expected len %d; got %d", specIndex, len(nodes), p.Len())
		}
	}
}

func TestRecorderWriteFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "path.json")

	var r Recorder
	r.Add(0, Pose{Position: types.XYZ(0, 1, 4)})
	if err := r.WriteFile(path); !errors.Is(err, ErrTooFewPositions) {
		t.Fatalf("expected ErrTooFewPositions; got %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no file to be written for a single position")
	}

	r.Add(12, Pose{Position: types.XYZ(1, 1, 4), Theta: 0.3})
	if err := r.WriteFile(path); err != nil {
		t.Fatal(err)
	}

	nodes, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(nodes) != 2 || nodes[1].Tick != 12 || nodes[1].Pose.Theta != 0.3 {
		t.Fatalf("expected recorded nodes to round-trip; got %+v", nodes)
	}
}
