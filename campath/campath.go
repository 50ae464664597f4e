// Package campath reads, plays back and records camera paths. A camera path
// file is a JSON array of records [tick, x, y, z, theta, phi, r0, r1].
package campath

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/achilleasa/radiance/log"
	"github.com/achilleasa/radiance/types"
)

var logger = log.New("campath")

var (
	ErrInvalidRecord   = errors.New("campath: invalid record")
	ErrTooFewPositions = errors.New("campath: at least two positions are required")
)

// Number of values in an encoded record.
const recordSize = 8

// Pose is a camera position plus spherical orientation angles.
type Pose struct {
	Position types.Vec3
	Theta    float32
	Phi      float32
}

// A Node is a recorded pose tagged with the tick it was captured on.
type Node struct {
	Tick     int
	Pose     Pose
	Reserved [2]float32
}

func (n Node) MarshalJSON() ([]byte, error) {
	return json.Marshal([recordSize]float64{
		float64(n.Tick),
		float64(n.Pose.Position[0]), float64(n.Pose.Position[1]), float64(n.Pose.Position[2]),
		float64(n.Pose.Theta), float64(n.Pose.Phi),
		float64(n.Reserved[0]), float64(n.Reserved[1]),
	})
}

func (n *Node) UnmarshalJSON(data []byte) error {
	var rec []float64
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if len(rec) != recordSize {
		return fmt.Errorf("%w: expected %d values; got %d", ErrInvalidRecord, recordSize, len(rec))
	}

	n.Tick = int(rec[0])
	n.Pose = Pose{
		Position: types.XYZ(float32(rec[1]), float32(rec[2]), float32(rec[3])),
		Theta:    float32(rec[4]),
		Phi:      float32(rec[5]),
	}
	n.Reserved = [2]float32{float32(rec[6]), float32(rec[7])}
	return nil
}

// Read a camera path.
func Read(r io.Reader) ([]Node, error) {
	var nodes []Node
	if err := json.NewDecoder(r).Decode(&nodes); err != nil {
		return nil, fmt.Errorf("campath: could not decode camera path: %w", err)
	}
	return nodes, nil
}

// ReadFile reads the camera path stored at path.
func ReadFile(path string) ([]Node, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("campath: %w", err)
	}
	defer f.Close()

	nodes, err := Read(f)
	if err != nil {
		return nil, err
	}
	logger.Infof("loaded %d camera path nodes from %s", len(nodes), path)
	return nodes, nil
}

// Write a camera path.
func Write(w io.Writer, nodes []Node) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(nodes)
}

// WriteFile writes nodes to path.
func WriteFile(path string, nodes []Node) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("campath: %w", err)
	}
	if err = Write(f, nodes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
