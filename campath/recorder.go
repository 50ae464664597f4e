package campath

import "sync"

// Recorder collects poses captured interactively. It is safe for
// concurrent use.
type Recorder struct {
	mu    sync.Mutex
	nodes []Node
}

// Add records pose at tick.
func (r *Recorder) Add(tick int, pose Pose) {
	r.mu.Lock()
	r.nodes = append(r.nodes, Node{Tick: tick, Pose: pose})
	r.mu.Unlock()
}

// Nodes returns a copy of the recorded nodes.
func (r *Recorder) Nodes() []Node {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Node(nil), r.nodes...)
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}

// WriteFile writes the recorded path to path. A path with fewer than two
// positions is not written and ErrTooFewPositions is returned.
func (r *Recorder) WriteFile(path string) error {
	nodes := r.Nodes()
	if len(nodes) < 2 {
		return ErrTooFewPositions
	}
	if err := WriteFile(path, nodes); err != nil {
		return err
	}
	logger.Noticef("wrote %d camera path nodes to %s", len(nodes), path)
	return nil
}
