package campath

// Player steps through a camera path one node at a time.
type Player struct {
	nodes []Node
	next  int
}

// NewPlayer creates a player that skips the first offset nodes.
func NewPlayer(nodes []Node, offset int) *Player {
	if offset < 0 {
		offset = 0
	}
	if offset > len(nodes) {
		offset = len(nodes)
	}
	return &Player{nodes: nodes, next: offset}
}

// Next returns the next pose. Once the path is exhausted it returns false.
func (p *Player) Next() (Pose, bool) {
	if p.next >= len(p.nodes) {
		return Pose{}, false
	}
	pose := p.nodes[p.next].Pose
	p.next++
	return pose, true
}

// Finished returns true if all nodes have been played.
func (p *Player) Finished() bool {
	return p.next >= len(p.nodes)
}

// Len returns the total number of nodes in the path.
func (p *Player) Len() int {
	return len(p.nodes)
}

// Position returns the index of the next node to be played.
func (p *Player) Position() int {
	return p.next
}
