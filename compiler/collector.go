package compiler

// A collector assigns stable indices to unique instances in first-seen
// order.
type collector[T comparable] struct {
	items []T
	index map[T]int
}

func newCollector[T comparable](items []T) *collector[T] {
	c := &collector[T]{
		index: make(map[T]int, len(items)),
	}
	for _, item := range items {
		c.add(item)
	}
	return c
}

// Add item if not already collected and return its index.
func (c *collector[T]) add(item T) int {
	if index, exists := c.index[item]; exists {
		return index
	}
	c.items = append(c.items, item)
	c.index[item] = len(c.items) - 1
	return len(c.items) - 1
}

// Lookup the index of an already collected item.
func (c *collector[T]) lookup(item T) (int, bool) {
	index, exists := c.index[item]
	return index, exists
}

func (c *collector[T]) len() int {
	return len(c.items)
}
