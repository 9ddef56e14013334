package chandb

// Unbounded marks a collection with no meaningful slot limit.
const Unbounded = int(^uint(0) >> 1)

// Collection is an ordered container with a tracked slot capacity. It is the
// storage primitive behind a channel's members, subchannels and privileges:
// insertion order is preserved, removal is by value, and the max-slots value
// is advisory (enforced by callers such as Channel.IsFull, not by Insert).
type Collection[T comparable] struct {
	items    []T
	maxSlots int
}

// NewCollection creates an empty collection with the given slot limit.
func NewCollection[T comparable](maxSlots int) *Collection[T] {
	return &Collection[T]{maxSlots: maxSlots}
}

// Insert appends v, preserving insertion order.
func (c *Collection[T]) Insert(v T) {
	c.items = append(c.items, v)
}

// Remove deletes the first occurrence of v and reports whether it was found.
func (c *Collection[T]) Remove(v T) bool {
	for i, item := range c.items {
		if item == v {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether v is present.
func (c *Collection[T]) Contains(v T) bool {
	for _, item := range c.items {
		if item == v {
			return true
		}
	}
	return false
}

// Used returns the number of occupied slots.
func (c *Collection[T]) Used() int {
	return len(c.items)
}

// MaxSlots returns the slot limit.
func (c *Collection[T]) MaxSlots() int {
	return c.maxSlots
}

// SetMaxSlots changes the slot limit without touching current contents.
func (c *Collection[T]) SetMaxSlots(n int) {
	c.maxSlots = n
}

// Full reports whether the used count has reached the slot limit.
func (c *Collection[T]) Full() bool {
	return len(c.items) >= c.maxSlots
}

// Items returns the underlying ordered slice. Callers must not mutate it;
// structural changes go through Insert and Remove.
func (c *Collection[T]) Items() []T {
	return c.items
}
