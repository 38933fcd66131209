package cache

// recencyNode links one cached frame into the recency list.
// The node carries its key so eviction can delete from the entry map.
type recencyNode struct {
	key   FrameKey
	size  int64
	frame *Frame
	prev  *recencyNode
	next  *recencyNode
}

// recencyList is a doubly-linked list ordered by last use.
// Front is the most recently used entry, back is the eviction candidate.
// Not thread-safe; FrameCache holds its mutex around every call.
type recencyList struct {
	front *recencyNode
	back  *recencyNode
	len   int
}

// pushFront links n as the most recently used node.
func (l *recencyList) pushFront(n *recencyNode) {
	n.prev = nil
	n.next = l.front
	if l.front != nil {
		l.front.prev = n
	} else {
		l.back = n
	}
	l.front = n
	l.len++
}

// touch moves n to the front.
func (l *recencyList) touch(n *recencyNode) {
	if n == l.front {
		return
	}
	l.unlink(n)
	l.pushFront(n)
}

// oldest returns the least recently used node, or nil.
func (l *recencyList) oldest() *recencyNode {
	return l.back
}

// unlink removes n from the list and clears its links.
func (l *recencyList) unlink(n *recencyNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.front = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.back = n.prev
	}
	n.prev = nil
	n.next = nil
	l.len--
}

// reset drops every node.
func (l *recencyList) reset() {
	l.front = nil
	l.back = nil
	l.len = 0
}
