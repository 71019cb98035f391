package collect

import (
	"context"
	"sync"
	"time"
)

// CollectionStatus is the recorded outcome of a traced collection.
type CollectionStatus int

const (
	StatusRunning CollectionStatus = iota
	StatusSuccess
	StatusFailed
	StatusCancelled
)

func (s CollectionStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

var (
	scopeNameTag  = NewTag[string]("collect.scope")
	startTimeTag  = NewTag[time.Time]("collect.start_time")
	endTimeTag    = NewTag[time.Time]("collect.end_time")
	statusTag     = NewTag[CollectionStatus]("collect.status")
	errorTag      = NewTag[error]("collect.error")
	outputTag     = NewTag[any]("collect.output")
	panicStackTag = NewTag[[]byte]("collect.panic_stack")
)

func ScopeName() Tag[string]          { return scopeNameTag }
func StartTime() Tag[time.Time]       { return startTimeTag }
func EndTime() Tag[time.Time]         { return endTimeTag }
func StatusOf() Tag[CollectionStatus] { return statusTag }
func ErrorTag() Tag[error]            { return errorTag }
func Output() Tag[any]                { return outputTag }
func PanicStack() Tag[[]byte]         { return panicStackTag }

type parentNodeKey struct{}

func withParentNode(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, parentNodeKey{}, id)
}

func parentNodeID(ctx context.Context) string {
	id, _ := ctx.Value(parentNodeKey{}).(string)
	return id
}

// TraceNode is one settled collection in a trace. Parent links follow the
// scope nesting the collection was pulled through.
type TraceNode struct {
	ID       string
	ParentID string
	Tags     map[any]any
}

func (n *TraceNode) GetTag(tag any) (any, bool) {
	v, ok := n.Tags[tag]
	return v, ok
}

func (n *TraceNode) SetTag(tag any, val any) {
	n.Tags[tag] = val
}

func (n *TraceNode) GetAllTags() map[any]any {
	return n.Tags
}

// CollectionTrace records settled collections for the scopes attached to
// it, bounded to limit nodes with oldest-root eviction. Evicted nodes
// must not be retained by callers; their tag maps are recycled.
type CollectionTrace struct {
	mu       sync.RWMutex
	nodes    map[string]*TraceNode
	byParent map[string][]string
	roots    []string
	limit    int
}

// NewCollectionTrace creates a trace bounded to limit nodes. A
// non-positive limit is a programming error and panics with
// *ProtocolError.
func NewCollectionTrace(limit int) *CollectionTrace {
	if limit <= 0 {
		panic(&ProtocolError{Op: "trace.new", Reason: "limit must be positive"})
	}
	return &CollectionTrace{
		nodes:    make(map[string]*TraceNode),
		byParent: make(map[string][]string),
		roots:    []string{},
		limit:    limit,
	}
}

func (t *CollectionTrace) addNode(node *TraceNode) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nodes[node.ID] = node

	if node.ParentID == "" {
		t.roots = append(t.roots, node.ID)
	} else {
		t.byParent[node.ParentID] = append(t.byParent[node.ParentID], node.ID)
	}

	if len(t.nodes) > t.limit {
		t.evictOldest()
	}
}

func (t *CollectionTrace) evictOldest() {
	if len(t.roots) == 0 {
		return
	}

	oldestRoot := t.roots[0]
	t.roots = t.roots[1:]

	t.removeSubtree(oldestRoot)
}

func (t *CollectionTrace) removeSubtree(nodeID string) {
	if node := t.nodes[nodeID]; node != nil {
		releaseTagMap(node.Tags)
		node.Tags = nil
	}
	delete(t.nodes, nodeID)

	children := t.byParent[nodeID]
	delete(t.byParent, nodeID)

	for _, childID := range children {
		t.removeSubtree(childID)
	}
}

func (t *CollectionTrace) GetNode(id string) *TraceNode {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.nodes[id]
}

func (t *CollectionTrace) GetChildren(id string) []*TraceNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	childIDs := t.byParent[id]
	children := make([]*TraceNode, 0, len(childIDs))
	for _, childID := range childIDs {
		if node := t.nodes[childID]; node != nil {
			children = append(children, node)
		}
	}
	return children
}

func (t *CollectionTrace) GetRoots() []*TraceNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	roots := make([]*TraceNode, 0, len(t.roots))
	for _, rootID := range t.roots {
		if node := t.nodes[rootID]; node != nil {
			roots = append(roots, node)
		}
	}
	return roots
}

func (t *CollectionTrace) Filter(predicate func(*TraceNode) bool) []*TraceNode {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var result []*TraceNode
	for _, node := range t.nodes {
		if predicate(node) {
			result = append(result, node)
		}
	}
	return result
}

func (t *CollectionTrace) Walk(rootID string, visitor func(*TraceNode) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	t.walkUnlocked(rootID, visitor)
}

func (t *CollectionTrace) walkUnlocked(nodeID string, visitor func(*TraceNode) bool) {
	node := t.nodes[nodeID]
	if node == nil {
		return
	}

	if !visitor(node) {
		return
	}

	for _, childID := range t.byParent[nodeID] {
		t.walkUnlocked(childID, visitor)
	}
}

// Size returns the number of recorded nodes.
func (t *CollectionTrace) Size() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.nodes)
}
