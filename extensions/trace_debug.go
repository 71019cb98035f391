package extensions

import (
	"fmt"
	"strings"

	"github.com/m1gwings/treedrawer/tree"
	"github.com/rs/zerolog"

	collect "github.com/collect-fn/collect-go"
)

// TraceDebugExtension dumps a rendering of the collection trace whenever
// a collection fails, so the shape of the tree at the moment of failure
// is visible in the log.
type TraceDebugExtension struct {
	collect.BaseExtension
	logger zerolog.Logger
	trace  *collect.CollectionTrace
}

// NewTraceDebugExtension creates a trace debug extension over tr.
func NewTraceDebugExtension(logger zerolog.Logger, tr *collect.CollectionTrace) *TraceDebugExtension {
	return &TraceDebugExtension{
		BaseExtension: collect.NewBaseExtension("trace-debug"),
		logger:        logger,
		trace:         tr,
	}
}

func (e *TraceDebugExtension) OnError(err error, op *collect.Operation) {
	e.logger.Error().
		Str("scope", scopeName(op.Scope)).
		Err(err).
		Str("trace", RenderTrace(e.trace)).
		Msg("collection failed")
}

// RenderTrace draws every recorded collection tree, one root per block.
func RenderTrace(tr *collect.CollectionTrace) string {
	roots := tr.GetRoots()
	if len(roots) == 0 {
		return "(no collections recorded)"
	}

	var sb strings.Builder
	for _, root := range roots {
		t := tree.NewTree(tree.NodeString(nodeLabel(root)))
		addChildren(tr, t, root.ID)
		sb.WriteString(fmt.Sprintf("%v\n", t))
	}
	return sb.String()
}

func addChildren(tr *collect.CollectionTrace, t *tree.Tree, id string) {
	for i, child := range tr.GetChildren(id) {
		t.AddChild(tree.NodeString(nodeLabel(child)))
		sub, err := t.Child(i)
		if err != nil {
			continue
		}
		addChildren(tr, sub, child.ID)
	}
}

func nodeLabel(n *collect.TraceNode) string {
	name := collect.ScopeName().GetOrDefault(n, "(unnamed)")
	status := collect.StatusOf().GetOrDefault(n, collect.StatusRunning)
	if err, ok := collect.ErrorTag().Get(n); ok {
		return fmt.Sprintf("%s [%s: %v]", name, status, err)
	}
	return fmt.Sprintf("%s [%s]", name, status)
}
