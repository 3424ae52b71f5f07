package compiler

import (
	"fmt"

	"github.com/ravi-parthasarathy/flowscript/pkg/descriptor"
	"github.com/ravi-parthasarathy/flowscript/pkg/pipeline"
)

// namer hands out output names of the form <type>_<n>. Names are reserved
// up front for every value-producing node of the whole graph, numbered per
// base in document order, so a node keeps its name whether the full graph or
// only the ancestry of some target is compiled.
type namer struct {
	reserved map[string]string // node id -> reserved name
	counters map[string]int
	used     map[string]string // name -> node id that bound it
}

func newNamer(nodes []pipeline.GraphNode, reg Resolver) *namer {
	n := &namer{
		reserved: make(map[string]string),
		counters: make(map[string]int),
		used:     make(map[string]string),
	}
	for _, node := range nodes {
		d, err := reg.Resolve(node.Type)
		if err != nil || !descriptor.ProducesValue(d) {
			continue
		}
		n.reserved[node.ID] = n.next(node.Type)
	}
	return n
}

func (n *namer) next(nodeType string) string {
	base := descriptor.Identifier(nodeType)
	n.counters[base]++
	return fmt.Sprintf("%s_%d", base, n.counters[base])
}

// propose returns the name reserved for nodeID, or the next free name past
// every reservation when it has none or an explicit output took it. It does
// not bind the name.
func (n *namer) propose(nodeID, nodeType string) string {
	if name, ok := n.reserved[nodeID]; ok {
		if _, taken := n.used[name]; !taken {
			return name
		}
	}
	for {
		name := n.next(nodeType)
		if _, taken := n.used[name]; !taken {
			return name
		}
	}
}

// bind records name as the output of nodeID. Binding a name twice is an
// error; the message names the node that holds it.
func (n *namer) bind(name, nodeID string) error {
	if owner, taken := n.used[name]; taken {
		return fmt.Errorf("output name %q is already bound by node %q", name, owner)
	}
	n.used[name] = nodeID
	return nil
}
