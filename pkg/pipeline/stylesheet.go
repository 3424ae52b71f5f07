package pipeline

import "strings"

// Stylesheet holds CSS-like default data rules for DOT-authored flows.
//
//	type[read_csv] { sep: ";"; encoding: "latin-1" }
//	* { owner: "etl" }
type Stylesheet struct {
	Rules []StyleRule
}

// StyleRule sets data defaults on nodes matching a selector.
type StyleRule struct {
	Selector string // "*", "type[read_csv]" or "id[load]"
	Keys     []string
	Values   map[string]string
}

// ParseStylesheet parses a data_stylesheet attribute value.
func ParseStylesheet(src string) *Stylesheet {
	ss := &Stylesheet{}
	for _, part := range strings.Split(strings.TrimSpace(src), "}") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		braceIdx := strings.Index(part, "{")
		if braceIdx < 0 {
			continue
		}
		rule := StyleRule{
			Selector: strings.TrimSpace(part[:braceIdx]),
			Values:   make(map[string]string),
		}
		for _, line := range strings.Split(part[braceIdx+1:], ";") {
			k, v, ok := strings.Cut(line, ":")
			if !ok {
				continue
			}
			k = strings.TrimSpace(k)
			if k == "" {
				continue
			}
			if _, dup := rule.Values[k]; !dup {
				rule.Keys = append(rule.Keys, k)
			}
			rule.Values[k] = strings.Trim(strings.TrimSpace(v), `"`)
		}
		ss.Rules = append(ss.Rules, rule)
	}
	return ss
}

// Apply fills in data keys from matching rules. Keys already present on the
// node are left alone; among rules, later ones win.
func (ss *Stylesheet) Apply(n *Node) {
	if ss == nil {
		return
	}
	explicit := make(map[string]bool, len(n.Data))
	for k := range n.Data {
		explicit[k] = true
	}
	for _, rule := range ss.Rules {
		if !matchesSelector(rule.Selector, n) {
			continue
		}
		if n.Data == nil {
			n.Data = make(map[string]any)
		}
		for _, k := range rule.Keys {
			if !explicit[k] {
				n.Data[k] = rule.Values[k]
			}
		}
	}
}

// matchesSelector returns true if the node matches the given selector.
// Supported selectors:
//   - "*"               all nodes
//   - "type[read_csv]"  nodes with type == read_csv
//   - "id[my_node]"     the node with id == my_node
func matchesSelector(selector string, node *Node) bool {
	selector = strings.TrimSpace(selector)
	if selector == "*" {
		return true
	}
	if strings.HasPrefix(selector, "type[") && strings.HasSuffix(selector, "]") {
		return node.Type == selector[5:len(selector)-1]
	}
	if strings.HasPrefix(selector, "id[") && strings.HasSuffix(selector, "]") {
		return node.ID == selector[3:len(selector)-1]
	}
	return false
}
