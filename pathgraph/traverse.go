package pathgraph

// SubtreeContains reports whether target is reachable from root by following
// Branches edges only, including root itself (spec.md's "segment subtree"
// glossary entry). Grounded on the teacher's dfs.DFS visited-set walk,
// specialized to the single predicate this package needs.
func SubtreeContains(p *Path, root, target SegmentID) bool {
	if root == target {
		return true
	}
	visited := make(map[SegmentID]bool)
	stack := []SegmentID{root}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, b := range p.segments[cur].Branches {
			if b == target {
				return true
			}
			if !visited[b] {
				stack = append(stack, b)
			}
		}
	}
	return false
}

// IsAncestor reports whether descendant is reachable from ancestor by
// following Branches edges, including ancestor == descendant.
func IsAncestor(p *Path, ancestor, descendant SegmentID) bool {
	return SubtreeContains(p, ancestor, descendant)
}

// ConnectedComponent returns the undirected closure of start: every segment
// reachable by following Parents or Branches edges in either direction,
// including start itself. Used by the merge strategy's "interconnected"
// check (spec.md §4.9), grounded on the teacher's dfs.DetectCycles
// three-color walk adapted to traverse both edge directions.
func ConnectedComponent(p *Path, start SegmentID) []SegmentID {
	visited := map[SegmentID]bool{start: true}
	order := []SegmentID{start}
	stack := []SegmentID{start}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		s := &p.segments[cur]
		for _, nb := range s.Parents {
			if !visited[nb] {
				visited[nb] = true
				order = append(order, nb)
				stack = append(stack, nb)
			}
		}
		for _, nb := range s.Branches {
			if !visited[nb] {
				visited[nb] = true
				order = append(order, nb)
				stack = append(stack, nb)
			}
		}
	}
	return order
}

// SharesComponent reports whether b is in a's connected component.
func SharesComponent(p *Path, a, b SegmentID) bool {
	for _, id := range ConnectedComponent(p, a) {
		if id == b {
			return true
		}
	}
	return false
}

// HasMultiParentDescendant reports whether any segment in root's branch
// subtree (root included) has two or more parents. The merge strategy
// refuses to merge when this holds for either side, since truncating and
// rewiring through a multi-parent descendant would desynchronize a parent
// edge the rewrite does not know about (spec.md §4.9).
func HasMultiParentDescendant(p *Path, root SegmentID) bool {
	visited := map[SegmentID]bool{}
	stack := []SegmentID{root}
	for len(stack) > 0 {
		n := len(stack) - 1
		cur := stack[n]
		stack = stack[:n]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if len(p.segments[cur].Parents) >= 2 {
			return true
		}
		stack = append(stack, p.segments[cur].Branches...)
	}
	return false
}
