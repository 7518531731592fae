package hierarchy

// SourceAnomalies are the data-quality findings of a pre-load scan.
// They are advisory: the run proceeds regardless, because the load phases
// are independently cycle-safe.
type SourceAnomalies struct {
	SelfRefs int
	Orphans  int
	Cycles   int
}

// Any reports whether at least one anomaly was found.
func (a SourceAnomalies) Any() bool {
	return a.SelfRefs > 0 || a.Orphans > 0 || a.Cycles > 0
}

// Validate scans the batch for self-references, orphans and cycles without
// touching the target store.
func Validate(nodes []*Node) SourceAnomalies {
	var anomalies SourceAnomalies

	codes := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if n.Code != "" {
			codes[n.Code] = true
		}
	}

	parentOf := make(map[string]string, len(nodes))
	for _, n := range nodes {
		if n.Code == "" {
			continue
		}
		parentOf[n.Code] = n.ParentCode
		if n.ParentCode != "" && n.ParentCode != RootSentinel && n.ParentCode == n.Code {
			anomalies.SelfRefs++
		}
		if n.ParentCode != "" && n.ParentCode != RootSentinel && n.ParentCode != n.Code && !codes[n.ParentCode] {
			anomalies.Orphans++
		}
	}

	// Walk each parent chain once. A code revisited within the current
	// trail closes a cycle; a code resolved by an earlier walk ends the
	// current one without counting. Every trail member is marked resolved
	// afterwards, keeping total work near-linear.
	resolved := make(map[string]bool, len(parentOf))
	for code := range parentOf {
		if resolved[code] {
			continue
		}
		trail := make(map[string]bool)
		current := code
		for current != "" {
			if _, known := parentOf[current]; !known {
				break
			}
			if resolved[current] {
				break
			}
			if trail[current] {
				anomalies.Cycles++
				break
			}
			trail[current] = true
			next := parentOf[current]
			if next == "" || next == RootSentinel || next == current {
				break
			}
			current = next
		}
		for n := range trail {
			resolved[n] = true
		}
	}

	return anomalies
}
