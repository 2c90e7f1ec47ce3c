package review

// OpKind is the reconciler's decision for one finding.
type OpKind string

const (
	OpCreate OpKind = "create"
	OpSkip   OpKind = "skip"
)

// Op is one reconciliation decision. Reason is set for skips.
type Op struct {
	Kind    OpKind
	Finding Finding
	Key     CommentKey
	Reason  string
}

// Reconcile compares findings against the comment keys already present
// on the pull request and decides, per finding, whether to create a
// comment or skip it. Findings are processed in merge order and the
// first occurrence of a key wins within the run. The result is purely
// additive: existing comments are never updated or deleted, so
// re-running over an unchanged diff produces no new comments.
func Reconcile(findings []Finding, existing map[CommentKey]bool) []Op {
	ops := make([]Op, 0, len(findings))
	seen := make(map[CommentKey]bool, len(findings))
	for _, f := range findings {
		key := KeyFor(f)
		switch {
		case existing[key]:
			ops = append(ops, Op{Kind: OpSkip, Finding: f, Key: key, Reason: "already commented in a previous run"})
		case seen[key]:
			ops = append(ops, Op{Kind: OpSkip, Finding: f, Key: key, Reason: "duplicate finding in this run"})
		default:
			seen[key] = true
			ops = append(ops, Op{Kind: OpCreate, Finding: f, Key: key})
		}
	}
	return ops
}

// Creates filters ops down to the create decisions.
func Creates(ops []Op) []Op {
	var out []Op
	for _, op := range ops {
		if op.Kind == OpCreate {
			out = append(out, op)
		}
	}
	return out
}

// DeduplicateFindings removes findings whose comment key repeats,
// keeping the first occurrence in merge order.
func DeduplicateFindings(findings []Finding) []Finding {
	seen := make(map[CommentKey]bool)
	var result []Finding
	for _, f := range findings {
		key := KeyFor(f)
		if !seen[key] {
			seen[key] = true
			result = append(result, f)
		}
	}
	return result
}
