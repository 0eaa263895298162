//nolint:revive // exported
package mcondition

// Comparison holds a boolean expr-lang expression whose operands may contain
// {{ }} templates, e.g. "{{status_code}} == 200".
type Comparison struct {
	Expression string
}

// Condition is the decision a condition node evaluates exactly once per
// visit.
type Condition struct {
	Comparisons Comparison
}
