// Package scoring awards points to a prediction given the final result.
//
// Rules are checked in a fixed order and the first one that matches wins:
//
//	exact score              5
//	same goal difference     3
//	same tendency (winner)   1
//	otherwise                0
//
// A drawn prediction against a different draw (1–1 vs 2–2) has the same goal
// difference and earns 3.
package scoring

// Rule names the rule that decided a prediction's points.
type Rule string

const (
	RuleExact      Rule = "exact"
	RuleDifference Rule = "difference"
	RuleTendency   Rule = "tendency"
	RuleMiss       Rule = "miss"
)

const (
	PointsExact      = 5
	PointsDifference = 3
	PointsTendency   = 1
	PointsMiss       = 0
)

// Score is a pair of goal counts.
type Score struct {
	Home int
	Away int
}

func (s Score) diff() int { return s.Home - s.Away }

// Evaluate returns the points and the deciding rule for predicted against
// actual.
func Evaluate(predicted, actual Score) (int, Rule) {
	switch {
	case predicted == actual:
		return PointsExact, RuleExact
	case predicted.diff() == actual.diff():
		return PointsDifference, RuleDifference
	case predicted.diff()*actual.diff() > 0:
		return PointsTendency, RuleTendency
	}
	return PointsMiss, RuleMiss
}

// Points is Evaluate without the rule.
func Points(predicted, actual Score) int {
	p, _ := Evaluate(predicted, actual)
	return p
}
