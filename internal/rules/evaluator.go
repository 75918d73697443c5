package rules

import (
	"fmt"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
)

// Evaluation is the outcome of running an event through the rule set
type Evaluation struct {
	Delta          int64
	MatchedRuleIDs []uuid.UUID
	// ConditionErrors holds rules whose condition failed at runtime; such
	// rules are treated as not matching.
	ConditionErrors []error
}

// SortRules orders rules by priority, then creation time, then id
func SortRules(rules []PointRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

// Evaluate computes the point delta for an event. Matching rules are summed
// in evaluation order unless one of them is exclusive, in which case the
// first matching exclusive rule is applied alone. An event type with no
// rules yields a zero delta.
func Evaluate(event Event, facts SubscriberFacts, rules []PointRule) Evaluation {
	ordered := make([]PointRule, len(rules))
	copy(ordered, rules)
	SortRules(ordered)

	env := conditionEnv(event, facts)

	var result Evaluation
	for _, rule := range ordered {
		if !rule.IsActive || rule.EventType != event.Type {
			continue
		}

		matched, err := rule.matches(env)
		if err != nil {
			result.ConditionErrors = append(result.ConditionErrors, err)
			continue
		}
		if !matched {
			continue
		}

		if rule.Exclusive {
			return Evaluation{
				Delta:           rule.Points,
				MatchedRuleIDs:  []uuid.UUID{rule.ID},
				ConditionErrors: result.ConditionErrors,
			}
		}

		result.Delta += rule.Points
		result.MatchedRuleIDs = append(result.MatchedRuleIDs, rule.ID)
	}

	return result
}

// ValidateCondition checks that a condition compiles to a boolean expression
func ValidateCondition(condition string) error {
	if condition == "" {
		return nil
	}
	_, err := compileCondition(condition)
	return err
}

func compileCondition(condition string) (*vm.Program, error) {
	return expr.Compile(condition, expr.Env(conditionEnv(Event{}, SubscriberFacts{})), expr.AsBool())
}

// compiledCondition is the program built from one version of a rule's condition
type compiledCondition struct {
	source  string
	program *vm.Program
	err     error
}

// conditionPrograms holds the latest compiled condition of each rule. An
// edited condition replaces the entry on its next evaluation.
var conditionPrograms = struct {
	sync.RWMutex
	byRule map[uuid.UUID]compiledCondition
}{byRule: map[uuid.UUID]compiledCondition{}}

func (r PointRule) program() (*vm.Program, error) {
	conditionPrograms.RLock()
	cached, ok := conditionPrograms.byRule[r.ID]
	conditionPrograms.RUnlock()
	if ok && cached.source == r.Condition {
		return cached.program, cached.err
	}

	program, err := compileCondition(r.Condition)
	conditionPrograms.Lock()
	conditionPrograms.byRule[r.ID] = compiledCondition{source: r.Condition, program: program, err: err}
	conditionPrograms.Unlock()
	return program, err
}

func (r PointRule) matches(env map[string]interface{}) (bool, error) {
	if r.Condition == "" {
		return true, nil
	}

	program, err := r.program()
	if err != nil {
		return false, fmt.Errorf("rule %s: compile condition: %w", r.ID, err)
	}

	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("rule %s: run condition: %w", r.ID, err)
	}

	matched, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("rule %s: condition returned %T", r.ID, output)
	}
	return matched, nil
}

func conditionEnv(event Event, facts SubscriberFacts) map[string]interface{} {
	attributes := event.Attributes
	if attributes == nil {
		attributes = map[string]interface{}{}
	}
	return map[string]interface{}{
		"event": string(event.Type),
		"subscriber": map[string]interface{}{
			"score":          facts.Score,
			"verified":       facts.Verified,
			"referral_count": facts.ReferralCount,
		},
		"attributes": attributes,
	}
}
