package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func rule(eventType EventType, points int64, priority int, createdOffset time.Duration) PointRule {
	return PointRule{
		ID:        uuid.New(),
		EventType: eventType,
		Points:    points,
		Priority:  priority,
		IsActive:  true,
		CreatedAt: baseTime.Add(createdOffset),
	}
}

func TestSortRules_PriorityThenCreationTime(t *testing.T) {
	late := rule(EventReferralConfirmed, 1, 10, 2*time.Hour)
	early := rule(EventReferralConfirmed, 2, 10, time.Hour)
	first := rule(EventReferralConfirmed, 3, 1, 3*time.Hour)

	rules := []PointRule{late, early, first}
	SortRules(rules)

	assert.Equal(t, []uuid.UUID{first.ID, early.ID, late.ID},
		[]uuid.UUID{rules[0].ID, rules[1].ID, rules[2].ID})
}

func TestSortRules_IDBreaksFullTies(t *testing.T) {
	a := rule(EventReferralConfirmed, 1, 5, 0)
	b := rule(EventReferralConfirmed, 1, 5, 0)
	a.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b.ID = uuid.MustParse("00000000-0000-0000-0000-000000000002")

	rules := []PointRule{b, a}
	SortRules(rules)

	assert.Equal(t, a.ID, rules[0].ID)
}

func TestEvaluate(t *testing.T) {
	confirmedA := rule(EventReferralConfirmed, 10, 1, 0)
	confirmedB := rule(EventReferralConfirmed, 5, 2, 0)
	inactive := rule(EventReferralConfirmed, 100, 0, 0)
	inactive.IsActive = false
	verified := rule(EventReferralVerified, 7, 1, 0)

	exclusiveLate := rule(EventReferralConfirmed, 50, 3, 0)
	exclusiveLate.Exclusive = true
	exclusiveEarly := rule(EventReferralConfirmed, 40, 3, -time.Hour)
	exclusiveEarly.Exclusive = true

	tests := []struct {
		name      string
		eventType EventType
		rules     []PointRule
		wantDelta int64
		wantIDs   []uuid.UUID
	}{
		{
			name:      "additive over matching active rules",
			eventType: EventReferralConfirmed,
			rules:     []PointRule{confirmedB, verified, inactive, confirmedA},
			wantDelta: 15,
			wantIDs:   []uuid.UUID{confirmedA.ID, confirmedB.ID},
		},
		{
			name:      "first matching exclusive rule applies alone",
			eventType: EventReferralConfirmed,
			rules:     []PointRule{confirmedA, exclusiveLate, confirmedB, exclusiveEarly},
			wantDelta: 40,
			wantIDs:   []uuid.UUID{exclusiveEarly.ID},
		},
		{
			name:      "event type without rules yields zero",
			eventType: EventReferralCompleted,
			rules:     []PointRule{confirmedA, verified},
			wantDelta: 0,
		},
		{
			name:      "unknown event type yields zero",
			eventType: EventType("SOMETHING_ELSE"),
			rules:     []PointRule{confirmedA},
			wantDelta: 0,
		},
		{
			name:      "no rules",
			eventType: EventReferralConfirmed,
			wantDelta: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(Event{Type: tt.eventType}, SubscriberFacts{}, tt.rules)
			assert.Equal(t, tt.wantDelta, got.Delta)
			assert.Equal(t, tt.wantIDs, got.MatchedRuleIDs)
			assert.Empty(t, got.ConditionErrors)
		})
	}
}

func TestEvaluate_DoesNotReorderInput(t *testing.T) {
	second := rule(EventReferralConfirmed, 1, 2, 0)
	first := rule(EventReferralConfirmed, 1, 1, 0)
	input := []PointRule{second, first}

	Evaluate(Event{Type: EventReferralConfirmed}, SubscriberFacts{}, input)

	assert.Equal(t, second.ID, input[0].ID)
}

func TestEvaluate_Conditions(t *testing.T) {
	bonus := rule(EventReferralConfirmed, 25, 1, 0)
	bonus.Condition = `subscriber.referral_count >= 5`

	campaign := rule(EventReferralConfirmed, 3, 2, 0)
	campaign.Condition = `attributes.source == "twitter"`

	base := rule(EventReferralConfirmed, 10, 3, 0)

	rules := []PointRule{bonus, campaign, base}

	got := Evaluate(Event{Type: EventReferralConfirmed}, SubscriberFacts{ReferralCount: 2}, rules)
	assert.Equal(t, int64(10), got.Delta)

	got = Evaluate(Event{
		Type:       EventReferralConfirmed,
		Attributes: map[string]interface{}{"source": "twitter"},
	}, SubscriberFacts{ReferralCount: 5}, rules)
	assert.Equal(t, int64(38), got.Delta)
	assert.Equal(t, []uuid.UUID{bonus.ID, campaign.ID, base.ID}, got.MatchedRuleIDs)
}

func TestEvaluate_FailingConditionDoesNotMatch(t *testing.T) {
	broken := rule(EventReferralConfirmed, 99, 1, 0)
	broken.Condition = `attributes.count > 3`
	base := rule(EventReferralConfirmed, 10, 2, 0)

	got := Evaluate(Event{
		Type:       EventReferralConfirmed,
		Attributes: map[string]interface{}{"count": "many"},
	}, SubscriberFacts{}, []PointRule{broken, base})

	assert.Equal(t, int64(10), got.Delta)
	require.Len(t, got.ConditionErrors, 1)
}

func TestEvaluate_ConditionCompiledOncePerRuleVersion(t *testing.T) {
	bonus := rule(EventReferralConfirmed, 25, 1, 0)
	bonus.Condition = `subscriber.referral_count >= 5`
	rules := []PointRule{bonus}

	got := Evaluate(Event{Type: EventReferralConfirmed}, SubscriberFacts{ReferralCount: 5}, rules)
	assert.Equal(t, int64(25), got.Delta)
	compiled, err := bonus.program()
	require.NoError(t, err)

	got = Evaluate(Event{Type: EventReferralConfirmed}, SubscriberFacts{ReferralCount: 1}, rules)
	assert.Equal(t, int64(0), got.Delta)
	again, err := bonus.program()
	require.NoError(t, err)
	assert.Same(t, compiled, again)

	// An edited condition takes effect on the next evaluation
	bonus.Condition = `subscriber.referral_count >= 1`
	bonus.UpdatedAt = baseTime.Add(time.Hour)
	got = Evaluate(Event{Type: EventReferralConfirmed}, SubscriberFacts{ReferralCount: 1}, []PointRule{bonus})
	assert.Equal(t, int64(25), got.Delta)
	edited, err := bonus.program()
	require.NoError(t, err)
	assert.NotSame(t, compiled, edited)
}

func TestValidateCondition(t *testing.T) {
	assert.NoError(t, ValidateCondition(""))
	assert.NoError(t, ValidateCondition(`subscriber.verified && subscriber.score > 100`))
	assert.Error(t, ValidateCondition(`subscriber.score +`))
	assert.Error(t, ValidateCondition(`"not a bool"`))
}

func TestEventType_IsValid(t *testing.T) {
	assert.True(t, EventReferralCompleted.IsValid())
	assert.True(t, EventSubscriberSignup.IsValid())
	assert.False(t, EventReferralRevoked.IsValid())
	assert.False(t, EventType("").IsValid())
}
