// Package eligibility decides whether a donor may donate again.
// Evaluation is pure: the caller supplies "now".
package eligibility

import (
	"fmt"
	"time"
)

// Rules are the thresholds applied by Evaluate
type Rules struct {
	CooldownMonths int
	MinAge         int
	MaxAge         int
	MinWeightKg    float64
}

// DefaultRules returns the thresholds used when nothing is configured
func DefaultRules() Rules {
	return Rules{
		CooldownMonths: 3,
		MinAge:         18,
		MaxAge:         65,
		MinWeightKg:    50,
	}
}

// Input describes the donor. Nil fields are not checked.
type Input struct {
	LastDonationDate *time.Time
	AgeYears         *int
	WeightKg         *float64
}

// Result is the outcome of an evaluation
type Result struct {
	Eligible         bool       `json:"eligible"`
	Reasons          []string   `json:"reasons"`
	NextEligibleDate *time.Time `json:"next_eligible_date,omitempty"`
}

// Evaluator applies a fixed set of rules
type Evaluator struct {
	rules Rules
}

func NewEvaluator(rules Rules) *Evaluator {
	return &Evaluator{rules: rules}
}

func (e *Evaluator) Rules() Rules {
	return e.rules
}

// Evaluate checks every rule and collects the ones that fail
func (e *Evaluator) Evaluate(in Input, now time.Time) Result {
	reasons := []string{}
	var next *time.Time

	if in.LastDonationDate != nil {
		last := *in.LastDonationDate
		if MonthsBetween(last, now) < e.rules.CooldownMonths {
			eligibleOn := AddCalendarMonths(last, e.rules.CooldownMonths)
			next = &eligibleOn
			reasons = append(reasons, fmt.Sprintf(
				"last donation on %s is within the %d-month cooldown; eligible again on %s",
				last.Format(time.DateOnly), e.rules.CooldownMonths, eligibleOn.Format(time.DateOnly),
			))
		}
	}

	if in.AgeYears != nil {
		age := *in.AgeYears
		if age < e.rules.MinAge || age > e.rules.MaxAge {
			reasons = append(reasons, fmt.Sprintf("age %d is outside the allowed range %d-%d", age, e.rules.MinAge, e.rules.MaxAge))
		}
	}

	if in.WeightKg != nil && *in.WeightKg < e.rules.MinWeightKg {
		reasons = append(reasons, fmt.Sprintf("weight %.1f kg is below the minimum of %.0f kg", *in.WeightKg, e.rules.MinWeightKg))
	}

	return Result{
		Eligible:         len(reasons) == 0,
		Reasons:          reasons,
		NextEligibleDate: next,
	}
}

// MonthsBetween counts whole calendar months elapsed from "from" to "to".
// A month is complete once the day of month reaches from's day again.
func MonthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()-from.Month())
	if to.Day() < from.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

// AddCalendarMonths returns the first date on which MonthsBetween(from, date) >= n.
// When from's day does not exist in the target month, that is the 1st of the following month.
func AddCalendarMonths(from time.Time, n int) time.Time {
	firstOfTarget := time.Date(from.Year(), from.Month()+time.Month(n), 1, 0, 0, 0, 0, from.Location())
	daysInTarget := firstOfTarget.AddDate(0, 1, -1).Day()
	if from.Day() <= daysInTarget {
		return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), from.Day(), 0, 0, 0, 0, from.Location())
	}
	return firstOfTarget.AddDate(0, 1, 0)
}
