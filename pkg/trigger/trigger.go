// Package trigger holds the pure activation predicate shared by the
// client-side monitor and the keeper. It has no time awareness: price
// staleness is enforced by the caller before a price is passed in.
package trigger

// Condition is the stored trigger comparison. Zero means unset.
type Condition uint8

const (
	Above Condition = 1
	Below Condition = 2
)

func (c Condition) String() string {
	switch c {
	case Above:
		return "above"
	case Below:
		return "below"
	default:
		return "unset"
	}
}

func (c Condition) Valid() bool { return c == Above || c == Below }

// ShouldTrigger reports whether currentPrice satisfies the trigger level.
// Below: currentPrice <= triggerPrice. Above: currentPrice >= triggerPrice.
// This is a level check, not an edge check: a persistently breached level
// keeps triggering until consumed.
func ShouldTrigger(currentPrice, triggerPrice uint64, cond Condition) bool {
	switch cond {
	case Below:
		return currentPrice <= triggerPrice
	case Above:
		return currentPrice >= triggerPrice
	default:
		return false
	}
}

// ShouldTriggerWithPrev is ShouldTrigger for callers that track the previous
// observed price. The previous price never suppresses a trigger: a level
// already breached at the prior tick still triggers now.
func ShouldTriggerWithPrev(currentPrice, triggerPrice uint64, cond Condition, previousPrice uint64) bool {
	return ShouldTrigger(currentPrice, triggerPrice, cond)
}
