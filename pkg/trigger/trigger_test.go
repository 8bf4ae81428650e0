package trigger

import "testing"

func TestShouldTriggerBelow(t *testing.T) {
	const trig = 180_000_000 // $180 at 1e6 precision

	tests := []struct {
		name  string
		price uint64
		want  bool
	}{
		{"price below trigger", 179_000_000, true},
		{"price equal trigger", 180_000_000, true},
		{"price above trigger", 181_000_000, false},
		{"price far below", 1, true},
		{"price zero", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldTrigger(tt.price, trig, Below)
			if got != tt.want {
				t.Errorf("ShouldTrigger(%d, %d, Below) = %v, want %v", tt.price, trig, got, tt.want)
			}
		})
	}
}

func TestShouldTriggerAbove(t *testing.T) {
	const trig = 180_000_000

	tests := []struct {
		name  string
		price uint64
		want  bool
	}{
		{"price above trigger", 181_000_000, true},
		{"price equal trigger", 180_000_000, true},
		{"price below trigger", 179_000_000, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ShouldTrigger(tt.price, trig, Above)
			if got != tt.want {
				t.Errorf("ShouldTrigger(%d, %d, Above) = %v, want %v", tt.price, trig, got, tt.want)
			}
		})
	}
}

// Monotonicity: Below is true for every p <= t and false for every p > t,
// symmetric for Above, swept across a band around the trigger.
func TestTriggerMonotonicity(t *testing.T) {
	const trig = uint64(1000)

	for p := uint64(900); p <= 1100; p++ {
		below := ShouldTrigger(p, trig, Below)
		if below != (p <= trig) {
			t.Fatalf("Below: p=%d got %v", p, below)
		}
		above := ShouldTrigger(p, trig, Above)
		if above != (p >= trig) {
			t.Fatalf("Above: p=%d got %v", p, above)
		}
	}
}

func TestShouldTriggerUnsetCondition(t *testing.T) {
	if ShouldTrigger(100, 100, Condition(0)) {
		t.Error("unset condition triggered")
	}
	if ShouldTrigger(100, 100, Condition(9)) {
		t.Error("unknown condition triggered")
	}
}

// A level already breached at the previous tick is still a trigger: the
// predicate is a level check, not an edge check.
func TestShouldTriggerWithPrevLevelCheck(t *testing.T) {
	const trig = uint64(500)

	if !ShouldTriggerWithPrev(490, trig, Below, 480) {
		t.Error("persistently breached level stopped triggering")
	}
	if !ShouldTriggerWithPrev(490, trig, Below, 510) {
		t.Error("fresh crossing did not trigger")
	}
	if ShouldTriggerWithPrev(510, trig, Below, 490) {
		t.Error("recovered price still triggering")
	}
}
