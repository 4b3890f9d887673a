package agent

import "testing"

func TestNewVisionStateWhitelistedModel(t *testing.T) {
	v := newVisionState(true, "gpt-4o-mini")
	if !v.available {
		t.Fatal("expected vision available for whitelisted model")
	}
	if v.active {
		t.Fatal("vision should not be active before any failures")
	}
}

func TestNewVisionStateUnsupportedModel(t *testing.T) {
	v := newVisionState(true, "some-other-model")
	if v.available {
		t.Fatal("expected vision unavailable for a non-whitelisted model")
	}
}

func TestVisionActivatesAfterThreeConsecutiveFailures(t *testing.T) {
	v := newVisionState(true, "gpt-4o")
	if v.recordFailure() {
		t.Fatal("should not activate on 1st failure")
	}
	if v.recordFailure() {
		t.Fatal("should not activate on 2nd failure")
	}
	if !v.recordFailure() {
		t.Fatal("should activate on 3rd consecutive failure")
	}
	if !v.active {
		t.Fatal("expected active=true after activation")
	}
}

func TestVisionSuccessResetsFailureCounter(t *testing.T) {
	v := newVisionState(true, "gpt-4o")
	v.recordFailure()
	v.recordFailure()
	v.recordSuccess()
	if v.recordFailure() {
		t.Fatal("counter should have reset; this is only the 1st failure since reset")
	}
}

func TestVisionNeverActivatesWhenUnavailable(t *testing.T) {
	v := newVisionState(false, "gpt-4o")
	for i := 0; i < 10; i++ {
		v.recordFailure()
	}
	if v.active {
		t.Fatal("vision must never activate when unavailable, regardless of failures")
	}
}
