package throttle

import (
	"errors"
	"testing"
	"time"
)

func TestNew_Validation(t *testing.T) {
	testCases := []struct {
		name   string
		rps    int
		burst  int
		expErr error
	}{
		{name: "Invalid RPS (zero)", rps: 0, burst: 10, expErr: ErrMustNotBeZero},
		{name: "Invalid RPS (negative)", rps: -5, burst: 10, expErr: ErrMustNotBeZero},
		{name: "Invalid Burst (zero)", rps: 10, burst: 0, expErr: ErrMustNotBeZero},
		{name: "Invalid Burst (negative)", rps: 10, burst: -5, expErr: ErrMustNotBeZero},
		{name: "Valid input", rps: 10, burst: 20},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			g, err := New(tc.rps, tc.burst, nil)

			if tc.expErr != nil {
				if !errors.Is(err, tc.expErr) {
					t.Errorf("exp err %v; got: %v", tc.expErr, err)
				}
				return
			}
			if err != nil {
				t.Errorf("exp nil err, got: %v", err)
			}
			if g == nil {
				t.Error("exp non-nil Gate")
			}
		})
	}
}

func TestGate_BurstThenExhausted(t *testing.T) {
	g, err := New(1, 3, nil)
	if err != nil {
		t.Fatal(err)
	}

	for i := range 3 {
		if !g.Allow() {
			t.Fatalf("exp token %d within burst", i)
		}
	}

	if g.Allow() {
		t.Error("exp gate to be exhausted after burst")
	}

	if d := g.Delay(); d <= 0 || d > time.Second {
		t.Errorf("exp delay in (0, 1s], got %v", d)
	}
}

func TestGate_Refills(t *testing.T) {
	g, err := New(100, 1, nil)
	if err != nil {
		t.Fatal(err)
	}

	if !g.Allow() {
		t.Fatal("exp first token")
	}
	if g.Allow() {
		t.Fatal("exp exhaustion")
	}

	time.Sleep(30 * time.Millisecond)

	if g.Delay() != 0 {
		t.Errorf("exp zero delay after refill, got %v", g.Delay())
	}
	if !g.Allow() {
		t.Error("exp token after refill")
	}
}
