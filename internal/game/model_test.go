package game

import (
	"strings"
	"testing"
)

func TestValidateSymbol(t *testing.T) {
	valid := []string{"AAPL", "BTC", "GOOGL", "A"}
	for _, s := range valid {
		if err := ValidateSymbol(s); err != nil {
			t.Fatalf("expected symbol %q to be valid: %v", s, err)
		}
	}

	invalid := []string{"", "aapl", "TOOLONG7", "AB1", "A-B"}
	for _, s := range invalid {
		if err := ValidateSymbol(s); err == nil {
			t.Fatalf("expected symbol %q to fail", s)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "  Alice   Smith ", want: "Alice Smith"},
		{in: "Bob", want: "Bob"},
		{in: "\tline\nbreaks\t", want: "line breaks"},
		{in: strings.Repeat("x", 50), want: strings.Repeat("x", MaxNameLen)},
	}
	for _, tc := range tests {
		if got := SanitizeName(tc.in); got != tc.want {
			t.Fatalf("sanitize %q: got %q want %q", tc.in, got, tc.want)
		}
	}

	if err := ValidateName("   "); err == nil {
		t.Fatalf("expected blank name to fail")
	}
	if err := ValidateName("Toast"); err != nil {
		t.Fatalf("expected valid name: %v", err)
	}
}

func TestNotionalMicros(t *testing.T) {
	got, err := notionalMicros(25, 150*MicrosPerToast)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := int64(3_750 * MicrosPerToast); got != want {
		t.Fatalf("got %d want %d", got, want)
	}

	if _, err := notionalMicros(1<<40, 1<<40); err == nil {
		t.Fatalf("expected overflow to fail")
	}
}

func TestMaxAffordableShares(t *testing.T) {
	tests := []struct {
		budget int64
		price  int64
		want   int64
	}{
		{budget: 10_000 * MicrosPerToast, price: 150 * MicrosPerToast, want: 66},
		{budget: 149 * MicrosPerToast, price: 150 * MicrosPerToast, want: 0},
		{budget: 0, price: 150 * MicrosPerToast, want: 0},
		{budget: 1 << 62, price: 1, want: MaxOrderShares},
	}
	for _, tc := range tests {
		if got := MaxAffordableShares(tc.budget, tc.price); got != tc.want {
			t.Fatalf("budget=%d price=%d got=%d want=%d", tc.budget, tc.price, got, tc.want)
		}
	}
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: ErrInvalidInput, want: KindValidation},
		{err: ErrSelfVote, want: KindValidation},
		{err: ErrBadPasscode, want: KindValidation},
		{err: ErrWrongPhase, want: KindState},
		{err: ErrFrozen, want: KindState},
		{err: ErrCardRoleLocked, want: KindState},
		{err: ErrInsufficientFunds, want: KindResource},
		{err: ErrInsufficientShares, want: KindResource},
		{err: ErrCardNotFound, want: KindResource},
		{err: ErrGameNotFound, want: KindNotFound},
		{err: ErrTargetNotFound, want: KindNotFound},
	}
	for _, tc := range tests {
		if got := Kind(tc.err); got != tc.want {
			t.Fatalf("kind(%v) got %q want %q", tc.err, got, tc.want)
		}
	}
}

func TestNewGameID(t *testing.T) {
	seen := make(map[string]bool)
	for range 50 {
		id := NewGameID()
		if len(id) != 6 {
			t.Fatalf("id %q is not 6 characters", id)
		}
		for _, c := range id {
			if !strings.ContainsRune(gameIDCharset, c) {
				t.Fatalf("id %q contains %q outside the charset", id, c)
			}
		}
		seen[id] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected ids to vary")
	}
}

func TestNormalizeGameID(t *testing.T) {
	if got := NormalizeGameID(" ab3xyz "); got != "AB3XYZ" {
		t.Fatalf("got %q", got)
	}
}

func TestClampScore(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: -5, want: 0},
		{in: 0, want: 0},
		{in: 55, want: 55},
		{in: 130, want: 100},
	}
	for _, tc := range tests {
		if got := clampScore(tc.in); got != tc.want {
			t.Fatalf("clamp(%d) got %d want %d", tc.in, got, tc.want)
		}
	}
}

func TestMicrosConversion(t *testing.T) {
	if got := ToastToMicros(1.5); got != 1_500_000 {
		t.Fatalf("got %d", got)
	}
	if got := MicrosToToast(2_500_000); got != 2.5 {
		t.Fatalf("got %v", got)
	}
}
