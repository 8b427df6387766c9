package challenge

import "testing"

func TestPickerForRotation(t *testing.T) {
	cfg := RotationConfig{StartYear: 2026, StartMonth: 1, Order: []string{"nick", "wood", "andy"}}

	cases := []struct {
		year, month int
		want        string
	}{
		{2026, 1, "nick"},
		{2026, 2, "wood"},
		{2026, 3, "andy"},
		{2026, 4, "nick"},
		{2027, 1, "nick"},
		{2025, 12, "andy"}, // one month before start wraps backwards
		{2020, 1, "nick"},  // far in the past, still total
	}
	for _, tc := range cases {
		if got := PickerFor(tc.year, tc.month, cfg); got != tc.want {
			t.Fatalf("PickerFor(%d, %d) = %q, want %q", tc.year, tc.month, got, tc.want)
		}
	}
}

func TestPickerForPeriodicity(t *testing.T) {
	cfg := RotationConfig{StartYear: 2024, StartMonth: 7, Order: []string{"a", "b", "c", "d"}}
	for year := 1990; year <= 2060; year += 7 {
		for month := -3; month <= 15; month++ {
			got := PickerFor(year, month, cfg)
			if got == "" {
				t.Fatalf("PickerFor(%d, %d) returned empty", year, month)
			}
			if next := PickerFor(year+1, month, cfg); next != got {
				// 12 months later with a 4-member rotation lands on the same member.
				t.Fatalf("PickerFor(%d, %d) = %q but one year later = %q", year, month, got, next)
			}
		}
	}
}

func TestPickerForEmptyOrder(t *testing.T) {
	if got := PickerFor(2026, 1, RotationConfig{StartYear: 2026, StartMonth: 1}); got != "" {
		t.Fatalf("empty rotation should yield empty picker, got %q", got)
	}
}
