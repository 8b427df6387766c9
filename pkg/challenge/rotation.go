package challenge

// RotationConfig fixes the monthly picker rotation: the ordered roster
// and the month the cycle starts counting from. Passed explicitly so
// PickerFor stays pure.
type RotationConfig struct {
	StartYear  int      `json:"startYear"`
	StartMonth int      `json:"startMonth"`
	Order      []string `json:"order"`
}

// PickerFor returns the member whose turn it is to pick the book of the
// month. Exact integer arithmetic, total over all (year, month) inputs
// including months before the rotation start. Empty rotation yields "".
func PickerFor(year, month int, cfg RotationConfig) string {
	n := len(cfg.Order)
	if n == 0 {
		return ""
	}
	monthsSinceStart := (year*12 + month - 1) - (cfg.StartYear*12 + cfg.StartMonth - 1)
	idx := ((monthsSinceStart % n) + n) % n
	return cfg.Order[idx]
}
