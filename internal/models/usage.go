package models

// Usage is a running counter of the resources a plan has consumed.
// All components are non-negative and only ever grow; merging is additive.
type Usage struct {
	TokensUsed       int64 `json:"tokens_used"`
	APICalls         int64 `json:"api_calls"`
	ConnectorActions int64 `json:"connector_actions"`
	RuntimeMinutes   int64 `json:"runtime_minutes"`
}

// Add merges another usage delta into this one. Negative components in the
// delta are treated as zero so counters never decrease.
func (u *Usage) Add(delta Usage) {
	u.TokensUsed += maxInt64(delta.TokensUsed, 0)
	u.APICalls += maxInt64(delta.APICalls, 0)
	u.ConnectorActions += maxInt64(delta.ConnectorActions, 0)
	u.RuntimeMinutes += maxInt64(delta.RuntimeMinutes, 0)
}

// Plus returns the sum of this usage and a delta without mutating either.
func (u Usage) Plus(delta Usage) Usage {
	sum := u
	sum.Add(delta)
	return sum
}

// IsZero returns true if no resources have been recorded.
func (u Usage) IsZero() bool {
	return u.TokensUsed == 0 && u.APICalls == 0 && u.ConnectorActions == 0 && u.RuntimeMinutes == 0
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
