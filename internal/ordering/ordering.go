// Package ordering assigns reading order to accepted regions on a page.
//
// Every function here is pure: it takes a Configs value and returns a new
// one, leaving the input untouched.
package ordering

import "sort"

// RegionConfig is the operator state for one detected region.
type RegionConfig struct {
	Include         bool     `json:"include"`
	PaddingOverride *float64 `json:"paddingOverride,omitempty"`
	OrderIndex      *int     `json:"orderIndex,omitempty"`
	RectID          string   `json:"rectId,omitempty"`
}

// Configs maps region index to its config.
type Configs map[int]RegionConfig

// NewConfigs creates n included, unordered configs. newID, when non-nil,
// supplies a stable rect id per region.
func NewConfigs(n int, newID func() string) Configs {
	c := make(Configs, n)
	for i := range n {
		rc := RegionConfig{Include: true}
		if newID != nil {
			rc.RectID = newID()
		}
		c[i] = rc
	}
	return c
}

// Clone returns a deep copy.
func (c Configs) Clone() Configs {
	out := make(Configs, len(c))
	for k, v := range c {
		if v.PaddingOverride != nil {
			p := *v.PaddingOverride
			v.PaddingOverride = &p
		}
		if v.OrderIndex != nil {
			o := *v.OrderIndex
			v.OrderIndex = &o
		}
		out[k] = v
	}
	return out
}

// Indices returns the region indices in ascending order.
func (c Configs) Indices() []int {
	keys := make([]int, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

// HasManualOrder reports whether any included region carries an order index.
func (c Configs) HasManualOrder() bool {
	for _, rc := range c {
		if rc.Include && rc.OrderIndex != nil {
			return true
		}
	}
	return false
}

// ToggleInclude flips the include flag of region idx.
func ToggleInclude(c Configs, idx int) Configs {
	out := c.Clone()
	rc, ok := out[idx]
	if !ok {
		return out
	}
	rc.Include = !rc.Include
	out[idx] = rc
	return out
}

// AdjustPadding changes the padding override of region idx by delta, starting
// from base when the region has no override yet. The result never goes below zero.
func AdjustPadding(c Configs, idx int, delta, base float64) Configs {
	out := c.Clone()
	rc, ok := out[idx]
	if !ok {
		return out
	}
	cur := base
	if rc.PaddingOverride != nil {
		cur = *rc.PaddingOverride
	}
	next := max(0, cur+delta)
	rc.PaddingOverride = &next
	out[idx] = rc
	return out
}

// ClearPadding removes the padding override of region idx.
func ClearPadding(c Configs, idx int) Configs {
	out := c.Clone()
	if rc, ok := out[idx]; ok {
		rc.PaddingOverride = nil
		out[idx] = rc
	}
	return out
}

// AssignNext gives region idx the order index counter and returns the
// advanced counter. Excluded, unknown and already assigned regions are
// skipped; ok reports whether an assignment happened.
func AssignNext(c Configs, idx, counter int) (Configs, int, bool) {
	out := c.Clone()
	rc, exists := out[idx]
	if !exists || !rc.Include || rc.OrderIndex != nil {
		return out, counter, false
	}
	counter = max(counter, 1)
	n := counter
	rc.OrderIndex = &n
	out[idx] = rc
	return out, counter + 1, true
}

// UndoLast clears the highest assigned order index and decrements the counter.
func UndoLast(c Configs, counter int) (Configs, int) {
	out := c.Clone()
	best, bestIdx := 0, -1
	for _, k := range out.Indices() {
		if oi := out[k].OrderIndex; oi != nil && *oi > best {
			best, bestIdx = *oi, k
		}
	}
	if bestIdx < 0 {
		return out, 1
	}
	rc := out[bestIdx]
	rc.OrderIndex = nil
	out[bestIdx] = rc
	return out, max(1, counter-1)
}

// ResetOrder clears every order index and resets the counter to 1.
func ResetOrder(c Configs) (Configs, int) {
	out := c.Clone()
	for k, rc := range out {
		rc.OrderIndex = nil
		out[k] = rc
	}
	return out, 1
}
