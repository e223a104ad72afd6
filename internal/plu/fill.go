package plu

// Fill writes codes into PLU slots, capped at maxSlots (no cap when maxSlots
// <= 0). Filled slots are flagged as auto-extracted. Existing slots are
// replaced so repeated runs over the same text give the same result. With no
// codes the inputs are returned unchanged.
func Fill(slots []string, flags []bool, codes []string, maxSlots int) ([]string, []bool) {
	if len(codes) == 0 {
		return slots, flags
	}
	n := len(codes)
	if maxSlots > 0 {
		n = min(n, maxSlots)
	}
	outSlots := make([]string, n)
	copy(outSlots, codes[:n])
	outFlags := make([]bool, n)
	for i := range outFlags {
		outFlags[i] = true
	}
	return outSlots, outFlags
}
