package embedding

// meanPool averages the token states whose attention mask is set. states is
// laid out row-major as [len(mask)][dims].
func meanPool(states []float32, mask []int64, dims int) []float32 {
	out := make([]float32, dims)
	sums := make([]float64, dims)
	var n float64
	for tok, m := range mask {
		if m == 0 {
			continue
		}
		row := states[tok*dims : (tok+1)*dims]
		for i, v := range row {
			sums[i] += float64(v)
		}
		n++
	}
	if n == 0 {
		return out
	}
	for i, s := range sums {
		out[i] = float32(s / n)
	}
	return out
}
