package detect

import "gonum.org/v1/gonum/mat"

// savitzkyGolay smooths a signal with a local polynomial fit: each output
// value is the degree-d polynomial fitted over a window around the sample,
// evaluated at the sample position. Windows are shifted inward at the edges
// so every fit uses a full window.
func savitzkyGolay(values []float64, window, degree int) []float64 {
	n := len(values)
	if window > n {
		window = n
	}
	if window%2 == 0 {
		window--
	}
	if window < degree+1 {
		out := make([]float64, n)
		copy(out, values)
		return out
	}

	half := window / 2
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := lo + window
		if hi > n {
			hi = n
			lo = hi - window
		}
		coeffs, ok := polyfit(values[lo:hi], degree)
		if !ok {
			out[i] = values[i]
			continue
		}
		out[i] = polyval(coeffs, float64(i-lo))
	}
	return out
}

// polyfit fits a polynomial of the given degree to ys sampled at x=0..n-1,
// returning the coefficients lowest order first.
func polyfit(ys []float64, degree int) ([]float64, bool) {
	n := len(ys)
	a := mat.NewDense(n, degree+1, nil)
	for r := 0; r < n; r++ {
		v := 1.0
		for c := 0; c <= degree; c++ {
			a.Set(r, c, v)
			v *= float64(r)
		}
	}
	b := mat.NewVecDense(n, ys)

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return nil, false
	}
	coeffs := make([]float64, degree+1)
	for i := range coeffs {
		coeffs[i] = sol.AtVec(i)
	}
	return coeffs, true
}

func polyval(coeffs []float64, x float64) float64 {
	result := 0.0
	for i := len(coeffs) - 1; i >= 0; i-- {
		result = result*x + coeffs[i]
	}
	return result
}
