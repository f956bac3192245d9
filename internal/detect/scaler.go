package detect

import (
	"encoding/json"
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Scaler standardizes feature vectors to zero mean and unit variance. Its
// state is plain JSON so fitted parameters survive process restarts.
type Scaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// Fitted reports whether Fit has run (or state was loaded).
func (s *Scaler) Fitted() bool {
	return len(s.Mean) > 0
}

// Fit computes per-column mean and standard deviation over the sample rows.
// Columns with zero spread get a unit deviation so Transform stays defined.
func (s *Scaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return errors.New("detect: no rows to fit scaler on")
	}
	cols := len(rows[0])
	s.Mean = make([]float64, cols)
	s.Std = make([]float64, cols)

	col := make([]float64, len(rows))
	for c := 0; c < cols; c++ {
		for r, row := range rows {
			col[r] = row[c]
		}
		s.Mean[c] = stat.Mean(col, nil)
		sd := math.Sqrt(popVariance(col))
		if sd == 0 {
			sd = 1
		}
		s.Std[c] = sd
	}
	return nil
}

// Transform standardizes one vector using the fitted parameters.
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if i < len(s.Mean) {
			out[i] = (v - s.Mean[i]) / s.Std[i]
		} else {
			out[i] = v
		}
	}
	return out
}

// TransformAll standardizes a batch of vectors.
func (s *Scaler) TransformAll(rows [][]float64) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = s.Transform(row)
	}
	return out
}

// Save serializes the fitted state.
func (s *Scaler) Save() ([]byte, error) {
	return json.Marshal(s)
}

// Load restores fitted state produced by Save.
func (s *Scaler) Load(data []byte) error {
	return json.Unmarshal(data, s)
}
