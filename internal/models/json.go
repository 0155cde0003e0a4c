package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// UnmarshalJSON accepts either a 1-D array of numbers (promoted to a single
// row) or a 2-D array of arrays, matching spec.md's Predict contract.
func (r *RawFeatures) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	var twoD [][]float64
	if err := json.Unmarshal(data, &twoD); err == nil {
		r.Matrix = twoD
		r.WasRow = false
		return nil
	}

	var oneD []float64
	if err := json.Unmarshal(data, &oneD); err == nil {
		r.Matrix = [][]float64{oneD}
		r.WasRow = true
		return nil
	}

	return fmt.Errorf("features must be a 1-D or 2-D array of numbers")
}

// MarshalJSON re-emits the stored matrix as a 2-D array.
func (r RawFeatures) MarshalJSON() ([]byte, error) {
	if r.Matrix == nil {
		return []byte("null"), nil
	}
	return json.Marshal(r.Matrix)
}
