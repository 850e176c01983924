// Package panel parses blood-panel requests and shapes analysis responses.
package panel

import "fmt"

const (
	WBC   = "WBC"
	RBC   = "RBC"
	HGB   = "HGB"
	PLT   = "PLT"
	NEUT  = "NEUT"
	LYMPH = "LYMPH"
	MONO  = "MONO"
	EO    = "EO"
	BASO  = "BASO"
)

const NumFields = 9

// fields is the column order the classifier is trained on.
var fields = [NumFields]string{WBC, RBC, HGB, PLT, NEUT, LYMPH, MONO, EO, BASO}

func Fields() []string {
	out := make([]string, NumFields)
	copy(out, fields[:])
	return out
}

// Measurements is one blood panel. Field order matches the JSON echo in
// responses.
type Measurements struct {
	WBC   float64 `json:"WBC"`
	RBC   float64 `json:"RBC"`
	HGB   float64 `json:"HGB"`
	PLT   float64 `json:"PLT"`
	NEUT  float64 `json:"NEUT"`
	LYMPH float64 `json:"LYMPH"`
	MONO  float64 `json:"MONO"`
	EO    float64 `json:"EO"`
	BASO  float64 `json:"BASO"`
}

func (m Measurements) Vector() []float64 {
	return []float64{m.WBC, m.RBC, m.HGB, m.PLT, m.NEUT, m.LYMPH, m.MONO, m.EO, m.BASO}
}

func FromVector(v []float64) (Measurements, error) {
	if len(v) != NumFields {
		return Measurements{}, fmt.Errorf("expected %d measurements, got %d", NumFields, len(v))
	}
	return Measurements{
		WBC: v[0], RBC: v[1], HGB: v[2], PLT: v[3], NEUT: v[4],
		LYMPH: v[5], MONO: v[6], EO: v[7], BASO: v[8],
	}, nil
}

type Result struct {
	Success     bool         `json:"success"`
	Disease     string       `json:"disease"`
	Cause       string       `json:"cause"`
	ResultCode  int          `json:"result_code"`
	InputValues Measurements `json:"input_values"`
}

func NewResult(input Measurements, label int, disease, cause string) Result {
	return Result{
		Success:     true,
		Disease:     disease,
		Cause:       cause,
		ResultCode:  label,
		InputValues: input,
	}
}
