package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// Scores is a vector of tolerance scores, one per variable. NaN and infinite
// scores are encoded as the JSON strings "NaN", "Infinity" and "-Infinity".
type Scores []float64

func (s Scores) MarshalJSON() ([]byte, error) {
	if s == nil {
		return []byte("null"), nil
	}
	raw := make([]json.RawMessage, len(s))
	for i, v := range s {
		switch {
		case math.IsNaN(v):
			raw[i] = json.RawMessage(`"NaN"`)
		case math.IsInf(v, 1):
			raw[i] = json.RawMessage(`"Infinity"`)
		case math.IsInf(v, -1):
			raw[i] = json.RawMessage(`"-Infinity"`)
		default:
			raw[i] = json.RawMessage(strconv.FormatFloat(v, 'g', -1, 64))
		}
	}
	return json.Marshal(raw)
}

func (s *Scores) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*s = nil
		return nil
	}
	out := make(Scores, len(raw))
	for i, r := range raw {
		var str string
		if err := json.Unmarshal(r, &str); err == nil {
			switch str {
			case "NaN":
				out[i] = math.NaN()
			case "Infinity":
				out[i] = math.Inf(1)
			case "-Infinity":
				out[i] = math.Inf(-1)
			default:
				v, err := strconv.ParseFloat(str, 64)
				if err != nil {
					return err
				}
				out[i] = v
			}
			continue
		}
		if err := json.Unmarshal(r, &out[i]); err != nil {
			return err
		}
	}
	*s = out
	return nil
}

// ComparisonCell is the comparison of the runs of two simulators for one
// dataset. Either Scores and Close are set, or Error is.
type ComparisonCell struct {
	SimulatorA string   `json:"SimulatorA"`
	SimulatorB string   `json:"SimulatorB"`
	Variables  []string `json:"Variables,omitempty"`
	Scores     Scores   `json:"Scores"`
	Close      []bool   `json:"Close"`
	Error      string   `json:"Error,omitempty"`
}

// AllClose returns true if the cell is well formed and every variable is close.
func (c ComparisonCell) AllClose() bool {
	if c.Error != "" || c.Close == nil {
		return false
	}
	for _, v := range c.Close {
		if !v {
			return false
		}
	}
	return true
}

// DatasetComparison is the N x N comparison matrix of one dataset. Cells[i][j]
// compares Simulators[i] (A) against Simulators[j] (B).
type DatasetComparison struct {
	Dataset    string             `json:"Dataset"`
	Simulators []string           `json:"Simulators"`
	Cells      [][]ComparisonCell `json:"Cells"`
}

// SkippedRun is a run left out of the comparison matrix.
type SkippedRun struct {
	Simulator string    `json:"Simulator"`
	RunID     string    `json:"RunID,omitempty"`
	Status    RunStatus `json:"Status"`
	Reason    string    `json:"Reason"`
}

// RunOutputs are the raw datasets of one run.
type RunOutputs struct {
	Simulator string    `json:"Simulator"`
	RunID     string    `json:"RunID"`
	Datasets  []Dataset `json:"Datasets"`
}

// ComparisonResults is the outcome of a completed verification job.
type ComparisonResults struct {
	Datasets []DatasetComparison `json:"Datasets"`
	Skipped  []SkippedRun        `json:"Skipped,omitempty"`
	Outputs  []RunOutputs        `json:"Outputs,omitempty"`
}

// Dataset returns the comparison of the named dataset.
func (r *ComparisonResults) Dataset(name string) (DatasetComparison, bool) {
	if r == nil {
		return DatasetComparison{}, false
	}
	for _, d := range r.Datasets {
		if d.Dataset == name {
			return d, true
		}
	}
	return DatasetComparison{}, false
}
