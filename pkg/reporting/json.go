package reporting

import (
	"encoding/json"

	"github.com/quantlab/stocklab/internal/optimizer"
	"github.com/quantlab/stocklab/pkg/params"
)

// bestParams is the shape of the best-candidate export consumed by the
// downstream research notebooks.
type bestParams struct {
	Params          params.Set `json:"params"`
	Score           float64    `json:"score"`
	ValidationScore *float64   `json:"validation_score,omitempty"`
	Status          string     `json:"status"`
	EvaluatedTotal  int        `json:"evaluated_total"`
	DurationMillis  int64      `json:"duration_ms"`
}

// WriteBestParamsJSON exports the winning candidate.
func WriteBestParamsJSON(best *optimizer.Result, evaluated int, path string) error {
	payload := bestParams{
		Params:         best.Params,
		Score:          best.Score,
		Status:         string(best.Status),
		EvaluatedTotal: evaluated,
		DurationMillis: best.Duration.Milliseconds(),
	}
	if best.ValidationDefined {
		v := best.ValidationScore
		payload.ValidationScore = &v
	}

	f, err := createFile(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
