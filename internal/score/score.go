// Package score turns issue counts into a 0-100 accessibility score.
package score

import (
	"math"

	"github.com/wcag-monitor/internal/model"
)

// Penalty weights per issue type.
const (
	ErrorWeight   = 10.0
	WarningWeight = 3.0
	NoticeWeight  = 0.5
	maxScore      = 100
)

// Calculate returns max(0, round(100 - (10*error + 3*warning + 0.5*notice))).
// A nil count scores 100.
func Calculate(count *model.ResultCount) int {
	if count == nil {
		return maxScore
	}
	penalty := ErrorWeight*float64(count.Error) +
		WarningWeight*float64(count.Warning) +
		NoticeWeight*float64(count.Notice)
	s := int(math.Round(maxScore - penalty))
	if s < 0 {
		return 0
	}
	return s
}
