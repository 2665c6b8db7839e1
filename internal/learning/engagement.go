package learning

import "github.com/johnrirwin/newsradar/internal/models"

const (
	shortViewSeconds = 10
	longViewSeconds  = 30
)

// Engagement converts one interaction into a signal in [-1, 1]
func Engagement(in models.Interaction) float64 {
	score := 0.0

	if in.ViewDurationSeconds != nil {
		switch d := *in.ViewDurationSeconds; {
		case d >= longViewSeconds:
			score += 1.0
		case d >= shortViewSeconds:
			score += 0.5
		default:
			score += 0.1
		}
	}

	if in.ClickedReadMore {
		score += 0.3
	}

	switch in.Type {
	case models.InteractionLike:
		score += 0.5
	case models.InteractionSave:
		score += 0.4
	case models.InteractionDislike:
		score -= 1.0
	}

	return clamp(score, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
