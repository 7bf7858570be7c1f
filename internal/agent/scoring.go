package agent

import "ai-orchestrator-be/pkg/store"

// ScoringStrategy is the replaceable policy behind router selection. The
// arithmetic is intentionally swappable; only the contract is load-bearing.
type ScoringStrategy interface {
	// Score ranks an agent for a task. Higher wins; ties break by registry order.
	Score(task store.Task, d Descriptor) int
	// Confidence maps a selection to 0-100.
	Confidence(task store.Task, d Descriptor) int
}

// WeightedScoring is the default strategy.
type WeightedScoring struct{}

var baseScoreByType = map[string]int{
	"executor":  80,
	"generator": 75,
	"analyzer":  70,
	"validator": 60,
}

func (WeightedScoring) Score(task store.Task, d Descriptor) int {
	score, ok := baseScoreByType[d.Type]
	if !ok {
		score = 50
	}

	for _, tt := range d.SupportedTaskTypes {
		if tt == task.Type {
			score += 20
			break
		}
	}

	for _, required := range task.RequiredTools {
		for _, have := range d.Tools {
			if required == have {
				score += 5
				break
			}
		}
	}

	if d.SuccessRate > 0.9 {
		score += 10
	}
	if d.Load > 80 {
		score -= 30
	}

	return score
}

func (WeightedScoring) Confidence(task store.Task, d Descriptor) int {
	confidence := 70

	if task.RequiredAgent != "" && d.Type == task.RequiredAgent {
		confidence += 20
	}

	if len(task.RequiredTools) > 0 {
		covered := 0
		for _, required := range task.RequiredTools {
			for _, have := range d.Tools {
				if required == have {
					covered++
					break
				}
			}
		}
		confidence += covered * 10 / len(task.RequiredTools)
	}

	confidence += int(d.SuccessRate * 20)

	if confidence > 100 {
		confidence = 100
	}
	return confidence
}
