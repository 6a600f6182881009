package scoring

// AggregateProject computes the project profile and preliminary score
// per spec.md §4.6.4: a file-token-weighted mean, using
// total_original_tokens as weight, over each file's already
// group-token-weighted per-axis averages. Profile.Quality is the raw
// code_quality axis alone, not ScoredFile.AverageQuality (which already
// blends maintainability and best_practices in) — those two axes are
// weighted independently below, so reusing AverageQuality here would
// double-count them.
func AggregateProject(files []ScoredFile) (Profile, float64) {
	var weightSum float64
	var complexitySum, qualitySum, maintainabilitySum, bestPracticesSum float64

	for _, f := range files {
		w := float64(f.TotalOriginalTokens)
		weightSum += w
		complexitySum += f.AverageComplexity * w
		qualitySum += f.AverageCodeQuality * w
		maintainabilitySum += f.AverageMaintainability * w
		bestPracticesSum += f.AverageBestPractices * w
	}

	var profile Profile
	if weightSum > 0 {
		profile = Profile{
			Complexity:      complexitySum / weightSum,
			Quality:         qualitySum / weightSum,
			Maintainability: maintainabilitySum / weightSum,
			BestPractices:   bestPracticesSum / weightSum,
		}
	}

	preliminary := 0.40*profile.Complexity + 0.25*profile.Quality + 0.15*profile.Maintainability + 0.20*profile.BestPractices
	return profile, preliminary
}
