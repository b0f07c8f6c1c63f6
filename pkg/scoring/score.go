// Package scoring computes tender evaluation scores: the weighted criteria
// aggregation, the company experience/feasibility derivation, and the final
// per-document breakdown used for comparison and ranking.
package scoring

import (
	"p9e.in/tenderdesk/models"
)

// WeightedScore sums value*weight/100 over the configured criteria. Missing
// values count as 0. Weights are trusted as configured: if they do not sum to
// 100 the result is simply not normalized, which lets admins run partial or
// over-weighted criteria sets.
func WeightedScore(criteria []models.Criterion, values map[string]float64) float64 {
	var total float64
	for _, c := range criteria {
		total += values[c.ID] * c.Weight / 100
	}
	return total
}

// ExperienceScore derives a 0-100 capability measure from past contracts.
// Quantity: full credit at 3+ contracts. Scale: full credit if any past
// contract reached 80% of the current budget. Returns 0 with no history.
func ExperienceScore(estimatedBudget float64, history []models.CompanyExperience) float64 {
	if len(history) == 0 {
		return 0
	}

	quantityScore := float64(len(history)) / 3 * 100
	if quantityScore > 100 {
		quantityScore = 100
	}

	scaleScore := 0.0
	for _, h := range history {
		if h.Value >= estimatedBudget*0.8 {
			scaleScore = 100
			break
		}
	}

	return quantityScore*0.5 + scaleScore*0.5
}

// FeasibilityScore combines the latest-year revenue check (full credit when
// revenue covers 1.5x the budget) with the experience score.
func FeasibilityScore(estimatedBudget, latestRevenue, experienceScore float64) float64 {
	revenueCheck := 100.0
	if estimatedBudget > 0 {
		revenueCheck = latestRevenue / (estimatedBudget * 1.5) * 100
		if revenueCheck > 100 {
			revenueCheck = 100
		}
	}
	return revenueCheck*0.6 + experienceScore*0.4
}

// TotalScore is the final ranking formula. PersonnelWeight exists on the
// config but does not participate; the complement of TechWeight goes to the
// financial score.
func TotalScore(techScore, financialScore float64, config models.ScoringConfig) float64 {
	return techScore*config.TechWeight + financialScore*(1-config.TechWeight)
}
