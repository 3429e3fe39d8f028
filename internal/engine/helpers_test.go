package engine

import (
	"errors"

	"CrashCast/internal/domain/models"
)

func asErr(err error, target interface{}) bool {
	return errors.As(err, target)
}

func testCategories() models.CategorySet {
	return models.CategorySet{
		{Name: "low", Min: 1.0, Max: 2.0, Color: "grey"},
		{Name: "medium", Min: 2.0, Max: 3.0, Color: "green"},
		{Name: "high", Min: 3.0, Max: 4.0, Color: "purple"},
		{Name: "extreme", Min: 4.0, Max: 10.0, Color: "yellow"},
		{Name: "moon", Min: 10.0, Max: 50.0, Color: "cyan"},
	}
}

func testEntries(keys []string) map[string]models.RuleEntry {
	entries := make(map[string]models.RuleEntry, len(keys))
	for _, k := range keys {
		entries[k] = models.RuleEntry{
			Bias:       2.0,
			Volatility: 0.5,
			CategoryWeights: map[string]float64{
				"low": 0.5, "medium": 0.3, "high": 0.1, "extreme": 0.07, "moon": 0.03,
			},
		}
	}
	return entries
}
