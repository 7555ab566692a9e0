package aging

import (
	"sort"

	"options-data-lab/internal/domain"
)

// FieldChange is a slow-moving field whose value differs between two
// consecutive snapshots of one entity.
type FieldChange struct {
	EntityKey string
	FieldName string
	Tier      domain.Tier
	Previous  float64
	Current   float64
}

// DetectChanges compares the field values of entities present in both
// snapshots and returns changes to fields classified other than Daily.
// Daily fields are expected to change and are ignored. Output is ordered by
// entity key, then field name.
func DetectChanges(tiers map[string]domain.Tier, previous, current map[string]map[string]float64) []FieldChange {
	var out []FieldChange
	for key, cur := range current {
		prev, ok := previous[key]
		if !ok {
			continue
		}
		for field, v := range cur {
			tier, ok := tiers[field]
			if !ok || tier == domain.TierDaily {
				continue
			}
			old, ok := prev[field]
			if !ok || old == v {
				continue
			}
			out = append(out, FieldChange{EntityKey: key, FieldName: field, Tier: tier, Previous: old, Current: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntityKey != out[j].EntityKey {
			return out[i].EntityKey < out[j].EntityKey
		}
		return out[i].FieldName < out[j].FieldName
	})
	return out
}

// CountByField tallies changes per field.
func CountByField(changes []FieldChange) map[string]int {
	out := make(map[string]int)
	for _, c := range changes {
		out[c.FieldName]++
	}
	return out
}
