package resolver

import (
	"foodieqa/internal/model"
	"foodieqa/internal/prompt"
)

// Policy picks a variant per question category
type Policy struct {
	routes   map[model.Category]prompt.Variant
	fallback prompt.Variant
}

// DefaultPolicy sends questions that benefit from knowing the dish (cuisine,
// cooking method, region) to dish identification and everything else to
// visual chain-of-thought.
func DefaultPolicy() Policy {
	return Policy{
		routes: map[model.Category]prompt.Variant{
			model.CategoryCuisineType:   prompt.VariantDishIdentification,
			model.CategoryCookingSkills: prompt.VariantDishIdentification,
			model.CategoryRegion:        prompt.VariantDishIdentification,
		},
		fallback: prompt.VariantVisualCoT,
	}
}

// NewPolicy builds a policy from explicit routes
func NewPolicy(routes map[model.Category]prompt.Variant, fallback prompt.Variant) Policy {
	copied := make(map[model.Category]prompt.Variant, len(routes))
	for k, v := range routes {
		copied[k] = v
	}
	return Policy{routes: copied, fallback: fallback}
}

// Variant returns the variant for cat. Unknown categories get the fallback.
func (p Policy) Variant(cat model.Category) prompt.Variant {
	if v, ok := p.routes[cat]; ok {
		return v
	}
	return p.fallback
}

// IsZero reports whether p was never configured
func (p Policy) IsZero() bool {
	return len(p.routes) == 0 && p.fallback == 0
}
