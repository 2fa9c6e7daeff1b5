package category

import (
	"strings"

	"github.com/polyana-labs/concierge/internal/models"
)

// rule maps one category to its trigger substrings. Matching is
// case-insensitive; triggers are stems on purpose so inflected Russian forms
// match ("цен" covers "цена", "цены", "ценах").
type rule struct {
	category models.Category
	triggers []string
}

// rules are checked in a fixed priority order: a query mentioning both a
// resort name and prices is a resort question first.
var rules = []rule{
	{
		category: models.CategoryResort,
		triggers: []string{
			"роза хутор", "красная поляна", "газпром", "курорт",
			"rosa khutor", "krasnaya polyana", "gazprom", "resort",
		},
	},
	{
		category: models.CategorySafety,
		triggers: []string{
			"безопасн", "сертификат", "правила",
			"safety", "certif", "rules", "instructor",
		},
	},
	{
		category: models.CategoryPricing,
		triggers: []string{
			"цен", "стоимост", "сколько стоит", "прайс", "тариф", "скидк", "пакет",
			"price", "cost", "how much", "tariff", "discount", "package",
		},
	},
	{
		category: models.CategoryFAQ,
		triggers: []string{
			"сколько", "можно ли", "нужно ли", "вопрос",
			"how many", "can i", "do i need", "question",
		},
	},
}

// Detect classifies a free-text query into a knowledge category. It is a
// deliberately simple heuristic: a false negative just means unfiltered
// retrieval, never a failure. The second return is false when no trigger
// matches.
func Detect(query string) (models.Category, bool) {
	lower := strings.ToLower(query)
	for _, r := range rules {
		for _, trigger := range r.triggers {
			if strings.Contains(lower, trigger) {
				return r.category, true
			}
		}
	}
	return "", false
}
