package expense

import "strings"

// Category is the fixed set of expense categories a line item can carry
type Category string

const (
	Breakfast      Category = "Breakfast"
	Lunch          Category = "Lunch"
	Dinner         Category = "Dinner"
	Parking        Category = "Parking"
	Flights        Category = "Flights"
	Taxi           Category = "Taxi"
	Train          Category = "Train"
	OfficeSupplies Category = "Office Supplies"
	ClientMeal     Category = "Client Meal"
	Software       Category = "Software"
	Other          Category = "Other"
)

var allCategories = []Category{
	Breakfast,
	Lunch,
	Dinner,
	Parking,
	Flights,
	Taxi,
	Train,
	OfficeSupplies,
	ClientMeal,
	Software,
	Other,
}

// Categories returns every category in display order
func Categories() []Category {
	out := make([]Category, len(allCategories))
	copy(out, allCategories)
	return out
}

// CategoryNames returns the category names, used to constrain model output
func CategoryNames() []string {
	names := make([]string, len(allCategories))
	for i, c := range allCategories {
		names[i] = string(c)
	}
	return names
}

// IsValid reports whether c is one of the known categories
func (c Category) IsValid() bool {
	for _, known := range allCategories {
		if c == known {
			return true
		}
	}
	return false
}

var categorySynonyms = map[string]Category{
	"transport: flights": Flights,
	"transport: taxi":    Taxi,
	"transport: train":   Train,
	"flight":             Flights,
	"airline":            Flights,
	"cab":                Taxi,
	"uber":               Taxi,
	"rail":               Train,
	"meal":               Dinner,
	"food":               Dinner,
	"stationery":         OfficeSupplies,
	"subscription":       Software,
	"saas":               Software,
}

// CanonicalizeCategory maps free-form model output onto the category enum.
// Unknown or empty input yields Other and false.
func CanonicalizeCategory(input string) (Category, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return Other, false
	}
	for _, c := range allCategories {
		if normalized == strings.ToLower(string(c)) {
			return c, true
		}
	}
	if c, ok := categorySynonyms[normalized]; ok {
		return c, true
	}
	return Other, false
}
