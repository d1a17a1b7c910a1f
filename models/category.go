package models

import (
	"fmt"
	"strings"
)

// Category is a topical bucket citizens subscribe to. Subscriptions and
// communications reference categories by Name.
type Category struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// AvailableCategories is the fixed, process-wide category catalog
var AvailableCategories = []Category{
	{ID: "etat-civil", Name: "État Civil"},
	{ID: "urbanisme", Name: "Urbanisme"},
	{ID: "evenements", Name: "Événements Locaux"},
	{ID: "annonces-officielles", Name: "Annonces Officielles"},
	{ID: "sante", Name: "Santé Publique"},
	{ID: "education", Name: "Éducation"},
	{ID: "transport", Name: "Transport"},
	{ID: "culture", Name: "Culture et Loisirs"},
	{ID: "decisions-municipales", Name: "Décisions Municipales"},
	{ID: "environnement", Name: "Environnement"},
	{ID: "securite", Name: "Sécurité"},
	{ID: "aide-sociale", Name: "Aide Sociale"},
	{ID: "logement", Name: "Logement"},
	{ID: "travaux-publics", Name: "Travaux Publics"},
}

// CategoryByName looks a category up by its display name
func CategoryByName(name string) (Category, bool) {
	for _, c := range AvailableCategories {
		if c.Name == name {
			return c, true
		}
	}
	return Category{}, false
}

// IsKnownCategory reports whether name belongs to the catalog
func IsKnownCategory(name string) bool {
	_, ok := CategoryByName(name)
	return ok
}

// WithDefaultDescription returns the category with a generated description when none is set
func (c Category) WithDefaultDescription() Category {
	if c.Description == "" {
		c.Description = fmt.Sprintf("Notifications concernant %s.", strings.ToLower(c.Name))
	}
	return c
}
