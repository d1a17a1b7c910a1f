package dto

// CategoryDTO is a notification category as exposed to the mobile app
type CategoryDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ListCategoriesResponse wraps the category catalog
type ListCategoriesResponse struct {
	Categories []CategoryDTO `json:"categories"`
}
