package model

import "time"

// DishRecord is a scraped recipe entry keyed by dish name
type DishRecord struct {
	DishName    string    `json:"dish_name" bson:"dishName"`
	CuisineType string    `json:"cuisine_type" bson:"cuisineType"`
	Description string    `json:"description" bson:"description"`
	Ingredients []string  `json:"ingredients" bson:"ingredients"`
	Steps       []string  `json:"steps" bson:"steps"`
	URL         string    `json:"url" bson:"url"`
	Source      string    `json:"source,omitempty" bson:"source,omitempty"` // e.g., "baidu", "wikipedia"
	UpdatedAt   time.Time `json:"-" bson:"updatedAt"`
}

// DishPrediction is the output of the dish-identification step for one question
type DishPrediction struct {
	QuestionID      string   `json:"question_id"`
	ActualDish      string   `json:"actual_dish"`
	PredictedDishes []string `json:"predicted_dishes"`
	FullResponse    string   `json:"full_response"`
}

// DishCatalog lists the candidate dishes grouped by cuisine
type DishCatalog struct {
	DishesByCuisine map[string][]string `json:"dishes_by_cuisine"`
}
