package model

// Macros are per-portion nutrition estimates in grams (calories in kcal).
type Macros struct {
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fats     float64 `json:"fats"`
	Calories float64 `json:"calories"`
}

// FoodAnalysis is the vision-model estimate for a meal photo.
type FoodAnalysis struct {
	FoodName string `json:"foodName,omitempty"`
	Macros   Macros `json:"macros"`
	Summary  string `json:"summary,omitempty"`
}
