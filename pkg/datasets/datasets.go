// Package datasets is the static catalog of bundled example datasets.
package datasets

import "fmt"

// Dataset describes one bundled example CSV.
type Dataset struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	TaskType         string `json:"taskType"`
	TargetColumn     string `json:"targetColumn"`
	RecommendedModel string `json:"recommendedModel"`
}

//nolint:gochecknoglobals // static catalog
var catalog = []Dataset{
	{
		ID:               "iris.csv",
		Name:             "Iris Classification",
		Description:      "Classify iris flowers (150 samples, 3 classes)",
		TaskType:         "classification",
		TargetColumn:     "species",
		RecommendedModel: "random_forest",
	},
	{
		ID:               "california_housing.csv",
		Name:             "California Housing",
		Description:      "Predict house values (200 samples)",
		TaskType:         "regression",
		TargetColumn:     "MedHouseVal",
		RecommendedModel: "linear_regression",
	},
}

// Catalog returns the example datasets. The returned slice is a copy.
func Catalog() []Dataset {
	out := make([]Dataset, len(catalog))
	copy(out, catalog)
	return out
}

// Find looks a dataset up by id (its file name).
func Find(id string) (Dataset, error) {
	for _, d := range catalog {
		if d.ID == id {
			return d, nil
		}
	}
	return Dataset{}, fmt.Errorf("unknown example dataset %q", id)
}
