package tuning

// ProblemType is the learning task a model type solves.
type ProblemType string

const (
	ProblemClassification ProblemType = "classification"
	ProblemRegression     ProblemType = "regression"
)

// Model type identifiers as configured on trainer nodes.
const (
	ModelLogisticRegression        = "logistic_regression"
	ModelDecisionTree              = "decision_tree"
	ModelRandomForest              = "random_forest"
	ModelGradientBoosting          = "gradient_boosting"
	ModelSVM                       = "svm"
	ModelKNN                       = "knn"
	ModelNaiveBayes                = "naive_bayes"
	ModelMLP                       = "mlp"
	ModelLinearRegression          = "linear_regression"
	ModelRidge                     = "ridge"
	ModelLasso                     = "lasso"
	ModelElasticNet                = "elastic_net"
	ModelRandomForestRegressor     = "random_forest_regressor"
	ModelGradientBoostingRegressor = "gradient_boosting_regressor"
	ModelSVR                       = "svr"
	ModelMLPRegressor              = "mlp_regressor"
)

//nolint:gochecknoglobals // static model catalog
var problemTypes = map[string]ProblemType{
	ModelLogisticRegression:        ProblemClassification,
	ModelDecisionTree:              ProblemClassification,
	ModelRandomForest:              ProblemClassification,
	ModelGradientBoosting:          ProblemClassification,
	ModelSVM:                       ProblemClassification,
	ModelKNN:                       ProblemClassification,
	ModelNaiveBayes:                ProblemClassification,
	ModelMLP:                       ProblemClassification,
	ModelLinearRegression:          ProblemRegression,
	ModelRidge:                     ProblemRegression,
	ModelLasso:                     ProblemRegression,
	ModelElasticNet:                ProblemRegression,
	ModelRandomForestRegressor:     ProblemRegression,
	ModelGradientBoostingRegressor: ProblemRegression,
	ModelSVR:                       ProblemRegression,
	ModelMLPRegressor:              ProblemRegression,
}

// Models with no hyperparameters worth searching over. Tuning them is a
// configuration error, not a runtime one.
//
//nolint:gochecknoglobals // static model catalog
var noTunableParams = map[string]bool{
	ModelLinearRegression: true,
	ModelNaiveBayes:       true,
}

//nolint:gochecknoglobals // static metric catalog
var classificationMetrics = map[string]bool{
	"accuracy":           true,
	"precision":          true,
	"precision_weighted": true,
	"recall":             true,
	"recall_weighted":    true,
	"f1":                 true,
	"f1_weighted":        true,
	"roc_auc":            true,
}

//nolint:gochecknoglobals // static metric catalog
var regressionMetrics = map[string]bool{
	"r2":                           true,
	"neg_mean_squared_error":       true,
	"neg_root_mean_squared_error":  true,
	"neg_mean_absolute_error":      true,
	"neg_median_absolute_error":    true,
	"neg_mean_absolute_percentage": false, // not exposed in the UI metric picker
}

// ProblemTypeFor returns the problem type for a model type identifier.
// Unknown model types return "", which validators report as an error.
func ProblemTypeFor(modelType string) ProblemType {
	return problemTypes[modelType]
}

// KnownModelType reports whether the model type identifier is recognized.
func KnownModelType(modelType string) bool {
	_, ok := problemTypes[modelType]
	return ok
}

// MetricValidFor reports whether a scoring metric belongs to the metric set
// of the given problem type.
func MetricValidFor(metric string, problem ProblemType) bool {
	switch problem {
	case ProblemClassification:
		return classificationMetrics[metric]
	case ProblemRegression:
		return regressionMetrics[metric]
	default:
		return false
	}
}

// HasTunableParams reports whether a model type has any hyperparameters
// worth tuning.
func HasTunableParams(modelType string) bool {
	return !noTunableParams[modelType]
}

// MaximizeMetric reports the objective direction for a scoring metric.
// Accuracy-family and R² metrics maximize; sklearn's "neg_" metrics are
// already negated so they maximize too; anything else minimizes.
func MaximizeMetric(metric string) bool {
	switch metric {
	case "accuracy", "precision", "precision_weighted", "recall", "recall_weighted",
		"f1", "f1_weighted", "roc_auc", "r2":
		return true
	}
	return len(metric) > 4 && metric[:4] == "neg_"
}
