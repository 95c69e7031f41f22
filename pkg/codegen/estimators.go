package codegen

import (
	"fmt"
	"strings"

	"mlcraft/pkg/tuning"
)

// estimator maps a model type identifier onto its sklearn class.
type estimator struct {
	module      string
	class       string
	defaultArgs string
}

//nolint:gochecknoglobals // static estimator catalog
var estimators = map[string]estimator{
	tuning.ModelLogisticRegression:        {"sklearn.linear_model", "LogisticRegression", "max_iter=1000"},
	tuning.ModelDecisionTree:              {"sklearn.tree", "DecisionTreeClassifier", "random_state=42"},
	tuning.ModelRandomForest:              {"sklearn.ensemble", "RandomForestClassifier", "random_state=42"},
	tuning.ModelGradientBoosting:          {"sklearn.ensemble", "GradientBoostingClassifier", "random_state=42"},
	tuning.ModelSVM:                       {"sklearn.svm", "SVC", "probability=True, random_state=42"},
	tuning.ModelKNN:                       {"sklearn.neighbors", "KNeighborsClassifier", ""},
	tuning.ModelNaiveBayes:                {"sklearn.naive_bayes", "GaussianNB", ""},
	tuning.ModelMLP:                       {"sklearn.neural_network", "MLPClassifier", "max_iter=500, random_state=42"},
	tuning.ModelLinearRegression:          {"sklearn.linear_model", "LinearRegression", ""},
	tuning.ModelRidge:                     {"sklearn.linear_model", "Ridge", ""},
	tuning.ModelLasso:                     {"sklearn.linear_model", "Lasso", ""},
	tuning.ModelElasticNet:                {"sklearn.linear_model", "ElasticNet", ""},
	tuning.ModelRandomForestRegressor:     {"sklearn.ensemble", "RandomForestRegressor", "random_state=42"},
	tuning.ModelGradientBoostingRegressor: {"sklearn.ensemble", "GradientBoostingRegressor", "random_state=42"},
	tuning.ModelSVR:                       {"sklearn.svm", "SVR", ""},
	tuning.ModelMLPRegressor:              {"sklearn.neural_network", "MLPRegressor", "max_iter=500, random_state=42"},
}

func estimatorFor(modelType string) (estimator, error) {
	est, ok := estimators[modelType]
	if !ok {
		return estimator{}, fmt.Errorf("unknown model type %q", modelType)
	}
	return est, nil
}

// importLine renders the sklearn import for an estimator.
func (e estimator) importLine() string {
	return fmt.Sprintf("from %s import %s", e.module, e.class)
}

// construct renders a constructor expression with the estimator's fixed
// default arguments.
func (e estimator) construct() string {
	return fmt.Sprintf("%s(%s)", e.class, e.defaultArgs)
}

// constructWith renders a constructor expression taking tuned parameters from
// a dict variable in the generated script. Tuned values override the fixed
// defaults rather than colliding with them as duplicate keywords.
func (e estimator) constructWith(paramsVar string) string {
	if e.defaultArgs == "" {
		return fmt.Sprintf("%s(**%s)", e.class, paramsVar)
	}
	return fmt.Sprintf("%s(**{**%s, **%s})", e.class, e.defaultsDict(), paramsVar)
}

// defaultsDict renders the fixed constructor arguments as a Python dict
// literal.
func (e estimator) defaultsDict() string {
	if e.defaultArgs == "" {
		return "{}"
	}
	pairs := strings.Split(e.defaultArgs, ", ")
	parts := make([]string, len(pairs))
	for i, pair := range pairs {
		key, value, _ := strings.Cut(pair, "=")
		parts[i] = fmt.Sprintf("%q: %s", key, value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
