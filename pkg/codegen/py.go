package codegen

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"mlcraft/pkg/tuning"
)

// PyString escapes a user-supplied value for embedding inside a
// double-quoted Python string literal. Backslashes, quotes, and line breaks
// would otherwise let a hostile filename or column name terminate the literal
// and inject statements into the generated script.
func PyString(s string) string {
	replacer := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		"\n", `\n`,
		"\r", `\r`,
		"\t", `\t`,
	)
	return replacer.Replace(s)
}

// pyValue renders a Go value as a Python literal. Used for categorical
// search-space values and estimator constructor arguments.
func pyValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "None"
	case bool:
		if t {
			return "True"
		}
		return "False"
	case string:
		return `"` + PyString(t) + `"`
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e15 {
			return strconv.FormatFloat(t, 'f', 1, 64)
		}
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return fmt.Sprintf("%v", t)
	}
}

// pyFloat renders a float the way the grid enumeration and suggest calls need
// it: integral floats keep a trailing .0 so Python treats them as floats.
func pyFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func pyList(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = pyValue(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// sortedParamNames gives search-space iteration a stable order so generated
// scripts are deterministic for identical configurations.
func sortedParamNames(space tuning.SearchSpace) []string {
	names := make([]string, 0, len(space))
	for name := range space {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
