package flow

import (
	"fmt"
	"strings"

	"github.com/mohitkumar/stepflow/model"
	"github.com/oliveagle/jsonpath"
)

var defaultSelectionPaths = []string{"$.id"}

// compileSelectionPaths accepts full JSONPath selectors or bare dotted keys,
// which are read relative to the selection root.
func compileSelectionPaths(policy *model.DecisionPolicy) ([]*jsonpath.Compiled, error) {
	paths := defaultSelectionPaths
	if policy != nil && len(policy.SelectionPaths) != 0 {
		paths = policy.SelectionPaths
	}
	compiled := make([]*jsonpath.Compiled, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if !strings.HasPrefix(p, "$") {
			p = "$." + p
		}
		c, err := jsonpath.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid selection path %s: %w", p, err)
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}
