package stateengine

import (
	"reflect"
	"sort"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

// ChangedKeys returns the top-level keys whose value differs (deep
// inequality) between oldState and newState, including keys only present
// on one side. The bus and history layers never see nested diffs — only
// which top-level keys moved.
func ChangedKeys(oldState, newState domain.JSON) []string {
	seen := make(map[string]struct{}, len(oldState)+len(newState))
	changed := make([]string, 0)

	for k := range oldState {
		seen[k] = struct{}{}
	}

	for k := range newState {
		seen[k] = struct{}{}
	}

	for k := range seen {
		ov, oldOK := oldState[k]
		nv, newOK := newState[k]

		if oldOK != newOK || !reflect.DeepEqual(ov, nv) {
			changed = append(changed, k)
		}
	}

	sort.Strings(changed)

	return changed
}
