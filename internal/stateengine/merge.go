// Package stateengine implements the entity state lifecycle: deep-merge
// partial updates, change-set computation, history recording, lifecycle
// events, and variable validation.
package stateengine

import "github.com/jordansnyder/maestra-core/internal/domain"

// DeepMerge applies src onto dst per the state engine's merge rule: if both
// sides at a key are JSON objects, merge recursively; otherwise src's value
// wins outright. A null value in src is a value — it overwrites, it does
// not delete the key. dst is not mutated; a new map is returned.
func DeepMerge(dst, src domain.JSON) domain.JSON {
	out := make(domain.JSON, len(dst)+len(src))

	for k, v := range dst {
		out[k] = v
	}

	for k, sv := range src {
		dv, exists := dst[k]
		if !exists {
			out[k] = sv

			continue
		}

		dvObj, dvIsObj := dv.(map[string]interface{})
		svObj, svIsObj := sv.(map[string]interface{})

		if dvIsObj && svIsObj {
			out[k] = DeepMerge(dvObj, svObj)

			continue
		}

		out[k] = sv
	}

	return out
}
