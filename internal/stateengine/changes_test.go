package stateengine

import (
	"testing"

	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestChangedKeys_DetectsModifiedTopLevelKey(t *testing.T) {
	old := domain.JSON{"color": domain.JSON{"r": 1.0, "g": 2.0}, "on": true}
	updated := domain.JSON{"color": domain.JSON{"r": 1.0, "g": 5.0, "b": 7.0}, "on": true}

	require.Equal(t, []string{"color"}, ChangedKeys(old, updated))
}

func TestChangedKeys_IdenticalStateYieldsNoChanges(t *testing.T) {
	state := domain.JSON{"on": true, "level": 0.5}

	require.Empty(t, ChangedKeys(state, state))
}

func TestChangedKeys_KeyOnlyOnOneSideCounts(t *testing.T) {
	old := domain.JSON{"a": 1.0}
	updated := domain.JSON{"a": 1.0, "b": 2.0}

	require.Equal(t, []string{"b"}, ChangedKeys(old, updated))
}
