package stateengine

import (
	"testing"

	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestDeepMerge_RecursesOnSharedObjects(t *testing.T) {
	dst := domain.JSON{"color": domain.JSON{"r": 1.0, "g": 2.0}, "on": true}
	src := domain.JSON{"color": domain.JSON{"g": 5.0, "b": 7.0}}

	got := DeepMerge(dst, src)

	require.Equal(t, domain.JSON{"r": 1.0, "g": 5.0, "b": 7.0}, got["color"])
	require.Equal(t, true, got["on"])
}

func TestDeepMerge_NonObjectOverwrites(t *testing.T) {
	dst := domain.JSON{"count": 1.0}
	src := domain.JSON{"count": 2.0}

	got := DeepMerge(dst, src)

	require.Equal(t, 2.0, got["count"])
}

func TestDeepMerge_NullIsAValueNotADelete(t *testing.T) {
	dst := domain.JSON{"label": "hi"}
	src := domain.JSON{"label": nil}

	got := DeepMerge(dst, src)

	require.Contains(t, got, "label")
	require.Nil(t, got["label"])
}

func TestDeepMerge_EmptyUpdateIsIdentity(t *testing.T) {
	dst := domain.JSON{"a": 1.0, "b": domain.JSON{"c": 2.0}}

	got := DeepMerge(dst, domain.JSON{})

	require.Equal(t, dst, got)
}

func TestDeepMerge_DoesNotMutateDst(t *testing.T) {
	dst := domain.JSON{"a": 1.0}
	_ = DeepMerge(dst, domain.JSON{"a": 2.0})

	require.Equal(t, 1.0, dst["a"])
}
