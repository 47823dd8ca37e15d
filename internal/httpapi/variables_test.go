package httpapi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

func TestVariablesFromMetadata_MissingKeyIsEmptySet(t *testing.T) {
	set := variablesFromMetadata(domain.JSON{})
	require.Empty(t, set.Inputs)
	require.Empty(t, set.Outputs)
}

func TestVariablesFromMetadata_RoundTripsThroughJSON(t *testing.T) {
	meta := domain.JSON{
		"variables": domain.VariableSet{
			Inputs: []domain.VariableDefinition{{Name: "brightness", Type: domain.VarNumber, Direction: domain.DirectionInput}},
		},
	}

	set := variablesFromMetadata(meta)
	require.Len(t, set.Inputs, 1)
	require.Equal(t, "brightness", set.Inputs[0].Name)
}

func TestUpsertVariable_AddsNewAndReplacesExisting(t *testing.T) {
	set := domain.VariableSet{}

	set = upsertVariable(set, domain.VariableDefinition{Name: "hue", Direction: domain.DirectionInput, Type: domain.VarNumber})
	require.Len(t, set.Inputs, 1)

	set = upsertVariable(set, domain.VariableDefinition{Name: "hue", Direction: domain.DirectionInput, Type: domain.VarColor})
	require.Len(t, set.Inputs, 1)
	require.Equal(t, domain.VarColor, set.Inputs[0].Type)

	set = upsertVariable(set, domain.VariableDefinition{Name: "level", Direction: domain.DirectionOutput, Type: domain.VarNumber})
	require.Len(t, set.Outputs, 1)
}

func TestRemoveVariable_DropsNamedEntryOnly(t *testing.T) {
	list := []domain.VariableDefinition{{Name: "a"}, {Name: "b"}}

	out := removeVariable(list, "a")
	require.Len(t, out, 1)
	require.Equal(t, "b", out[0].Name)
}
