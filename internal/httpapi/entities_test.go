package httpapi

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jordansnyder/maestra-core/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestBuildEntityTree_NestsByParent(t *testing.T) {
	entities := []domain.Entity{
		{ID: "root", Name: "Root"},
		{ID: "child1", Name: "Child1", ParentID: strPtr("root")},
		{ID: "child2", Name: "Child2", ParentID: strPtr("root")},
		{ID: "grandchild", Name: "Grandchild", ParentID: strPtr("child1")},
	}

	tree := buildEntityTree(entities, "root", 0)

	require.Len(t, tree, 2)
	require.Equal(t, "child1", tree[0].ID)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, "grandchild", tree[0].Children[0].ID)
}

func TestBuildEntityTree_RespectsMaxDepth(t *testing.T) {
	entities := []domain.Entity{
		{ID: "child1", Name: "Child1", ParentID: strPtr("root")},
		{ID: "grandchild", Name: "Grandchild", ParentID: strPtr("child1")},
	}

	tree := buildEntityTree(entities, "root", 1)

	require.Len(t, tree, 1)
	require.Empty(t, tree[0].Children)
}
