package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.Zero(t, g.Len())
	assert.Empty(t, g.Nodes())
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("a")
	assert.Equal(t, 1, g.Len())

	g.AddNode("a") // Test idempotency
	assert.Equal(t, 1, g.Len())

	g.AddNode("b")
	assert.Equal(t, []string{"a", "b"}, g.Nodes())
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		require.NoError(t, g.AddEdge("a", "b")) // b consumes a

		deps, err := g.Dependencies("b")
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, deps)

		dependents, err := g.Dependents("a")
		require.NoError(t, err)
		assert.Equal(t, []string{"b"}, dependents)

		assert.Equal(t, [][2]string{{"a", "b"}}, g.Edges())
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")

		err := g.AddEdge("dne", "a")
		assert.ErrorContains(t, err, "source node not found")

		err = g.AddEdge("a", "dne")
		assert.ErrorContains(t, err, "destination node not found")

		err = g.AddEdge("a", "a")
		assert.ErrorContains(t, err, "self-referential edge")

		_, err = g.Dependencies("dne")
		assert.ErrorContains(t, err, "node not found")
	})
}

func TestAttrs(t *testing.T) {
	g := New()
	g.AddNode("a")

	require.NoError(t, g.SetAttr("a", "label", "Dense"))
	require.NoError(t, g.SetAttr("a", "label", "Dense (None, 10)"))
	v, ok := g.Attr("a", "label")
	require.True(t, ok)
	assert.Equal(t, "Dense (None, 10)", v)

	_, ok = g.Attr("a", "color")
	assert.False(t, ok)
	assert.Error(t, g.SetAttr("dne", "label", "x"))
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		g := New()
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("valid dag has no cycles", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c")) // Transitive edge
		require.NoError(t, g.AddEdge("c", "d"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("simple direct cycle is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))
		assert.ErrorContains(t, g.DetectCycles(), "cycle detected involving node 'a'")
	})

	t.Run("cycle in a disjoint component is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))

		g.AddNode("x")
		g.AddNode("y")
		g.AddNode("z")
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "z"))
		require.NoError(t, g.AddEdge("z", "y"))

		assert.ErrorContains(t, g.DetectCycles(), "cycle detected")
	})
}

func TestMarshalDOT(t *testing.T) {
	g := New()
	g.AddNode("input")
	g.AddNode("layer_0")
	require.NoError(t, g.SetAttr("layer_0", "label", "Dense"))
	require.NoError(t, g.AddEdge("input", "layer_0"))

	out, err := g.MarshalDOT("Net")
	require.NoError(t, err)

	dot := string(out)
	assert.Contains(t, dot, "digraph")
	assert.Contains(t, dot, "input")
	assert.Contains(t, dot, "layer_0")
	assert.Contains(t, dot, "Dense")
	assert.Contains(t, dot, "->")
}
