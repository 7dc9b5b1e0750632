package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	g := New()
	require.NotNil(t, g)
	assert.NotNil(t, g.nodes)
	assert.Zero(t, g.Len())
}

func TestAddNode(t *testing.T) {
	g := New()

	g.AddNode("USART1")
	assert.Equal(t, 1, g.Len())
	assert.True(t, g.Has("USART1"))

	g.AddNode("USART1") // idempotent
	assert.Equal(t, 1, g.Len())

	g.AddNode("PA_9")
	assert.Equal(t, []string{"USART1", "PA_9"}, g.order)
}

func TestAddEdge(t *testing.T) {
	t.Run("success case", func(t *testing.T) {
		g := New()
		g.AddNode("USART1")
		g.AddNode("PA_9")
		g.AddNode("PA_10")

		require.NoError(t, g.AddEdge("USART1", "PA_10"))
		require.NoError(t, g.AddEdge("USART1", "PA_9"))
		require.NoError(t, g.AddEdge("USART1", "PA_9")) // parallel edge ignored

		deps, err := g.Requires("USART1")
		require.NoError(t, err)
		assert.Equal(t, []string{"PA_10", "PA_9"}, deps)
	})

	t.Run("error cases", func(t *testing.T) {
		g := New()
		g.AddNode("a")

		assert.ErrorContains(t, g.AddEdge("dne", "a"), "source node not found")
		assert.ErrorContains(t, g.AddEdge("a", "dne"), "destination node not found")
		assert.ErrorContains(t, g.AddEdge("a", "a"), "self-referential edge")

		_, err := g.Requires("dne")
		assert.ErrorContains(t, err, "node not found")
	})
}

func TestDetectCycles(t *testing.T) {
	t.Run("empty graph has no cycles", func(t *testing.T) {
		assert.NoError(t, New().DetectCycles())
	})

	t.Run("shared dependency is not a cycle", func(t *testing.T) {
		g := New()
		for _, id := range []string{"DMA1_Channel1", "DMA1_Channel2", "DMA1"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("DMA1_Channel1", "DMA1"))
		require.NoError(t, g.AddEdge("DMA1_Channel2", "DMA1"))
		assert.NoError(t, g.DetectCycles())
	})

	t.Run("longer cycle reports the path", func(t *testing.T) {
		g := New()
		for _, id := range []string{"a", "b", "c", "d"} {
			g.AddNode(id)
		}
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("c", "d"))
		require.NoError(t, g.AddEdge("d", "b"))

		err := g.DetectCycles()
		require.Error(t, err)
		assert.EqualError(t, err, "cycle detected: b -> c -> d -> b")
	})
}
