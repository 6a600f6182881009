package langstrategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTS = `import { Injectable } from '@angular/core';

export class Greeter {
  greet(name) {
    return 'hello ' + name;
  }

  shout(name) {
    return this.greet(name).toUpperCase();
  }
}

export const handler = async (event) => {
  return event;
};
`

func TestStructuredStrategy_TopLevelNodes(t *testing.T) {
	s := NewStructuredStrategy()
	nodes := s.TopLevelNodes(nil, sampleTS)
	require.Len(t, nodes, 2)
	assert.Equal(t, "class", nodes[0].Type)
	assert.Equal(t, "Greeter", nodes[0].Name)
	assert.Equal(t, "function", nodes[1].Type)
	assert.Equal(t, "handler", nodes[1].Name)
}

func TestStructuredStrategy_SubNodes(t *testing.T) {
	s := NewStructuredStrategy()
	nodes := s.TopLevelNodes(nil, sampleTS)
	require.NotEmpty(t, nodes)

	methods := s.SubNodes(nodes[0])
	require.Len(t, methods, 2)
	assert.Equal(t, "greet", methods[0].Name)
	assert.Equal(t, "shout", methods[1].Name)
}

func TestStructuredStrategy_HeaderHasImports(t *testing.T) {
	s := NewStructuredStrategy()
	header := s.HeaderText(nil, sampleTS)
	assert.Contains(t, header, "import { Injectable }")
}

func TestStructuredStrategy_ShouldSkipEmptyInterface(t *testing.T) {
	s := NewStructuredStrategy()
	reason, skip := s.ShouldSkip(SkipCandidate{Type: "interface", Text: "interface Empty {\n}\n"})
	assert.True(t, skip)
	assert.NotEmpty(t, reason)
}
