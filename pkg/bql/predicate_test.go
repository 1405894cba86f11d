package bql

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lonniev/thebrain-mcp/pkg/graphservice"
)

func TestEvaluateNameCompareEqualsIsCaseSensitive(t *testing.T) {
	node := graphservice.NodeRecord{Name: "Projects"}

	assert.True(t, evaluateNameCompare(&NameCompare{Op: OpEquals, Literal: "Projects"}, node))
	assert.False(t, evaluateNameCompare(&NameCompare{Op: OpEquals, Literal: "projects"}, node))
}

func TestEvaluateNameCompareContainsIsCaseInsensitive(t *testing.T) {
	node := graphservice.NodeRecord{Name: "Projects"}

	assert.True(t, evaluateNameCompare(&NameCompare{Op: OpContains, Literal: "PROJ"}, node))
	assert.True(t, evaluateNameCompare(&NameCompare{Op: OpStartsWith, Literal: "proj"}, node))
	assert.True(t, evaluateNameCompare(&NameCompare{Op: OpEndsWith, Literal: "ECTS"}, node))
}

func TestIsNullCoversAllProperties(t *testing.T) {
	node := graphservice.NodeRecord{Name: "X", ID: "1", Kind: "thought"}

	assert.False(t, propertyIsNull(node, "name"))
	assert.False(t, propertyIsNull(node, "id"))
	assert.False(t, propertyIsNull(node, "kind"))
	assert.True(t, propertyIsNull(node, "label"))
	assert.True(t, propertyIsNull(node, "typeId"))
}
