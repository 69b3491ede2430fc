package mongodb

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestExactNameFilterEscapesMetacharacters(t *testing.T) {
	filter := exactNameFilter("Broiler (Starter)")

	clause, ok := filter["name"].(bson.M)
	require.True(t, ok)
	pattern, ok := clause["$regex"].(string)
	require.True(t, ok)
	assert.Equal(t, "i", clause["$options"])

	re := regexp.MustCompile("(?i)" + pattern)
	assert.True(t, re.MatchString("Broiler (Starter)"))
	assert.True(t, re.MatchString("broiler (starter)"))
	assert.False(t, re.MatchString("Broiler Starter"))
	assert.False(t, re.MatchString("Broiler (Starter) Plus"))
}

func TestExactNameFilterAnchorsPlainNames(t *testing.T) {
	filter := exactNameFilter("Layers Mash")
	pattern := filter["name"].(bson.M)["$regex"].(string)

	re := regexp.MustCompile("(?i)" + pattern)
	assert.True(t, re.MatchString("layers mash"))
	assert.False(t, re.MatchString("Layers Mash Premium"))
	assert.False(t, re.MatchString("Super Layers Mash"))
}
