package dnsname

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonical(t *testing.T) {
	assert.Equal(t, "example.com.", Canonical("Example.Com"))
	assert.Equal(t, "example.com.", Canonical("example.com."))
}

func TestIsSubdomain(t *testing.T) {
	assert.True(t, IsSubdomain("www.example.com.", "example.com."))
	assert.True(t, IsSubdomain("example.com.", "example.com."))
	assert.False(t, IsSubdomain("example.net.", "example.com."))
}

func TestParent(t *testing.T) {
	assert.Equal(t, "example.com.", Parent("www.example.com."))
	assert.Equal(t, ".", Parent("com."))
}

func TestReplaceLeftmostLabel(t *testing.T) {
	assert.Equal(t, "*.wild.example.com.", ReplaceLeftmostLabel("foo.wild.example.com."))
}

func TestRelativeLabels(t *testing.T) {
	labels := RelativeLabels("foo.bar.example.com.", "example.com.")
	// closest-to-apex first: "bar" sits directly under the origin, "foo" is the leaf.
	assert.Equal(t, []string{"bar", "foo"}, labels)
}

func TestExtend(t *testing.T) {
	assert.Equal(t, "bar.example.com.", Extend("bar", "example.com."))
}

func TestWireLength(t *testing.T) {
	assert.Equal(t, 1, WireLength("."))
	// "www" (3+1) + "example" (7+1) + "com" (3+1) + root (1) = 17
	assert.Equal(t, 17, WireLength("www.example.com."))
}

func TestStripSuffix(t *testing.T) {
	assert.Equal(t, "x.", StripSuffix("x.alias.example.com.", "alias.example.com."))
	assert.Equal(t, "", StripSuffix("alias.example.com.", "alias.example.com."))
}
