package lock

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyFor(t *testing.T) {
	assert.Equal(t, KeyFor("index", "document_chunks"), KeyFor("index", "document_chunks"))
	assert.NotEqual(t, KeyFor("index", "document_chunks"), KeyFor("index", "other"))
	// 区切りを入れているので連結結果が同じでも別キーになる
	assert.NotEqual(t, KeyFor("ab", "c"), KeyFor("a", "bc"))
}
