package outreach

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDNCJSONArray(t *testing.T) {
	s := ParseDNC(`["jane@acme.com", "@spamco.com", "baddomain.net"]`)
	assert.Equal(t, 3, s.Size())

	blocked, entry := s.Blocks("jane@acme.com")
	assert.True(t, blocked)
	assert.Equal(t, "jane@acme.com", entry)

	blocked, entry = s.Blocks("anyone@spamco.com")
	assert.True(t, blocked)
	assert.Equal(t, "@spamco.com", entry)

	blocked, _ = s.Blocks("sales@baddomain.net")
	assert.True(t, blocked)

	blocked, _ = s.Blocks("other@acme.com")
	assert.False(t, blocked)
}

func TestParseDNCCommaList(t *testing.T) {
	s := ParseDNC(" jane@acme.com, @spamco.com ,baddomain.net ")
	assert.Equal(t, 3, s.Size())

	blocked, _ := s.Blocks("JANE@ACME.COM")
	assert.True(t, blocked)
}

func TestBlocksSubdomains(t *testing.T) {
	s := ParseDNC("spamco.com")
	blocked, entry := s.Blocks("sales@mail.spamco.com")
	assert.True(t, blocked)
	assert.Equal(t, "@spamco.com", entry)
}

func TestEmptyDNC(t *testing.T) {
	s := ParseDNC("")
	assert.Equal(t, 0, s.Size())
	blocked, _ := s.Blocks("anyone@anywhere.com")
	assert.False(t, blocked)
}
