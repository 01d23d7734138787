package id

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestReference(t *testing.T) {
	tests := []struct {
		desc string
		want string
	}{
		{"GITHUB *PRO SUBSCRIPTION", "20250103_GITHUBPROS"},
		{"Netflix.com", "20250103_NETFLIXCOM"},
		{"", "20250103_"},
		{"Café 42", "20250103_CAF42"},
	}
	date := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	for _, tt := range tests {
		assert.Equal(t, tt.want, Reference(date, tt.desc), "Reference(%q)", tt.desc)
	}
}

func TestWithSeqParseSeq(t *testing.T) {
	tests := []struct {
		ref string
		seq int
		id  string
	}{
		{"20250103_GITHUB", 1, "20250103_GITHUB"},
		{"20250103_GITHUB", 2, "20250103_GITHUB-2"},
		{"20250103_GITHUB", 12, "20250103_GITHUB-12"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.id, WithSeq(tt.ref, tt.seq))
		ref, seq := ParseSeq(tt.id)
		assert.Equal(t, tt.ref, ref)
		assert.Equal(t, tt.seq, seq)
	}
}

func TestParseSeq_NotACounter(t *testing.T) {
	ref, seq := ParseSeq("bank-ref-abc")
	assert.Equal(t, "bank-ref-abc", ref)
	assert.Equal(t, 1, seq)

	ref, seq = ParseSeq("x-1")
	assert.Equal(t, "x-1", ref)
	assert.Equal(t, 1, seq)
}

func TestSequencer(t *testing.T) {
	s := NewSequencer()
	assert.Equal(t, "a", s.Next("a"))
	assert.Equal(t, "b", s.Next("b"))
	assert.Equal(t, "a-2", s.Next("a"))
	assert.Equal(t, "a-3", s.Next("a"))
}
