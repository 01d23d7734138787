package id

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// refPrefixLen caps the description part of a reference.
const refPrefixLen = 10

// Reference returns a deterministic transaction reference like "20250103_GITHUBPROS"
// built from the posting date and the first alphanumerics of the description.
func Reference(date time.Time, desc string) string {
	prefix := strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, desc)
	if len(prefix) > refPrefixLen {
		prefix = prefix[:refPrefixLen]
	}
	return fmt.Sprintf("%s_%s", date.Format("20060102"), strings.ToUpper(prefix))
}

// WithSeq appends a repeat counter to a reference. The first occurrence keeps the bare reference.
// ("20250103_GITHUB", 1) -> "20250103_GITHUB"; ("20250103_GITHUB", 2) -> "20250103_GITHUB-2"
func WithSeq(ref string, seq int) string {
	if seq <= 1 {
		return ref
	}
	return ref + "-" + strconv.Itoa(seq)
}

// ParseSeq splits an ID produced by WithSeq into reference and counter.
// "20250103_GITHUB-2" -> ("20250103_GITHUB", 2); IDs without a counter return seq 1.
func ParseSeq(id string) (ref string, seq int) {
	i := strings.LastIndexByte(id, '-')
	if i < 0 {
		return id, 1
	}
	n, err := strconv.Atoi(id[i+1:])
	if err != nil || n < 2 {
		return id, 1
	}
	return id[:i], n
}

// Sequencer hands out unique IDs for repeated references within one import.
type Sequencer struct {
	seen map[string]int
}

// NewSequencer creates an empty Sequencer.
func NewSequencer() *Sequencer {
	return &Sequencer{seen: make(map[string]int)}
}

// Next returns ref the first time it is seen, then ref-2, ref-3, ...
func (s *Sequencer) Next(ref string) string {
	s.seen[ref]++
	return WithSeq(ref, s.seen[ref])
}
