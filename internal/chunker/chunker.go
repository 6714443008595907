// Package chunker splits course text into overlapping, sentence-aligned
// segments sized for vector retrieval.
package chunker

import (
	"regexp"
	"strings"
)

const (
	// DefaultChunkSize is the target chunk length in characters.
	DefaultChunkSize = 800

	// DefaultOverlap is the number of trailing characters re-included at
	// the start of the next chunk for continuity.
	DefaultOverlap = 100
)

// Chunker packs sentences into chunks of roughly chunkSize characters,
// carrying an overlap of roughly overlap characters between neighbors.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker. Non-positive arguments fall back to defaults.
func New(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = DefaultOverlap
	}
	return &Chunker{
		chunkSize: chunkSize,
		overlap:   overlap,
	}
}

var sentenceRe = regexp.MustCompile(`[^.!?]+[.!?]+['")\]]*`)

// splitSentences breaks text at sentence-ending punctuation. A trailing
// fragment without terminal punctuation is kept as its own sentence.
func splitSentences(text string) []string {
	matches := sentenceRe.FindAllStringIndex(text, -1)

	var sentences []string
	last := 0
	for _, m := range matches {
		s := strings.TrimSpace(text[m[0]:m[1]])
		if s != "" {
			sentences = append(sentences, s)
		}
		last = m[1]
	}

	if tail := strings.TrimSpace(text[last:]); tail != "" {
		sentences = append(sentences, tail)
	}

	return sentences
}

// Chunk splits text into ordered chunks. Sentences are packed greedily until
// adding the next one would exceed the target size; the next chunk starts far
// enough back to re-include the trailing overlap, sentence-aligned. A single
// sentence longer than the target size becomes its own oversized chunk.
// Empty input yields nil.
func (c *Chunker) Chunk(text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var chunks []string
	i := 0
	for i < len(sentences) {
		// Greedily pack sentences up to the target size. The first
		// sentence is always included, even if oversized.
		total := 0
		j := i
		for j < len(sentences) {
			need := len(sentences[j])
			if j > i {
				need++ // joining space
			}
			if j > i && total+need > c.chunkSize {
				break
			}
			total += need
			j++
		}

		chunks = append(chunks, strings.Join(sentences[i:j], " "))
		if j >= len(sentences) {
			break
		}

		// Step back over trailing sentences whose combined length fits
		// the overlap budget. The last sentence is re-included even when
		// it alone exceeds the budget, so neighbors always share text.
		// The new start must advance past the old one, so packing always
		// terminates.
		next := j
		run := 0
		for next > i+1 {
			need := len(sentences[next-1])
			if next < j && run+need > c.overlap {
				break
			}
			run += need + 1
			next--
		}
		i = next
	}

	return chunks
}
