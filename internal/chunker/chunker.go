// Package chunker splits text into bounded-size chunks for retrieval.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/HarrySoteriou/gallery/internal/model"
)

// DefaultMaxChunkSize is the target upper bound, in characters, of a chunk.
const DefaultMaxChunkSize = 500

const (
	paragraphSep = "\n\n"
	sentenceSep  = ". "
)

// ChunkText splits text into paragraphs and, when a paragraph exceeds
// maxChunkSize, into greedily packed runs of sentences. The limit is soft:
// a single sentence longer than maxChunkSize becomes its own chunk.
// Non-positive maxChunkSize selects DefaultMaxChunkSize.
func ChunkText(text string, maxChunkSize int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}

	var chunks []string
	for _, para := range strings.Split(text, paragraphSep) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if runeLen(para) <= maxChunkSize {
			chunks = append(chunks, para)
			continue
		}
		chunks = append(chunks, packSentences(splitSentences(para), maxChunkSize)...)
	}
	return chunks
}

// ChunkDocument chunks text and tags every chunk with the document key and
// its position inside the document.
func ChunkDocument(key, text string, maxChunkSize int) []model.Chunk {
	texts := ChunkText(text, maxChunkSize)
	out := make([]model.Chunk, len(texts))
	for i, t := range texts {
		out[i] = model.Chunk{DocumentKey: key, Seq: i, Text: t}
	}
	return out
}

// splitSentences breaks a paragraph on ". " and restores the period the
// split consumed.
func splitSentences(para string) []string {
	parts := strings.Split(para, sentenceSep)
	sentences := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasSuffix(p, ".") {
			p += "."
		}
		sentences = append(sentences, p)
	}
	return sentences
}

// packSentences accumulates sentences into chunks of at most maxSize
// characters, joined by a single space.
func packSentences(sentences []string, maxSize int) []string {
	var (
		out    []string
		buf    strings.Builder
		bufLen int
	)
	flush := func() {
		if t := strings.TrimSpace(buf.String()); t != "" {
			out = append(out, t)
		}
		buf.Reset()
		bufLen = 0
	}

	for _, s := range sentences {
		n := runeLen(s)
		if bufLen > 0 && bufLen+1+n > maxSize {
			flush()
		}
		if bufLen > 0 {
			buf.WriteByte(' ')
			bufLen++
		}
		buf.WriteString(s)
		bufLen += n
	}
	flush()
	return out
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
