package services

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

type TextChunker interface {
	ChunkText(text string, maxChunkSize int, overlap int) []string
}

type textChunker struct{}

func NewTextChunker() TextChunker {
	return &textChunker{}
}

var sentenceEndRe = regexp.MustCompile(`([.!?])\s+`)

// ChunkText packs paragraphs (or sentences of oversized paragraphs) into
// chunks of at most maxChunkSize characters. Each chunk after the first
// starts with the last overlap characters of its predecessor.
func (tc *textChunker) ChunkText(text string, maxChunkSize int, overlap int) []string {
	if maxChunkSize <= 0 {
		maxChunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= maxChunkSize {
		overlap = maxChunkSize / 4
	}

	var units []string
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if utf8.RuneCountInString(para) <= maxChunkSize {
			units = append(units, para)
			continue
		}
		units = append(units, splitOversized(para, maxChunkSize)...)
	}

	var (
		chunks  []string
		current []rune
	)
	for _, unit := range units {
		u := []rune(unit)
		if len(current) > 0 && len(current)+2+len(u) > maxChunkSize {
			chunks = append(chunks, string(current))
			keep := overlap
			if room := maxChunkSize - 2 - len(u); room < keep {
				keep = room
			}
			current = tail(current, keep)
		}
		if len(current) > 0 {
			current = append(current, '\n', '\n')
		}
		current = append(current, u...)
	}
	if len(current) > 0 {
		chunks = append(chunks, string(current))
	}

	return chunks
}

// splitOversized breaks a paragraph at sentence ends, hard-cutting any
// sentence that is still too long.
func splitOversized(para string, maxChunkSize int) []string {
	marked := sentenceEndRe.ReplaceAllString(para, "$1\x00")

	var parts []string
	for _, sentence := range strings.Split(marked, "\x00") {
		runes := []rune(strings.TrimSpace(sentence))
		for len(runes) > maxChunkSize {
			parts = append(parts, string(runes[:maxChunkSize]))
			runes = runes[maxChunkSize:]
		}
		if len(runes) > 0 {
			parts = append(parts, string(runes))
		}
	}
	return parts
}

func tail(runes []rune, n int) []rune {
	if n <= 0 {
		return nil
	}
	if len(runes) <= n {
		return append([]rune(nil), runes...)
	}
	return append([]rune(nil), runes[len(runes)-n:]...)
}
