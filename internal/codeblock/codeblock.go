// Package codeblock extracts fenced code blocks with surrounding context
// from markdown, for separate embedding and storage as code examples.
package codeblock

import "strings"

// DefaultMinLength is the minimum code body length (in characters) for a
// fenced block to be extracted.
const DefaultMinLength = 1000

// DefaultContextChars is how much surrounding text is captured on each
// side of a code block.
const DefaultContextChars = 1000

const maxLangTokenLen = 20

// Block is one extracted fenced code block with its surrounding context.
type Block struct {
	Language    string
	Code        string
	ContextBefore string
	ContextAfter  string
}

// Extract finds fenced code blocks in markdown whose body is at least
// minLength characters, pairing consecutive ``` fences. Code is preserved
// verbatim; no re-indentation is performed.
func Extract(markdown string, minLength int) []Block {
	if minLength <= 0 {
		minLength = DefaultMinLength
	}

	fenceIdxs := allFenceIndexes(markdown)
	var blocks []Block
	for i := 0; i+1 < len(fenceIdxs); i += 2 {
		openStart := fenceIdxs[i]
		closeStart := fenceIdxs[i+1]

		bodyStart := openStart + 3
		firstNewline := strings.IndexByte(markdown[bodyStart:], '\n')
		lang := ""
		if firstNewline >= 0 {
			candidate := markdown[bodyStart : bodyStart+firstNewline]
			if isLanguageToken(candidate) {
				lang = strings.TrimSpace(candidate)
				bodyStart += firstNewline + 1
			} else if strings.TrimSpace(candidate) == "" {
				bodyStart += firstNewline + 1
			}
		}

		body := markdown[bodyStart:closeStart]
		trimmedBody := strings.TrimRight(body, "\n")
		if len(trimmedBody) < minLength {
			continue
		}

		contextBefore := strings.TrimSpace(lastNChars(markdown[:openStart], DefaultContextChars))
		afterStart := closeStart + 3
		contextAfter := strings.TrimSpace(firstNChars(safeSlice(markdown, afterStart), DefaultContextChars))

		blocks = append(blocks, Block{
			Language:      lang,
			Code:          trimmedBody,
			ContextBefore: contextBefore,
			ContextAfter:  contextAfter,
		})
	}
	return blocks
}

func isLanguageToken(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || len(trimmed) > maxLangTokenLen {
		return false
	}
	for _, r := range trimmed {
		if r == ' ' || r == '\t' {
			return false
		}
	}
	return true
}

// allFenceIndexes returns the byte offset of every ``` occurrence.
func allFenceIndexes(s string) []int {
	var out []int
	offset := 0
	for {
		idx := strings.Index(s[offset:], "```")
		if idx < 0 {
			return out
		}
		out = append(out, offset+idx)
		offset += idx + 3
	}
}

func lastNChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func firstNChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func safeSlice(s string, from int) string {
	if from >= len(s) {
		return ""
	}
	if from < 0 {
		from = 0
	}
	return s[from:]
}
