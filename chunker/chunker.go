package chunker

import (
	"errors"
	"regexp"
	"strings"
)

// ErrEmptyInput is returned when the text to chunk is empty or whitespace.
var ErrEmptyInput = errors.New("chunker: empty input text")

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 100
)

var (
	spaceRe   = regexp.MustCompile(`[ \t]+`)
	newlineRe = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses runs of spaces and tabs to single spaces and runs of
// three or more newlines to exactly two, keeping paragraph boundaries intact.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.ReplaceAll(text, " \n", "\n")
	text = strings.ReplaceAll(text, "\n ", "\n")
	text = newlineRe.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

// Chunk splits text into ordered segments of at most maxSize characters of
// paragraph content, greedily packing whole paragraphs. A paragraph longer
// than maxSize is hard-split into maxSize slices with no overlap between
// them. Between packed chunks, up to overlap characters of the previous
// chunk's tail are carried into the next chunk, so no chunk ever exceeds
// maxSize+overlap characters.
func Chunk(text string, maxSize, overlap int) ([]string, error) {
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}

	norm := Normalize(text)
	if norm == "" {
		return nil, ErrEmptyInput
	}

	var (
		chunks   []string
		parts    []string
		partsLen int // length of strings.Join(parts, "\n\n")
		prefix   string
	)

	flush := func() {
		if len(parts) == 0 {
			return
		}
		body := strings.Join(parts, "\n\n")
		chunks = append(chunks, prefix+body)
		prefix = carryTail(body, overlap)
		parts = parts[:0]
		partsLen = 0
	}

	for _, para := range strings.Split(norm, "\n\n") {
		if len(para) > maxSize {
			flush()
			for start := 0; start < len(para); start += maxSize {
				end := start + maxSize
				if end > len(para) {
					end = len(para)
				}
				chunks = append(chunks, para[start:end])
			}
			// no overlap is applied within or out of a hard split
			prefix = ""
			continue
		}

		add := len(para)
		if partsLen > 0 {
			add += 2 // joining "\n\n"
		}
		if partsLen+add > maxSize {
			flush()
			add = len(para)
		}
		parts = append(parts, para)
		partsLen += add
	}
	flush()

	return chunks, nil
}

// carryTail returns the trailing overlap-sized slice of body including the
// joining separator, sized so that prefix+payload stays within
// maxSize+overlap.
func carryTail(body string, overlap int) string {
	if overlap <= 2 || body == "" {
		return ""
	}
	n := overlap - 2
	if n > len(body) {
		n = len(body)
	}
	return body[len(body)-n:] + "\n\n"
}
