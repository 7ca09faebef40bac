package bytelang

import (
	"bufio"
	"os"
	"strings"
)

// contentLine is one non-blank, comment-stripped line from a content file,
// tagged with its 1-based line number so registry errors can point back at
// the descriptor that produced them.
type contentLine struct {
	text string
	line int
}

// scanContentLines reads a content file (primitive, package, profile or
// environment descriptor) and strips '#' comments and blank lines. All four
// content file grammars share this much: one declaration per line, '#' to
// end of line is a comment.
func scanContentLines(path string) ([]contentLine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []contentLine
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if i := strings.IndexByte(text, '#'); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		lines = append(lines, contentLine{text: text, line: lineNo})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// splitFields splits a content line on whitespace.
func splitFields(s string) []string {
	return strings.Fields(s)
}
