package main

import (
	"bufio"
	"io"
	"strings"
)

// maxLineBytes bounds a single stdin line.
const maxLineBytes = 1 << 20

// readInput reads text from r. By default it stops at the first empty
// line, so an interactive user can end input with a blank Enter. With
// toEOF it reads everything. Lines are joined with "\n" and the final
// newline is dropped either way.
func readInput(r io.Reader, toEOF bool) (string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		if line == "" && !toEOF {
			break
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}
