package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	stdinReaderOnce sync.Once
	stdinReader     *bufio.Reader
)

// readBufferedLine reads from a process-wide buffered stdin so input that was
// read ahead is not lost between calls.
func readBufferedLine(prompt string) (string, error) {
	stdinReaderOnce.Do(func() { stdinReader = bufio.NewReader(os.Stdin) })
	fmt.Print(prompt)
	s, err := stdinReader.ReadString('\n')
	if err != nil && (err != io.EOF || s == "") {
		return "", err
	}
	return trimTrailingNewline(s), nil
}

func trimTrailingNewline(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\n' {
		s = s[:len(s)-1]
	}
	if len(s) > 0 && s[len(s)-1] == '\r' {
		s = s[:len(s)-1]
	}
	return s
}
