//go:build linux

package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sys/unix"
)

// chatHistory holds the non-blank lines entered during this process.
var chatHistory []string

// readInteractiveLine reads one line from a terminal in raw mode with cursor
// movement, word editing and history. Piped input falls back to a plain
// buffered read.
func readInteractiveLine(prompt string) (string, error) {
	if !stdinIsTTY() {
		return readBufferedLine(prompt)
	}

	fd := int(os.Stdin.Fd())
	oldState, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return "", err
	}
	raw := *oldState
	raw.Lflag &^= unix.ICANON | unix.ECHO
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, &raw); err != nil {
		return "", err
	}
	defer func() {
		_ = unix.IoctlSetTermios(fd, unix.TCSETS, oldState)
	}()

	ed := &lineEditor{prompt: prompt, histPos: len(chatHistory)}
	fmt.Print(prompt)
	var buf [16]byte
	for {
		n, err := os.Stdin.Read(buf[:])
		if err != nil {
			return "", err
		}
		for _, b := range buf[:n] {
			line, done, err := ed.feed(b)
			if err != nil {
				return "", err
			}
			if done {
				if strings.TrimSpace(line) != "" {
					chatHistory = append(chatHistory, line)
				}
				return line, nil
			}
		}
	}
}

type lineEditor struct {
	prompt string
	line   []byte
	cursor int

	esc    int // 0 none, 1 after ESC, 2 inside CSI
	escBuf strings.Builder

	histPos      int
	histBrowsing bool
	histDraft    string
}

// feed processes one input byte. done reports a completed line; io.EOF is
// returned for Ctrl+C and for Ctrl+D on an empty line.
func (e *lineEditor) feed(b byte) (string, bool, error) {
	switch e.esc {
	case 1:
		e.esc = 0
		switch b {
		case '[':
			e.esc = 2
			e.escBuf.Reset()
		case 'b', 'B':
			e.wordLeft()
		case 'f', 'F':
			e.wordRight()
		case 127:
			e.deleteWordBack()
		}
		return "", false, nil
	case 2:
		e.escBuf.WriteByte(b)
		if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || b == '~' {
			e.csi(e.escBuf.String())
			e.esc = 0
		}
		return "", false, nil
	}

	switch b {
	case 27:
		e.esc = 1
	case '\r', '\n':
		fmt.Print("\r\n")
		return string(e.line), true, nil
	case 3: // Ctrl+C
		fmt.Print("^C\r\n")
		return "", false, io.EOF
	case 4: // Ctrl+D
		if len(e.line) == 0 {
			fmt.Print("\r\n")
			return "", false, io.EOF
		}
	case 127, 8:
		if e.cursor > 0 {
			e.line = append(e.line[:e.cursor-1], e.line[e.cursor:]...)
			e.cursor--
			e.redraw()
		}
	case 1: // Ctrl+A
		e.cursor = 0
		e.redraw()
	case 5: // Ctrl+E
		e.cursor = len(e.line)
		e.redraw()
	case 23: // Ctrl+W
		e.deleteWordBack()
	default:
		if b >= 32 {
			e.line = append(e.line, 0)
			copy(e.line[e.cursor+1:], e.line[e.cursor:])
			e.line[e.cursor] = b
			e.cursor++
			e.redraw()
		}
	}
	return "", false, nil
}

func (e *lineEditor) csi(seq string) {
	switch seq {
	case "A":
		e.historyUp()
	case "B":
		e.historyDown()
	case "D":
		if e.cursor > 0 {
			e.cursor--
			e.redraw()
		}
	case "C":
		if e.cursor < len(e.line) {
			e.cursor++
			e.redraw()
		}
	case "H":
		e.cursor = 0
		e.redraw()
	case "F":
		e.cursor = len(e.line)
		e.redraw()
	case "3~":
		if e.cursor < len(e.line) {
			e.line = append(e.line[:e.cursor], e.line[e.cursor+1:]...)
			e.redraw()
		}
	case "1;5D", "5D":
		e.wordLeft()
	case "1;5C", "5C":
		e.wordRight()
	case "3;5~":
		e.deleteWordForward()
	}
}

func (e *lineEditor) historyUp() {
	if len(chatHistory) == 0 {
		return
	}
	if !e.histBrowsing {
		e.histDraft = string(e.line)
		e.histBrowsing = true
		e.histPos = len(chatHistory)
	}
	if e.histPos > 0 {
		e.histPos--
		e.setLine(chatHistory[e.histPos])
	}
}

func (e *lineEditor) historyDown() {
	if !e.histBrowsing {
		return
	}
	if e.histPos < len(chatHistory)-1 {
		e.histPos++
		e.setLine(chatHistory[e.histPos])
		return
	}
	e.histPos = len(chatHistory)
	e.histBrowsing = false
	e.setLine(e.histDraft)
}

func (e *lineEditor) setLine(s string) {
	e.line = append(e.line[:0], s...)
	e.cursor = len(e.line)
	e.redraw()
}

func (e *lineEditor) redraw() {
	fmt.Printf("\r%s%s\x1b[K", e.prompt, string(e.line))
	if e.cursor < len(e.line) {
		fmt.Printf("\r%s%s", e.prompt, string(e.line[:e.cursor]))
	}
}

func isBlank(b byte) bool { return b == ' ' || b == '\t' }

// wordStart returns the index of the start of the word before i.
func (e *lineEditor) wordStart(i int) int {
	for i > 0 && isBlank(e.line[i-1]) {
		i--
	}
	for i > 0 && !isBlank(e.line[i-1]) {
		i--
	}
	return i
}

// wordEnd returns the index just past the word at or after i.
func (e *lineEditor) wordEnd(i int) int {
	for i < len(e.line) && isBlank(e.line[i]) {
		i++
	}
	for i < len(e.line) && !isBlank(e.line[i]) {
		i++
	}
	return i
}

func (e *lineEditor) wordLeft() {
	if e.cursor == 0 {
		return
	}
	e.cursor = e.wordStart(e.cursor)
	e.redraw()
}

func (e *lineEditor) wordRight() {
	if e.cursor >= len(e.line) {
		return
	}
	e.cursor = e.wordEnd(e.cursor)
	e.redraw()
}

func (e *lineEditor) deleteWordBack() {
	if e.cursor == 0 {
		return
	}
	start := e.wordStart(e.cursor)
	e.line = append(e.line[:start], e.line[e.cursor:]...)
	e.cursor = start
	e.redraw()
}

func (e *lineEditor) deleteWordForward() {
	if e.cursor >= len(e.line) {
		return
	}
	end := e.wordEnd(e.cursor)
	e.line = append(e.line[:e.cursor], e.line[end:]...)
	e.redraw()
}
