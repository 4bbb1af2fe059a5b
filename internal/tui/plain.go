package tui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// PlainIO implements IO with plain terminal output. Used when the terminal
// does not support raw mode or the full-screen interface is disabled.
type PlainIO struct {
	scanner *bufio.Scanner
	tokens  int
}

func NewPlainIO() *PlainIO {
	s := bufio.NewScanner(os.Stdin)
	s.Buffer(make([]byte, 1024*1024), 1024*1024)
	return &PlainIO{scanner: s}
}

func (p *PlainIO) ReadInput() (string, error) {
	fmt.Print("\n> ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

func (p *PlainIO) UserMessage(_ string) {
	// The user already sees what they typed.
}

func (p *PlainIO) ThinkingStart() {
	fmt.Println()
}

func (p *PlainIO) TextDelta(delta string) {
	fmt.Print(delta)
}

func (p *PlainIO) TextDone(_ string) {
	// Text was already rendered incrementally.
}

func (p *PlainIO) ToolStart(_, name, _ string) {
	fmt.Printf("\n%s\n  Executing %s...\n", strings.Repeat("-", 30), name)
}

func (p *PlainIO) ToolDone(_, _, result string, isErr bool) {
	if isErr {
		fmt.Printf("    Error: %s\n", truncateStr(result, 80))
	} else {
		preview := truncateStr(strings.ReplaceAll(result, "\n", " "), 60)
		fmt.Printf("    Result: %s\n", preview)
	}
}

func (p *PlainIO) SystemMessage(text string) {
	fmt.Println(text)
}

func (p *PlainIO) Error(msg string) {
	fmt.Fprintf(os.Stderr, "error: %s\n", msg)
}

func (p *PlainIO) SetTokens(n int) {
	p.tokens = n
}
