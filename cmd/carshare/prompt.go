package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readSecret reads without echo on a terminal and falls back to a plain
// line when stdin is piped.
func readSecret(in *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprintf(out, "%s: ", label)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return string(b), nil
	}

	return readLine(in)
}

func readLine(in *bufio.Reader) (string, error) {
	line, err := in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// ask prompts for value only when it was not supplied as a flag.
func ask(in *bufio.Reader, out io.Writer, label, value string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return value, nil
	}
	fmt.Fprintf(out, "%s: ", label)
	return readLine(in)
}
