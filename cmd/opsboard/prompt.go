package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// readNewPassword asks for a password twice with echo disabled. When stdin is
// not a terminal a single line is read instead, so the commands can be scripted.
func readNewPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return readPasswordLine(cmd.InOrStdin())
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, "New password: ")
	passBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(out) // newline after hidden input
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(out, "Confirm password: ")
	confirmBytes, err := term.ReadPassword(fd)
	fmt.Fprintln(out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	password := string(passBytes)
	if password != string(confirmBytes) {
		return "", errors.New("passwords do not match")
	}
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}

func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password cannot be empty")
	}
	return password, nil
}
