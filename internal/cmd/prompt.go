package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const (
	envVaultPassword = "NARCAN_VAULT_PASSWORD"
	envAPIKey        = "NARCAN_API_KEY"
)

// #region prompter
// prompter reads answers from one input stream. A single buffered reader is
// shared so line prompts and the REPL never lose buffered input.
type prompter struct {
	in     io.Reader
	out    io.Writer
	reader *bufio.Reader
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: in, out: out, reader: bufio.NewReader(in)}
}

// line prints label and reads one line without its terminator.
func (p *prompter) line(label string) (string, error) {
	if label != "" {
		fmt.Fprint(p.out, label)
	}
	s, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimRight(s, "\r\n"), nil
}

// secret returns env's value if set; otherwise it prompts, without echo
// when the input is a terminal.
func (p *prompter) secret(label, env string) (string, error) {
	if env != "" {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	if f, ok := p.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.out, label)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	return p.line(label)
}

// newSecret asks twice unless env supplies the value.
func (p *prompter) newSecret(label, env string) (string, error) {
	if env != "" {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	first, err := p.secret(label, "")
	if err != nil {
		return "", err
	}
	second, err := p.secret("Repeat "+strings.ToLower(label[:1])+label[1:], "")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("entries do not match")
	}
	return first, nil
}

// #endregion prompter
