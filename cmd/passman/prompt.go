package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/arthurfary/passman/auth"
	"github.com/arthurfary/passman/krypto"
)

// promptPassword reads hidden input from the terminal, or one line from
// stdin when it is not a terminal.
func (a *app) promptPassword(prompt string) ([]byte, error) {
	fmt.Fprint(a.stderr, prompt)
	if f, ok := a.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(a.stderr)
		if err != nil {
			return nil, err
		}
		return pw, nil
	}

	line, err := a.readLine()
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}

// readLine returns the next stdin line without its line ending.
func (a *app) readLine() (string, error) {
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", io.ErrUnexpectedEOF
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readMasterPassword prompts once, or twice when confirm is set.
func (a *app) readMasterPassword(confirm bool) ([]byte, error) {
	pw, err := a.readPassword("Master password: ")
	if err != nil {
		return nil, fmt.Errorf("read master password: %w", err)
	}
	if len(pw) == 0 {
		return nil, userError{msg: "master password cannot be empty"}
	}
	if !confirm {
		return pw, nil
	}

	again, err := a.readPassword("Retype master password: ")
	if err != nil {
		krypto.Wipe(pw)
		return nil, fmt.Errorf("read confirmation password: %w", err)
	}
	defer krypto.Wipe(again)

	if !bytes.Equal(pw, again) {
		krypto.Wipe(pw)
		return nil, userError{msg: "master passwords do not match"}
	}
	return pw, nil
}

// checkStrength prints policy warnings for a master password about to seal
// a new entry. With strict set a weak password is refused.
func (a *app) checkStrength(pw []byte, strict bool, service string) error {
	warnings, err := auth.CheckMasterPassword(string(pw), strict, service)
	for _, w := range warnings {
		a.log.Warnf("%s", w)
	}
	if err != nil {
		return userError{msg: err.Error()}
	}
	return nil
}
