package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/awnumar/memguard"
	"github.com/fatih/color"

	"github.com/arthurfary/passman/internal/service"
	"github.com/arthurfary/passman/internal/vault"
	"github.com/arthurfary/passman/krypto"
	"github.com/arthurfary/passman/store"
)

const cliVersion = "0.1.0"

// userError is printed as-is and exits with status 1.
type userError struct {
	msg string
}

func (e userError) Error() string { return e.msg }

func main() {
	// Wipe enclaves on Ctrl-C as well as on a normal exit.
	memguard.CatchInterrupt()

	code := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	memguard.Purge()
	os.Exit(code)
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := newApp(stdin, stdout, stderr)
	return a.execute(args)
}

func (a *app) execute(args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	return a.handleError(root.Execute())
}

// handleError prints err and returns the process exit status.
func (a *app) handleError(err error) int {
	if err == nil {
		return 0
	}

	var uerr userError
	switch {
	case errors.As(err, &uerr):
		fmt.Fprintln(a.stderr, color.RedString("Error:"), uerr.msg)
		return 1
	case !a.ran:
		// Argument and flag parsing failures never reach a command.
		fmt.Fprintln(a.stderr, color.RedString("Error:"), err)
		fmt.Fprintln(a.stderr, "Run 'passman --help' for usage.")
		return 1
	}

	if msg, ok := userMessage(err); ok {
		fmt.Fprintln(a.stderr, color.RedString("Error:"), msg)
		a.log.Debugf("%v", err)
		return 1
	}

	fmt.Fprintf(a.stderr, "unexpected error: %v\n", err)
	return 2
}

// userMessage maps the failures a user can cause or fix to a short message.
func userMessage(err error) (string, bool) {
	switch {
	case errors.Is(err, store.ErrInvalidService):
		return err.Error(), true
	case errors.Is(err, service.ErrExists),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, krypto.ErrAuthentication),
		errors.Is(err, vault.ErrFormat),
		errors.Is(err, vault.ErrEncoding),
		errors.Is(err, krypto.ErrKDF),
		errors.Is(err, service.ErrNoHistory):
		return service.Reason(err), true
	}
	return "", false
}
