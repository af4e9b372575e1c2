// Package logging provides the leveled console logger shared by the vault
// store, the service layer and the CLI.
//
// Verbose enables Infof, Debug enables Debugf (and Infof). Warnf and Errorf
// always print to stderr. Colors follow fatih/color, which already honours
// NO_COLOR and non-terminal output. Nothing secret is ever handed to a Logger: callers
// log service names, sizes and KDF costs only.
package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
)

type Logger struct {
	Verbose bool
	Debug   bool

	// Out and Err default to os.Stdout and os.Stderr.
	Out io.Writer
	Err io.Writer
}

// Discard is a Logger that prints warnings and errors nowhere.
var Discard = Logger{Out: io.Discard, Err: io.Discard}

func (l Logger) Infof(msg string, args ...any) {
	if l.Verbose || l.Debug {
		l.write(l.stdout(), color.GreenString("[info] "), msg, args...)
	}
}

func (l Logger) Debugf(msg string, args ...any) {
	if l.Debug {
		l.write(l.stdout(), color.CyanString("[debug] "), msg, args...)
	}
}

func (l Logger) Warnf(msg string, args ...any) {
	l.write(l.stderr(), color.YellowString("[warn] "), msg, args...)
}

func (l Logger) Errorf(msg string, args ...any) {
	l.write(l.stderr(), color.RedString("[error] "), msg, args...)
}

func (l Logger) write(w io.Writer, prefix, msg string, args ...any) {
	fmt.Fprintf(w, prefix+msg+"\n", args...)
}

func (l Logger) stdout() io.Writer {
	if l.Out != nil {
		return l.Out
	}
	return os.Stdout
}

func (l Logger) stderr() io.Writer {
	if l.Err != nil {
		return l.Err
	}
	return os.Stderr
}
