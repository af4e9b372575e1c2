package main

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/arthurfary/passman/internal/config"
	"github.com/arthurfary/passman/internal/logging"
	"github.com/arthurfary/passman/internal/service"
)

// app carries the flag values and I/O of one invocation.
type app struct {
	stdin  io.Reader
	in     *bufio.Reader
	stdout io.Writer
	stderr io.Writer

	// readPassword prompts for hidden input. Tests replace it.
	readPassword func(prompt string) ([]byte, error)

	configPath string
	dir        string
	verbose    bool
	debug      bool

	cfg config.Config
	log logging.Logger

	// ran is set once flag parsing succeeded and a command started.
	ran bool
}

func newApp(stdin io.Reader, stdout, stderr io.Writer) *app {
	a := &app{
		stdin:  stdin,
		in:     bufio.NewReader(stdin),
		stdout: stdout,
		stderr: stderr,
		log:    logging.Discard,
	}
	a.readPassword = a.promptPassword
	return a
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "passman",
		Short: "passman - an encrypted, file-per-service password store.",
		Long: `passman keeps one encrypted file per service in a local directory.

Each entry is sealed with ChaCha20-Poly1305 under a key derived from your
master password with Argon2id, using a fresh salt and nonce on every write.

Examples:
  passman new github
  passman get github
  passman get              # choose from a list
  passman list`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.ran = true
			a.log = logging.Logger{
				Verbose: a.verbose,
				Debug:   a.debug,
				Out:     a.stderr,
				Err:     a.stderr,
			}
			return a.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default "+defaultConfigHint()+")")
	flags.StringVar(&a.dir, "dir", "", "storage directory (overrides config and "+config.EnvStorageDir+")")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose output")
	flags.BoolVarP(&a.debug, "debug", "d", false, "enable debug output")

	root.AddCommand(
		a.newCmd(),
		a.putCmd(),
		a.getCmd(),
		a.listCmd(),
		a.deleteCmd(),
		a.inspectCmd(),
		a.historyCmd(),
		a.configCmd(),
		a.versionCmd(),
	)
	return root
}

func defaultConfigHint() string {
	path, err := config.DefaultPath()
	if err != nil {
		return "none"
	}
	return path
}

func (a *app) resolvedConfigPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	path, err := config.DefaultPath()
	if err != nil {
		a.log.Debugf("no default config location: %v", err)
		return ""
	}
	return path
}

func (a *app) loadConfig() error {
	path := a.resolvedConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return userError{msg: err.Error()}
	}
	if a.dir != "" {
		cfg.StorageDir = a.dir
	}
	a.cfg = cfg
	a.log.Debugf("config %q, storage %s", path, cfg.StorageDir)
	return nil
}

// openService opens the store without a master password; commands that
// decrypt or encrypt call unlock afterwards.
func (a *app) openService() (*service.Service, error) {
	svc, err := service.OpenLocked(a.cfg, a.log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return svc, nil
}

// startSpinner shows progress on stderr while Argon2 runs. The returned
// func stops it. Nothing is drawn when stderr is not a terminal.
func (a *app) startSpinner(msg string) func() {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(a.stderr))
	s.Suffix = " " + msg
	s.Start()
	return s.Stop
}

func (a *app) versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the passman version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(a.stdout, cliVersion)
		},
	}
}

// exactArgs is cobra.ExactArgs with a userError.
func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return userError{msg: "usage: passman " + usage}
		}
		return nil
	}
}
