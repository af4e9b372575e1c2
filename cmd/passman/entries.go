package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/arthurfary/passman/internal/service"
	"github.com/arthurfary/passman/krypto"
)

// kdfFlags override the configured Argon2id costs for one write.
type kdfFlags struct {
	memory      uint32
	time        uint32
	parallelism uint32
	strict      bool
}

func (k *kdfFlags) register(cmd *cobra.Command) {
	cmd.Flags().Uint32Var(&k.memory, "memory", 0, "Argon2id memory cost in KiB")
	cmd.Flags().Uint32Var(&k.time, "time", 0, "Argon2id iterations")
	cmd.Flags().Uint32Var(&k.parallelism, "parallelism", 0, "Argon2id lanes")
	cmd.Flags().BoolVar(&k.strict, "strict", false, "refuse a weak master password instead of warning")
}

func (k *kdfFlags) apply(a *app, cmd *cobra.Command) error {
	if cmd.Flags().Changed("memory") {
		a.cfg.KDF.MemoryKiB = k.memory
	}
	if cmd.Flags().Changed("time") {
		a.cfg.KDF.Time = k.time
	}
	if cmd.Flags().Changed("parallelism") {
		a.cfg.KDF.Parallelism = k.parallelism
	}
	if err := krypto.ValidateArgon2Params(a.cfg.Argon2Params()); err != nil {
		return userError{msg: err.Error()}
	}
	return nil
}

func (a *app) newCmd() *cobra.Command {
	var kdf kdfFlags
	cmd := &cobra.Command{
		Use:   "new <service>",
		Short: "Create a random password for a service",
		Args:  exactArgs(1, "new <service>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kdf.apply(a, cmd); err != nil {
				return err
			}
			name := args[0]

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if svc.Has(name) {
				fmt.Fprintf(a.stderr, "Service '%s' already exists.\n", name)
				return nil
			}

			if err := a.unlock(svc, true, kdf.strict, name); err != nil {
				return err
			}

			stop := a.startSpinner("Encrypting...")
			pw, err := svc.Create(name)
			stop()
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stderr, "%s New password created for '%s'\n", color.GreenString("✓"), name)
			fmt.Fprintln(a.stdout, pw)
			return nil
		},
	}
	kdf.register(cmd)
	return cmd
}

func (a *app) putCmd() *cobra.Command {
	var (
		kdf       kdfFlags
		fromStdin bool
		force     bool
	)
	cmd := &cobra.Command{
		Use:   "put <service>",
		Short: "Store your own secret for a service",
		Args:  exactArgs(1, "put <service>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := kdf.apply(a, cmd); err != nil {
				return err
			}
			name := args[0]

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if !force && svc.Has(name) {
				return userError{msg: fmt.Sprintf("service '%s' already exists; use --force to replace it", name)}
			}

			secret, err := a.readSecret(name, fromStdin)
			if err != nil {
				return err
			}

			if err := a.unlock(svc, true, kdf.strict, name); err != nil {
				return err
			}

			stop := a.startSpinner("Encrypting...")
			err = svc.Put(name, secret, force)
			stop()
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stderr, "%s Stored secret for '%s'\n", color.GreenString("✓"), name)
			return nil
		},
	}
	kdf.register(cmd)
	cmd.Flags().BoolVar(&fromStdin, "stdin", false, "read the secret as one line from stdin")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "replace an existing entry")
	return cmd
}

func (a *app) readSecret(name string, fromStdin bool) (string, error) {
	if fromStdin {
		line, err := a.readLine()
		if err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return line, nil
	}

	secret, err := a.readPassword(fmt.Sprintf("Secret for %s: ", name))
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	defer krypto.Wipe(secret)
	again, err := a.readPassword("Retype secret: ")
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	defer krypto.Wipe(again)

	if string(secret) != string(again) {
		return "", userError{msg: "secrets do not match"}
	}
	return string(secret), nil
}

func (a *app) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [service]",
		Short: "Print the password for a service",
		Long:  "Print the password for a service. Without an argument, choose from the stored services.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			var name string
			if len(args) == 1 {
				name = args[0]
				if !svc.Has(name) {
					return userError{msg: fmt.Sprintf("service '%s' not found", name)}
				}
			} else {
				names, err := svc.List()
				if err != nil {
					return err
				}
				if len(names) == 0 {
					fmt.Fprintln(a.stderr, "No passwords stored yet. Use 'new' to create one.")
					return nil
				}
				if name, err = a.selectService(names); err != nil {
					return err
				}
			}

			if err := a.unlock(svc, false, false, name); err != nil {
				return err
			}

			stop := a.startSpinner("Decrypting...")
			pw, err := svc.Get(name)
			stop()
			if err != nil {
				return err
			}

			fmt.Fprintln(a.stdout, pw)
			return nil
		},
	}
}

// selectService prints a numbered list and reads the choice from stdin.
func (a *app) selectService(names []string) (string, error) {
	fmt.Fprintln(a.stderr, "Available services:")
	for i, name := range names {
		fmt.Fprintf(a.stderr, "  %d. %s\n", i+1, name)
	}
	fmt.Fprint(a.stderr, "Enter number: ")

	line, err := a.readLine()
	if err != nil {
		return "", fmt.Errorf("read selection: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		return "", userError{msg: "invalid number"}
	}
	if n < 1 || n > len(names) {
		return "", userError{msg: "number out of range"}
	}
	return names[n-1], nil
}

// unlock prompts for the master password and hands it to svc. New entries
// confirm the password and run the strength check first.
func (a *app) unlock(svc *service.Service, forWrite, strict bool, name string) error {
	pw, err := a.readMasterPassword(forWrite)
	if err != nil {
		return err
	}
	defer krypto.Wipe(pw)

	if forWrite {
		if err := a.checkStrength(pw, strict, name); err != nil {
			return err
		}
	}
	return svc.Unlock(pw)
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List stored services",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			names, err := svc.List()
			if err != nil {
				return err
			}

			fmt.Fprintf(a.stdout, "Stored services (%d):\n", len(names))
			if len(names) == 0 {
				fmt.Fprintln(a.stdout, "  (none)")
				return nil
			}
			for i, name := range names {
				fmt.Fprintf(a.stdout, "  %d. %s\n", i+1, name)
			}
			return nil
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <service>",
		Aliases: []string{"rm"},
		Short:   "Delete the entry for a service",
		Args:    exactArgs(1, "delete <service>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			if !yes {
				fmt.Fprintf(a.stderr, "Delete '%s'? This cannot be undone. [y/N]: ", name)
				answer, err := a.readLine()
				if err != nil {
					return fmt.Errorf("read confirmation: %w", err)
				}
				if ans := strings.ToLower(strings.TrimSpace(answer)); ans != "y" && ans != "yes" {
					fmt.Fprintln(a.stderr, "Aborted.")
					return nil
				}
			}

			if err := svc.Delete(name); err != nil {
				return err
			}
			fmt.Fprintf(a.stderr, "%s Deleted '%s'\n", color.GreenString("✓"), name)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

func (a *app) inspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <service>",
		Short: "Show an entry's format and KDF costs without decrypting it",
		Args:  exactArgs(1, "inspect <service>"),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			info, err := svc.Inspect(args[0])
			if err != nil {
				return err
			}

			bound := "no"
			if info.BindsHeader {
				bound = "yes"
			}
			fmt.Fprintf(a.stdout, "service:      %s\n", info.Service)
			fmt.Fprintf(a.stdout, "version:      %d\n", info.Version)
			fmt.Fprintf(a.stdout, "header bound: %s\n", bound)
			fmt.Fprintf(a.stdout, "kdf:          %s (m=%d KiB, t=%d, p=%d)\n",
				info.KDF, info.Costs.MemoryKiB, info.Costs.Time, info.Costs.Parallelism)
			fmt.Fprintf(a.stdout, "cipher:       %s\n", info.Cipher)
			fmt.Fprintf(a.stdout, "ciphertext:   %d bytes\n", info.BodySize)
			return nil
		},
	}
}

func (a *app) historyCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history [service]",
		Short: "Show recent vault operations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}

			svc, err := a.openService()
			if err != nil {
				return err
			}
			defer svc.Close()

			events, err := svc.History(name, limit)
			if errors.Is(err, service.ErrNoHistory) {
				return userError{msg: "history is disabled in the config"}
			}
			if err != nil {
				return err
			}

			if len(events) == 0 {
				fmt.Fprintln(a.stdout, "No history recorded.")
				return nil
			}
			for _, ev := range events {
				status := color.GreenString("ok")
				if !ev.OK {
					status = color.RedString("failed")
				}
				line := fmt.Sprintf("%s  %-8s  %-20s  %s",
					ev.CreatedAt.Local().Format("2006-01-02 15:04:05"), ev.Action, ev.Service, status)
				if ev.Detail != "" {
					line += " (" + ev.Detail + ")"
				}
				fmt.Fprintln(a.stdout, line)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show (0 for all)")
	return cmd
}
