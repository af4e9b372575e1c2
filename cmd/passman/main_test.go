package main

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/arthurfary/passman/internal/config"
	"github.com/arthurfary/passman/krypto"
)

const master = "Tr0ub4dor&3-horse-battery-staple"

var cheapFlags = []string{"--memory", "64", "--time", "1", "--parallelism", "1"}

type cli struct {
	t       *testing.T
	dir     string
	cfgPath string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	t.Setenv(config.EnvStorageDir, "")
	root := t.TempDir()
	return &cli{
		t:       t,
		dir:     filepath.Join(root, "passwords"),
		cfgPath: filepath.Join(root, "config.toml"),
	}
}

type result struct {
	stdout string
	stderr string
	code   int
}

// run executes one passman invocation. passwords answers hidden prompts in
// order; stdin feeds line reads.
func (c *cli) run(stdin string, passwords []string, args ...string) result {
	c.t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(strings.NewReader(stdin), &out, &errOut)
	a.readPassword = func(string) ([]byte, error) {
		if len(passwords) == 0 {
			return nil, io.ErrUnexpectedEOF
		}
		pw := passwords[0]
		passwords = passwords[1:]
		return []byte(pw), nil
	}

	full := append(args, "--config", c.cfgPath, "--dir", c.dir)
	code := a.execute(full)
	return result{stdout: out.String(), stderr: errOut.String(), code: code}
}

func (c *cli) create(service string) string {
	c.t.Helper()
	res := c.run("", []string{master, master}, append([]string{"new", service}, cheapFlags...)...)
	if res.code != 0 {
		c.t.Fatalf("new %s exited %d: %s", service, res.code, res.stderr)
	}
	return strings.TrimSpace(res.stdout)
}

func TestNewGetListInspect(t *testing.T) {
	c := newCLI(t)

	pw := c.create("github")
	if len(pw) != 20 {
		t.Fatalf("expected a 20 character password, got %q", pw)
	}

	got := c.run("", []string{master}, "get", "github")
	if got.code != 0 {
		t.Fatalf("get exited %d: %s", got.code, got.stderr)
	}
	if strings.TrimSpace(got.stdout) != pw {
		t.Fatalf("expected %q, got %q", pw, got.stdout)
	}

	list := c.run("", nil, "ls")
	if list.code != 0 || !strings.Contains(list.stdout, "Stored services (1):") || !strings.Contains(list.stdout, "1. github") {
		t.Fatalf("unexpected list output %q (code %d)", list.stdout, list.code)
	}

	inspect := c.run("", nil, "inspect", "github")
	if inspect.code != 0 {
		t.Fatalf("inspect exited %d: %s", inspect.code, inspect.stderr)
	}
	for _, want := range []string{"version:      2", "m=64 KiB, t=1, p=1", "chacha20-poly1305"} {
		if !strings.Contains(inspect.stdout, want) {
			t.Fatalf("inspect output missing %q:\n%s", want, inspect.stdout)
		}
	}
}

func TestNewKeepsExistingEntry(t *testing.T) {
	c := newCLI(t)
	pw := c.create("github")

	// No passwords queued: the command must not prompt.
	res := c.run("", nil, "new", "github")
	if res.code != 0 || !strings.Contains(res.stderr, "already exists") {
		t.Fatalf("unexpected result %+v", res)
	}

	got := c.run("", []string{master}, "get", "github")
	if strings.TrimSpace(got.stdout) != pw {
		t.Fatalf("existing password changed to %q", got.stdout)
	}
}

func TestGetFailures(t *testing.T) {
	c := newCLI(t)
	c.create("github")

	wrong := c.run("", []string{"not the password"}, "get", "github")
	if wrong.code != 1 || !strings.Contains(wrong.stderr, "wrong master password or corrupted entry") {
		t.Fatalf("unexpected wrong-password result %+v", wrong)
	}
	if wrong.stdout != "" {
		t.Fatalf("nothing should be printed to stdout, got %q", wrong.stdout)
	}

	missing := c.run("", nil, "get", "gitlab")
	if missing.code != 1 || !strings.Contains(missing.stderr, "not found") {
		t.Fatalf("unexpected missing-service result %+v", missing)
	}

	corrupt := filepath.Join(c.dir, "broken")
	if err := os.WriteFile(corrupt, []byte("not a passman file"), 0o600); err != nil {
		t.Fatalf("write corrupt entry: %v", err)
	}
	bad := c.run("", []string{master}, "get", "broken")
	if bad.code != 1 || !strings.Contains(bad.stderr, "invalid password file format") {
		t.Fatalf("unexpected corrupt-entry result %+v", bad)
	}
}

func TestMasterPasswordPrompts(t *testing.T) {
	c := newCLI(t)

	mismatch := c.run("", []string{master, master + "x"}, append([]string{"new", "github"}, cheapFlags...)...)
	if mismatch.code != 1 || !strings.Contains(mismatch.stderr, "do not match") {
		t.Fatalf("unexpected mismatch result %+v", mismatch)
	}

	empty := c.run("", []string{""}, append([]string{"new", "github"}, cheapFlags...)...)
	if empty.code != 1 || !strings.Contains(empty.stderr, "cannot be empty") {
		t.Fatalf("unexpected empty result %+v", empty)
	}

	weak := c.run("", []string{"abc", "abc"}, append([]string{"new", "github", "--strict"}, cheapFlags...)...)
	if weak.code != 1 || !strings.Contains(weak.stderr, "too weak") {
		t.Fatalf("unexpected strict result %+v", weak)
	}

	lenient := c.run("", []string{"abc", "abc"}, append([]string{"new", "github"}, cheapFlags...)...)
	if lenient.code != 0 || !strings.Contains(lenient.stderr, "[warn]") {
		t.Fatalf("expected a warning and success, got %+v", lenient)
	}
}

func TestPutFromStdinAndSelect(t *testing.T) {
	c := newCLI(t)

	put := c.run("correct horse\n", []string{master, master}, append([]string{"put", "mail", "--stdin"}, cheapFlags...)...)
	if put.code != 0 {
		t.Fatalf("put exited %d: %s", put.code, put.stderr)
	}

	again := c.run("other\n", []string{master, master}, append([]string{"put", "mail", "--stdin"}, cheapFlags...)...)
	if again.code != 1 || !strings.Contains(again.stderr, "--force") {
		t.Fatalf("expected put without --force to refuse, got %+v", again)
	}

	c.create("bank")
	got := c.run("2\n", []string{master}, "get")
	if got.code != 0 {
		t.Fatalf("get exited %d: %s", got.code, got.stderr)
	}
	if strings.TrimSpace(got.stdout) != "correct horse" {
		t.Fatalf("expected the mail secret, got %q", got.stdout)
	}

	outOfRange := c.run("9\n", nil, "get")
	if outOfRange.code != 1 || !strings.Contains(outOfRange.stderr, "out of range") {
		t.Fatalf("unexpected result %+v", outOfRange)
	}
}

func TestPutInteractiveForce(t *testing.T) {
	c := newCLI(t)
	c.create("mail")

	res := c.run("", []string{"s3cret", "s3cret", master, master}, append([]string{"put", "mail", "--force"}, cheapFlags...)...)
	if res.code != 0 {
		t.Fatalf("put exited %d: %s", res.code, res.stderr)
	}
	got := c.run("", []string{master}, "get", "mail")
	if strings.TrimSpace(got.stdout) != "s3cret" {
		t.Fatalf("expected replaced secret, got %q", got.stdout)
	}
}

func TestDeleteConfirmation(t *testing.T) {
	c := newCLI(t)
	c.create("github")

	abort := c.run("n\n", nil, "rm", "github")
	if abort.code != 0 || !strings.Contains(abort.stderr, "Aborted") {
		t.Fatalf("unexpected abort result %+v", abort)
	}
	if _, err := os.Stat(filepath.Join(c.dir, "github")); err != nil {
		t.Fatalf("entry should still exist: %v", err)
	}

	del := c.run("", nil, "delete", "github", "--yes")
	if del.code != 0 {
		t.Fatalf("delete exited %d: %s", del.code, del.stderr)
	}
	if _, err := os.Stat(filepath.Join(c.dir, "github")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("entry should be gone, stat err = %v", err)
	}

	again := c.run("", nil, "delete", "github", "-y")
	if again.code != 1 || !strings.Contains(again.stderr, "not found") {
		t.Fatalf("unexpected result deleting a missing entry %+v", again)
	}
}

func TestHistory(t *testing.T) {
	c := newCLI(t)
	c.create("github")
	c.run("", []string{"wrong"}, "get", "github")

	res := c.run("", nil, "history", "github")
	if res.code != 0 {
		t.Fatalf("history exited %d: %s", res.code, res.stderr)
	}
	lines := strings.Split(strings.TrimSpace(res.stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 events, got:\n%s", res.stdout)
	}
	if !strings.Contains(lines[0], "retrieve") || !strings.Contains(lines[0], "failed") {
		t.Fatalf("expected the failed retrieve first, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "create") {
		t.Fatalf("expected the create last, got %q", lines[1])
	}
}

func TestConfigSaveAndShow(t *testing.T) {
	c := newCLI(t)

	save := c.run("", nil, "config", "save")
	if save.code != 0 {
		t.Fatalf("config save exited %d: %s", save.code, save.stderr)
	}
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.StorageDir != c.dir {
		t.Fatalf("expected saved storage_dir %q, got %q", c.dir, cfg.StorageDir)
	}

	show := c.run("", nil, "config", "show")
	if show.code != 0 || !strings.Contains(show.stdout, "storage_dir") || !strings.Contains(show.stdout, "[kdf]") {
		t.Fatalf("unexpected config show output %+v", show)
	}

	if err := os.WriteFile(c.cfgPath, []byte("password_length = 2\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	invalid := c.run("", nil, "list")
	if invalid.code != 1 || !strings.Contains(invalid.stderr, "password_length") {
		t.Fatalf("expected invalid config to be a user error, got %+v", invalid)
	}
}

func TestUsageErrors(t *testing.T) {
	c := newCLI(t)

	for _, args := range [][]string{
		{"frobnicate"},
		{"get", "a", "b"},
		{"new"},
		{"list", "--nope"},
		{"new", "x", "--memory", "4"},
		{"new", ".hidden"},
	} {
		res := c.run("", []string{master, master}, args...)
		if res.code != 1 {
			t.Errorf("%v: expected exit 1, got %d (%s)", args, res.code, res.stderr)
		}
	}
}

func TestVersion(t *testing.T) {
	c := newCLI(t)
	res := c.run("", nil, "version")
	if res.code != 0 || strings.TrimSpace(res.stdout) != cliVersion {
		t.Fatalf("unexpected version output %+v", res)
	}
}

func TestHandleError(t *testing.T) {
	a := newApp(strings.NewReader(""), io.Discard, io.Discard)
	a.ran = true

	cases := []struct {
		err  error
		want int
	}{
		{nil, 0},
		{userError{msg: "bad input"}, 1},
		{krypto.ErrAuthentication, 1},
		{errors.New("disk on fire"), 2},
	}
	for _, tc := range cases {
		if got := a.handleError(tc.err); got != tc.want {
			t.Errorf("handleError(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
