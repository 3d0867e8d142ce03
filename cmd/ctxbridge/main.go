// Command ctxbridge runs and inspects instances of the local dispatch
// fabric: one OS process per workspace, each exposing a loopback HTTP
// surface that a browser extension can discover and send context to.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
)

const version = "0.1.0"

const usage = `ctxbridge — local dispatch fabric for companion editor instances

Usage:
  ctxbridge run [flags]              Start a fabric instance and block
  ctxbridge list [flags]             List verified-live instances
  ctxbridge send [flags] ID [FILE]   Dispatch content to an instance by id
  ctxbridge monitor [flags]          Live dashboard of discovered instances

Running with no subcommand prints this help.

Examples:
  ctxbridge run --workspace .
  ctxbridge run --name backend --api-key sk-... --model gpt-4o-mini
  ctxbridge list
  ctxbridge send 3f2a9c01-482-a1b2c3d4 notes.md
  cat notes.md | ctxbridge send 3f2a9c01-482-a1b2c3d4 -
  ctxbridge send --clipboard 3f2a9c01-482-a1b2c3d4
  ctxbridge monitor

Run "ctxbridge COMMAND -h" for command-specific flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stderr, usage)
	case "-v", "-version", "--version", "version":
		fmt.Printf("ctxbridge v%s\n", version)
	case "run":
		runCmd(os.Args[2:])
	case "list":
		listCmd(os.Args[2:])
	case "send":
		sendCmd(os.Args[2:])
	case "monitor":
		monitorCmd(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "ctxbridge: unknown command %q\n\n", os.Args[1])
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "ctxbridge: %v\n", err)
	os.Exit(1)
}

// defaultHomeDir returns ~/.ctxbridge, creating it if necessary, the root
// both the registry store and the config file live under.
func defaultHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".ctxbridge")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}
	return dir, nil
}

// resolveConfigPath returns flagValue if set, or homeDir/config.json
// otherwise — the precedence every subcommand uses for locating the JSON
// config file.
func resolveConfigPath(flagValue, homeDir string) string {
	if flagValue != "" {
		return flagValue
	}
	return filepath.Join(homeDir, "config.json")
}

// printFlags formats flag defaults with -- prefix, matching the rest of
// this command's usage text.
func printFlags(fs *flag.FlagSet) {
	fs.VisitAll(func(f *flag.Flag) {
		fmt.Fprintf(os.Stderr, "  --%-20s %s\n", f.Name, f.Usage)
	})
}
