package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/atotto/clipboard"

	"github.com/ctxbridge/ctxbridge/pkg/config"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/discovery"
)

func sendCmd(args []string) {
	fs := flag.NewFlagSet("ctxbridge send", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Dispatch content to one fabric instance by id, for manual testing without
the browser extension.

Usage:
  ctxbridge send [flags] ID [FILE]

FILE may be "-" to read from stdin, or omitted entirely with --clipboard.

Flags:`)
		printFlags(fs)
	}
	fromClipboard := fs.Bool("clipboard", false, "dispatch whatever text is currently on the system clipboard")
	port := fs.Int("port", 0, "nominal discovery port (default: the configured port range base)")
	configPath := fs.String("config", "", "path to the JSON config file (default: ~/.ctxbridge/config.json)")
	timeout := fs.Duration("timeout", 5*time.Second, "discovery and dispatch timeout")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	rest := fs.Args()
	if len(rest) < 1 {
		fs.Usage()
		os.Exit(1)
	}
	targetID := rest[0]

	content, err := resolveContent(*fromClipboard, rest[1:])
	if err != nil {
		fatal(err)
	}

	homeDir, err := defaultHomeDir()
	if err != nil {
		fatal(err)
	}
	if err := config.Initialize(resolveConfigPath(*configPath, homeDir)); err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}

	fabricCfg := config.GetFabric()
	nominalPort := *port
	if nominalPort == 0 {
		nominalPort = fabricCfg.PortRangeBase
	}

	client := discovery.New(fabricCfg.PortRangeBase, fabricCfg.PortRangeWidth)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	instances, err := client.Discover(ctx, nominalPort)
	if err != nil {
		fatal(fmt.Errorf("discover instances: %w", err))
	}

	target, ok := findByID(instances, targetID)
	if !ok {
		fatal(fmt.Errorf("no verified instance with id %q", targetID))
	}

	if err := client.Dispatch(ctx, target, content); err != nil {
		fatal(fmt.Errorf("dispatch: %w", err))
	}

	fmt.Printf("ctxbridge: dispatched %d bytes to %s (%s)\n", len(content), target.ID, target.Name)
}

func resolveContent(fromClipboard bool, fileArgs []string) (string, error) {
	if fromClipboard {
		if len(fileArgs) > 0 {
			return "", fmt.Errorf("--clipboard and a FILE argument are mutually exclusive")
		}
		text, err := clipboard.ReadAll()
		if err != nil {
			return "", fmt.Errorf("read clipboard: %w", err)
		}
		return text, nil
	}

	if len(fileArgs) == 0 {
		return "", fmt.Errorf("expected FILE argument (or \"-\" for stdin, or --clipboard)")
	}

	path := fileArgs[0]
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func findByID(instances []discovery.Instance, id string) (discovery.Instance, bool) {
	for _, inst := range instances {
		if inst.ID == id {
			return inst, true
		}
	}
	return discovery.Instance{}, false
}
