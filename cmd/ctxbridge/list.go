package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ctxbridge/ctxbridge/pkg/config"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/discovery"
)

func listCmd(args []string) {
	fs := flag.NewFlagSet("ctxbridge list", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `List the fabric instances currently verified live.

Usage:
  ctxbridge list [flags]

Flags:`)
		printFlags(fs)
	}
	port := fs.Int("port", 0, "nominal discovery port (default: the configured port range base)")
	configPath := fs.String("config", "", "path to the JSON config file (default: ~/.ctxbridge/config.json)")
	timeout := fs.Duration("timeout", 3*time.Second, "discovery timeout")
	if err := fs.Parse(args); err != nil {
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

	if len(instances) == 0 {
		fmt.Println("No instances found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPORT\tPID\tWORKSPACE\tLAST HEARTBEAT")
	for _, inst := range instances {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			inst.ID, inst.Name, inst.Port, inst.PID, inst.WorkspacePath, formatHeartbeat(inst.LastHeartbeat))
	}
	w.Flush()
}

func formatHeartbeat(lastHeartbeatMS int64) string {
	t := time.UnixMilli(lastHeartbeatMS)
	return time.Since(t).Round(time.Second).String() + " ago"
}
