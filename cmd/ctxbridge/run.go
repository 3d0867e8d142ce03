package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ctxbridge/ctxbridge/pkg/collaborator"
	"github.com/ctxbridge/ctxbridge/pkg/config"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/fabriperr"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/httpsurface"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/lifecycle"
	"github.com/ctxbridge/ctxbridge/pkg/fabric/registry"
	"github.com/ctxbridge/ctxbridge/pkg/workspaceid"
)

const defaultCollaboratorModel = collaborator.DefaultModel

func runCmd(args []string) {
	fs := flag.NewFlagSet("ctxbridge run", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, `Start a fabric instance rooted at a workspace directory and block until
interrupted. The instance registers itself, answers /health and
/instances, and forwards anything dispatched to it through the
configured downstream collaborator.

Usage:
  ctxbridge run [flags]

Flags:`)
		printFlags(fs)
	}

	workspace := fs.String("workspace", ".", "workspace directory this instance represents")
	name := fs.String("name", "", "human-readable instance name (default: workspace directory base name)")
	port := fs.Int("port", 0, "preferred loopback port (0: let the Port Binder pick one in range)")
	configPath := fs.String("config", "", "path to the JSON config file (default: ~/.ctxbridge/config.json)")
	fabricYAML := fs.String("fabric-yaml", "", "optional YAML file overriding fabric tuning (port range, heartbeat, stale threshold)")
	apiKey := fs.String("api-key", "", "downstream collaborator API key (or set OPENAI_API_KEY)")
	baseURL := fs.String("base-url", "", "downstream collaborator base URL (or set OPENAI_BASE_URL)")
	model := fs.String("model", "", "downstream collaborator model")
	paused := fs.Bool("paused", false, "start with delivery paused; the instance stays discoverable but answers send with 503")
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

	if err := config.GetFabric().Validate(); err != nil {
		fatal(fmt.Errorf("invalid fabric config: %w", err))
	}

	if *fabricYAML != "" {
		if err := applyFabricYAMLOverride(*fabricYAML); err != nil {
			fatal(err)
		}
	}

	canonicalWorkspace, err := workspaceid.Canonicalize(*workspace)
	if err != nil {
		fatal(fmt.Errorf("resolve workspace: %w", err))
	}

	resolvedName := *name
	if resolvedName == "" {
		resolvedName = filepath.Base(canonicalWorkspace)
	}

	client, err := config.BuildCollaborator(*model, *baseURL, *apiKey, defaultCollaboratorModel)
	if err != nil {
		fatal(err)
	}

	fabricCfg := config.GetFabric()
	store, err := registry.New(homeDir,
		time.Duration(fabricCfg.StaleThresholdMS)*time.Millisecond,
		time.Duration(fabricCfg.LockStaleTimeoutMS)*time.Millisecond)
	if err != nil {
		fatal(fmt.Errorf("open registry: %w", err))
	}

	inst, err := lifecycle.Start(lifecycle.Config{
		Name:              resolvedName,
		WorkspacePath:     canonicalWorkspace,
		PreferredPort:     *port,
		PortRangeBase:     fabricCfg.PortRangeBase,
		PortRangeWidth:    fabricCfg.PortRangeWidth,
		HeartbeatInterval: time.Duration(fabricCfg.HeartbeatIntervalMS) * time.Millisecond,
		MaxBodyBytes:      fabricCfg.MaxBodyBytes,
		AllowedOrigin:     config.IsOriginAllowed,
		Send:              sendFuncFor(client),
		Store:             store,
	})
	if err != nil {
		fatal(fmt.Errorf("start instance: %w", err))
	}

	if *paused {
		inst.Pause()
	}

	fmt.Printf("ctxbridge: instance %s listening on 127.0.0.1:%d (workspace %s, model %s)\n",
		inst.ID(), inst.Port(), canonicalWorkspace, client.Model())

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nctxbridge: shutting down...")
		cancel()
	}()
	<-ctx.Done()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	if err := inst.Stop(stopCtx); err != nil {
		fatal(fmt.Errorf("stop instance: %w", err))
	}
}

// applyFabricYAMLOverride reads a YAML file of fabric tuning overrides the
// way cmd/forge-headless reads its own YAML config, then applies it on top
// of whatever FabricSection.Validate already accepted from config.json.
func applyFabricYAMLOverride(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read fabric yaml: %w", err)
	}

	var overrides map[string]interface{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return fmt.Errorf("parse fabric yaml: %w", err)
	}

	fabric := config.GetFabric()
	if err := fabric.SetData(overrides); err != nil {
		return fmt.Errorf("apply fabric yaml: %w", err)
	}
	return fabric.Validate()
}

// sendFuncFor adapts a collaborator.Client into the HTTP Surface's
// SendFunc, distinguishing a transport-level failure (the downstream
// endpoint is unreachable) from an application-level one so the surface
// can answer 503 instead of 500 for the former.
func sendFuncFor(client *collaborator.Client) httpsurface.SendFunc {
	return func(ctx context.Context, content string) error {
		_, err := client.Deliver(ctx, content)
		if err == nil {
			return nil
		}
		if isDownstreamUnavailable(err) {
			return fabriperr.WrapDownstreamUnavailable(err)
		}
		return fmt.Errorf("deliver to collaborator: %w", err)
	}
}

// isDownstreamUnavailable reports whether err indicates the collaborator
// endpoint itself could not be reached, as opposed to reaching it and
// receiving an application-level failure.
func isDownstreamUnavailable(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr)
}
