// Package bridge runs the local agent: it resolves projects, obtains a
// credential, pushes startup snapshots, then keeps the watchers, the
// sender, and the command channel running until shutdown.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"specsync/internal/bridge/channel"
	"specsync/internal/bridge/client"
	"specsync/internal/bridge/exec"
	"specsync/internal/bridge/send"
	"specsync/internal/bridge/specfile"
	"specsync/internal/bridge/state"
	"specsync/internal/bridge/watch"
	"specsync/internal/wire"
)

// heartbeatInterval paces the HTTP heartbeat event that refreshes the
// machine's last-seen timestamp when nothing else changes.
const heartbeatInterval = time.Minute

// Options are the CLI inputs. Values given here override the persisted
// config and are written back to it.
type Options struct {
	ServerURL     string
	APIKey        string
	Label         string
	ProjectPaths  []string
	AllowInsecure bool
	StateDir      string
	Version       string
}

// Run starts the bridge and blocks until ctx is cancelled. Startup fails
// only on unusable configuration: no server URL, a project path that does
// not resolve, or plaintext HTTP to a remote host without AllowInsecure.
func Run(ctx context.Context, opts Options) error {
	stateDir := opts.StateDir
	if stateDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("resolve state dir: %w", err)
		}
		stateDir = filepath.Join(home, ".specsync")
	}

	cfg, err := state.LoadHandle(stateDir)
	if err != nil {
		return err
	}
	if err := cfg.Update(func(c *state.Config) {
		if opts.ServerURL != "" {
			c.ServerURL = opts.ServerURL
		}
		if opts.APIKey != "" {
			c.APIKey = opts.APIKey
		}
		if len(opts.ProjectPaths) > 0 {
			c.Projects = append([]string(nil), opts.ProjectPaths...)
		}
	}); err != nil {
		return err
	}
	if err := cfg.EnsureIdentity(opts.Label); err != nil {
		return err
	}

	snap := cfg.Snapshot()
	if snap.ServerURL == "" {
		return errors.New("no server URL configured (use --server-url)")
	}
	if client.RequiresTLS(snap.ServerURL) && !opts.AllowInsecure {
		return fmt.Errorf("refusing plaintext HTTP to %s (use --allow-insecure to override)", snap.ServerURL)
	}
	if len(snap.Projects) == 0 {
		return errors.New("no projects configured (use --project)")
	}
	projects := make([]state.ProjectRef, 0, len(snap.Projects))
	for _, path := range snap.Projects {
		ref, err := state.ResolveProject(path)
		if err != nil {
			return err
		}
		projects = append(projects, ref)
	}

	api := client.New(snap.ServerURL, func() (string, string) {
		c := cfg.Snapshot()
		return c.APIKey, c.AccessToken
	})
	if err := ensureCredential(ctx, api, cfg); err != nil {
		return err
	}

	queue, err := state.OpenQueue(stateDir)
	if err != nil {
		return err
	}
	audit := state.NewAuditLog(stateDir)
	label := func() string { return cfg.Snapshot().MachineLabel }
	machineID := snap.MachineID

	events := make(chan state.Item, 256)
	executor := exec.New(projects, cfg, audit, events)
	sender := send.New(api, queue, machineID, label)
	runner := channel.New(api, executor, machineID, opts.Version, label, queue.Len)

	// Snapshots go out first so server state is anchored to disk before
	// any incremental event.
	for _, p := range projects {
		specs, err := specfile.ListSpecs(p.Path)
		if err != nil {
			return fmt.Errorf("snapshot %s: %w", p.Name, err)
		}
		events <- state.Item{
			ProjectID:   p.ID,
			ProjectName: p.Name,
			Event:       wire.Event{Type: wire.EventSnapshot, Specs: specs},
		}
		log.Printf("bridge: project %s (%s): %d specs", p.Name, p.ID, len(specs))
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		sender.Run(ctx, events)
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		runner.Run(ctx)
	}()
	for _, p := range projects {
		w := watch.New(p, events)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				log.Printf("bridge: watcher stopped: %v", err)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		heartbeats(ctx, events, projects[0])
	}()

	log.Printf("bridge: running as %s (%s), state in %s", label(), machineID, stateDir)
	<-ctx.Done()
	wg.Wait()
	return nil
}

// heartbeats emits a periodic heartbeat event so last-seen stays fresh on
// quiet machines. One project is enough; the refresh is machine-wide.
func heartbeats(ctx context.Context, out chan<- state.Item, p state.ProjectRef) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			item := state.Item{ProjectID: p.ID, ProjectName: p.Name, Event: wire.Event{Type: wire.EventHeartbeat}}
			select {
			case out <- item:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ensureCredential runs the device-authorization flow when neither an API
// key nor a stored token is available.
func ensureCredential(ctx context.Context, api *client.Client, cfg *state.Handle) error {
	if _, _, ok := api.AuthHeader(); ok {
		return nil
	}
	grant, err := api.RequestDeviceCode(ctx)
	if err != nil {
		return fmt.Errorf("request device code: %w", err)
	}
	uri := grant.VerificationURI
	if uri == "" {
		uri = "the server"
	}
	log.Printf("bridge: authorize this machine: enter code %s at %s", grant.UserCode, uri)

	interval := time.Duration(grant.Interval) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		token, err := api.ExchangeToken(ctx, grant.DeviceCode)
		if errors.Is(err, client.ErrAuthorizationPending) {
			continue
		}
		if err != nil {
			return fmt.Errorf("token exchange: %w", err)
		}
		if err := cfg.SetToken(token); err != nil {
			return err
		}
		log.Printf("bridge: machine authorized")
		return nil
	}
}
