// Command agent is the screencontrol remote-control host agent: it
// connects outbound to a control server, dispatches commands to the
// local filesystem/shell/system/machine tools, and exposes a loopback
// HTTP API for a co-resident GUI helper and installer.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"screencontrol-agent/internal/audit"
	"screencontrol-agent/internal/config"
	"screencontrol-agent/internal/credstore"
	"screencontrol-agent/internal/dispatcher"
	"screencontrol-agent/internal/filter"
	"screencontrol-agent/internal/guiproxy"
	"screencontrol-agent/internal/httpapi"
	"screencontrol-agent/internal/identity"
	"screencontrol-agent/internal/logging"
	"screencontrol-agent/internal/protocol"
	"screencontrol-agent/internal/shell"
	"screencontrol-agent/internal/singleton"
	"screencontrol-agent/internal/supervisor"
	"screencontrol-agent/internal/tools"
	"screencontrol-agent/internal/transport"
	"screencontrol-agent/internal/update"
)

// version is stamped at release build time via -ldflags; dev builds fall
// back to a timestamp so logs can still distinguish one run from another.
var version = fmt.Sprintf("dev-%d", time.Now().UTC().Unix())

func main() {
	var (
		configDir = pflag.StringP("config", "c", defaultStateDir(), "State/config directory")
		verbose   = pflag.BoolP("verbose", "v", false, "Log at debug level; to stdout instead of the log file unless log_path is set")
	)
	pflag.Parse()

	if err := run(*configDir, *verbose); err != nil {
		fmt.Fprintln(os.Stderr, "agent:", err)
		os.Exit(1)
	}
}

func run(stateDir string, verbose bool) error {
	cfgStore, err := config.NewStore(stateDir)
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	settings, err := cfgStore.LoadSettings()
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	connCfg, err := cfgStore.LoadConnection()
	if err != nil {
		return fmt.Errorf("load connection config: %w", err)
	}

	logPath := settings.LogPath
	if logPath == "" && !verbose {
		logPath = filepath.Join(stateDir, "agent.log")
	}
	log, err := logging.New(logPath, verbose)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}

	id, err := identity.Load(stateDir)
	if err != nil {
		return fmt.Errorf("load identity: %w", err)
	}

	agentInfo := singleton.Info{PID: os.Getpid(), AgentID: id.MachineID, StartedAt: time.Now().UTC().Format(time.RFC3339)}
	acquired, existing, err := singleton.Acquire(stateDir, agentInfo)
	if err != nil {
		return fmt.Errorf("acquire singleton lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("another agent instance is already running (pid %d)", existing.PID)
	}
	defer singleton.Release(stateDir, os.Getpid())

	ledger, err := audit.Open(filepath.Join(stateDir, "audit.db"))
	if err != nil {
		return fmt.Errorf("open audit ledger: %w", err)
	}
	defer ledger.Close()

	creds, err := credstore.New(stateDir)
	if err != nil {
		return fmt.Errorf("open credential store: %w", err)
	}

	shellFilter := filter.New(nil)
	fs := tools.FS{}
	sh := tools.Shell{Filter: shellFilter}
	sysInfo := tools.System{}
	machine := &tools.Machine{Credentials: creds}
	sessions := tools.ShellSessions{Manager: shell.New(logging.Component(log, "shell"), shellFilter)}

	disp := dispatcher.New(logging.Component(log, "dispatcher"))
	registerTools(disp, fs, sh, sysInfo, machine, sessions)
	disp.SetGuiProxy(guiproxy.New(fmt.Sprintf("http://127.0.0.1:%d", settings.GUIBridgePort)))

	fp := identity.Collect()
	reg := protocol.Registration{
		MachineID:    id.MachineID,
		MachineName:  fp.Hostname,
		OSType:       identity.PlatformTag(),
		OSVersion:    runtime.GOOS,
		Arch:         identity.ArchTag(),
		AgentVersion: version,
		AgentName:    connCfg.AgentName,
		LicenseUUID:  connCfg.EndpointUUID,
		CustomerID:   connCfg.CustomerID,
		Fingerprint: protocol.Fingerprint{
			Hostname:     fp.Hostname,
			CPUModel:     fp.CPUModel,
			MACAddresses: fp.MACAddresses,
		},
	}
	client := protocol.NewClient(logging.Component(log, "protocol"), transport.New(logging.Component(log, "transport")), reg, disp, nil, nil)

	sup := supervisor.New(logging.Component(log, "supervisor"), client, connCfg)

	updater := update.New(update.Options{
		Log:             logging.Component(log, "update"),
		ServerURL:       connCfg.ServerURL,
		Platform:        identity.PlatformTag(),
		Arch:            identity.ArchTag(),
		MachineID:       id.MachineID,
		CurrentVersion:  version,
		Channel:         settings.UpdateChannel,
		AutoDownload:    settings.AutoDownload,
		AutoInstall:     settings.AutoInstall,
		StateDir:        stateDir,
		Ledger:          ledger,
		CheckEveryBeats: settings.CheckEveryBeats,
		FailedRetry:     time.Duration(settings.FailedRetrySecs) * time.Second,
	})

	api := httpapi.New(httpapi.Options{
		Log:         logging.Component(log, "httpapi"),
		Dispatcher:  disp,
		Supervisor:  sup,
		ConfigStore: cfgStore,
		Credentials: creds,
		Ledger:      ledger,
		Machine:     machine,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", settings.HTTPBindHost, settings.HTTPPort),
		Handler: api.Handler(),
	}
	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("loopback http server exited")
		}
	}()

	go sup.Run(ctx)
	go watchEvents(ctx, client, updater)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("shutting down")
	sup.Disconnect()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	cancel()
	return nil
}

// watchEvents drains the protocol client's event stream for the
// occurrences the update pipeline cares about; every other event kind is
// informational only at this layer (the supervisor already reacts to
// connect/disconnect on its own).
func watchEvents(ctx context.Context, client *protocol.Client, updater *update.Pipeline) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-client.Events():
			if !ok {
				return
			}
			if ev.Kind == protocol.EventUpdateFlag {
				updater.OnHeartbeatAck(ctx, ev.UpdateFlag)
			}
		}
	}
}

// registerTools binds every dispatcher-local method name to its handler,
// wrapping the tool methods that don't take a context so they satisfy
// dispatcher.HandlerFunc.
func registerTools(d *dispatcher.Dispatcher, fs tools.FS, sh tools.Shell, sys tools.System, machine *tools.Machine, sessions tools.ShellSessions) {
	noCtx := func(h func(map[string]any) (any, error)) dispatcher.HandlerFunc {
		return func(_ context.Context, params map[string]any) (any, error) { return h(params) }
	}

	d.Register("fs_list", noCtx(fs.List))
	d.Register("fs_read", noCtx(fs.Read))
	d.Register("fs_read_range", noCtx(fs.ReadRange))
	d.Register("fs_write", noCtx(fs.Write))
	d.Register("fs_delete", noCtx(fs.Delete))
	d.Register("fs_move", noCtx(fs.Move))
	d.Register("fs_search", noCtx(fs.Search))
	d.Register("fs_grep", noCtx(fs.Grep))
	d.Register("fs_patch", noCtx(fs.Patch))

	d.Register("shell_exec", sh.Exec)

	d.Register("system_info", noCtx(sys.Info))
	d.Register("wait", sys.Wait)
	d.Register("clipboard_read", noCtx(sys.ClipboardRead))
	d.Register("clipboard_write", noCtx(sys.ClipboardWrite))

	d.Register("machine_lock", noCtx(machine.Lock))
	d.Register("machine_unlock", noCtx(machine.Unlock))
	d.Register("machine_info", noCtx(machine.Info))

	d.Register("shell_start_session", sessions.StartSession)
	d.Register("shell_send_input", sessions.SendInput)
	d.Register("shell_read_output", sessions.ReadOutput)
	d.Register("shell_stop_session", sessions.StopSession)
	d.Register("shell_list_sessions", sessions.ListSessions)
}

func defaultStateDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "screencontrol-agent")
	}
	return "."
}
