package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/farmstock/stockmon/internal/daemon"
	"github.com/farmstock/stockmon/internal/domain"
	"github.com/farmstock/stockmon/internal/httpapi"
	"github.com/farmstock/stockmon/internal/usecase"
)

const (
	shutdownTimeout = 5 * time.Second
	stopWait        = 10 * time.Second
)

func runRun(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()
	logger := a.logger

	if pid, _ := a.daemonPID(); pid != 0 && pid != a.pm.GetCurrentPID() {
		return fmt.Errorf("stockmon is already running (PID %d)", pid)
	}

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("received shutdown signal")
		cancel()
	}()

	poller := a.newPoller(a.newRunner())
	monitor := daemon.NewMonitor(
		daemon.MonitorConfig{
			HeartbeatInterval: a.cfg.HeartbeatInterval,
			SettingsRefresh:   a.cfg.SettingsRefresh,
			Platform:          a.cfg.Platform,
			Version:           Version,
			Mode:              string(a.execMode.Mode),
		},
		a.notifier,
		a.settings,
		a.devices,
		poller,
		a.store,
		a.pm,
		a.clock,
		logger,
	)

	if a.cfg.ListenAddr != "" && !noAPI {
		srv := httpapi.NewServer(a.cfg.ListenAddr, httpapi.Deps{
			BaseContext: ctx,
			Scheduler:   poller,
			Settings:    a.settings,
			State:       monitor.State,
			Version:     Version,
			CORSOrigins: a.cfg.CORSOrigins,
			Logger:      logger,
		})
		go func() {
			logger.Info("control API listening", zap.String("addr", a.cfg.ListenAddr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("control API stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), shutdownTimeout)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	err = monitor.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runStart(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if pid, _ := a.daemonPID(); pid != 0 {
		fmt.Printf("stockmon is already running (PID %d)\n", pid)
		return nil
	}
	if a.auth.Token() == "" {
		fmt.Println("Warning: not signed in; checks are skipped until you run 'stockmon login'")
	}

	pid, err := daemon.StartDetached(a.outputPath(), append([]string{"run"}, globalArgs()...)...)
	if err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	// Give the child a moment to fail fast on config or permission errors.
	time.Sleep(500 * time.Millisecond)
	if !a.pm.IsRunning(pid) {
		return fmt.Errorf("monitor exited right after start; see %s", a.outputPath())
	}

	fmt.Println("\n=== stockmon Started ===")
	fmt.Printf("PID: %d\n", pid)
	fmt.Printf("Mode: %s\n", a.execMode.Mode)
	fmt.Printf("Data dir: %s\n", a.dataDir)
	fmt.Printf("Output: %s\n", a.outputPath())
	if a.cfg.ListenAddr != "" {
		fmt.Printf("Control API: http://%s\n", a.cfg.ListenAddr)
	}
	fmt.Println("\nMonitored categories:")
	for _, c := range a.registry.GetAll() {
		fmt.Printf("  - %s (%s)\n", c.Name(), c.ID())
	}
	fmt.Println("========================")
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	pid, _ := a.daemonPID()
	if pid == 0 {
		fmt.Println("stockmon is not running")
		return nil
	}
	if err := daemon.StopProcess(pid); err != nil {
		return fmt.Errorf("failed to stop PID %d: %w", pid, err)
	}

	deadline := time.Now().Add(stopWait)
	for time.Now().Before(deadline) {
		if !a.pm.IsRunning(pid) {
			fmt.Printf("stockmon stopped (PID %d)\n", pid)
			return nil
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("PID %d did not exit within %s", pid, stopWait)
}

// StatusInfo is the JSON form of the status command.
type StatusInfo struct {
	Running  bool                `json:"running"`
	PID      int                 `json:"pid,omitempty"`
	Process  string              `json:"process,omitempty"`
	RSSBytes uint64              `json:"rss_bytes,omitempty"`
	State    *domain.DaemonState `json:"state,omitempty"`
	Mode     string              `json:"mode"`
	DataDir  string              `json:"data_dir"`
	Store    string              `json:"store"`
	SignedIn bool                `json:"signed_in"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	pid, state := a.daemonPID()
	info := StatusInfo{
		Running:  pid != 0,
		PID:      pid,
		State:    state,
		Mode:     a.execMode.Mode.String(),
		DataDir:  a.dataDir,
		Store:    a.store.Path(),
		SignedIn: a.auth.Token() != "",
	}
	if pid != 0 {
		if proc, err := a.pm.Describe(pid); err == nil {
			info.Process = proc.Name
			info.RSSBytes = proc.RSSBytes
		}
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("\n=== stockmon Status ===")
	if !info.Running {
		fmt.Println("Status: NOT RUNNING")
		if state != nil {
			fmt.Printf("        Stale record for PID %d (last heartbeat %s)\n",
				state.PID, state.LastHeartbeat.Format(time.RFC3339))
		}
		fmt.Println("\nRun 'stockmon start' to begin monitoring.")
	} else {
		fmt.Printf("Status: RUNNING (PID %d", pid)
		if info.Process != "" {
			fmt.Printf(", %s, %.1f MB", info.Process, float64(info.RSSBytes)/(1<<20))
		}
		fmt.Println(")")
		fmt.Printf("Version: %s\n", state.Version)
		fmt.Printf("Started: %s\n", state.StartedAt.Format(time.RFC3339))
		if !state.LastHeartbeat.IsZero() {
			fmt.Printf("Last heartbeat: %s ago\n", time.Since(state.LastHeartbeat).Round(time.Second))
		}
		if state.LastCycleAt.IsZero() {
			fmt.Println("Last check: none yet")
		} else {
			fmt.Printf("Last check: %s ago (%d sent)\n",
				time.Since(state.LastCycleAt).Round(time.Second), state.LastCycleSent)
		}
	}

	fmt.Printf("\nExecution mode: %s\n", info.Mode)
	fmt.Printf("Store: %s\n", info.Store)
	if info.SignedIn {
		fmt.Println("Signed in: yes")
	} else {
		fmt.Println("Signed in: no (run 'stockmon login')")
	}
	fmt.Println("=======================")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if pid, _ := a.daemonPID(); pid != 0 && a.cfg.ListenAddr != "" {
		return triggerRemoteCheck(cmd.Context(), a.cfg.ListenAddr)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.notifier.ConfigureChannels(ctx, usecase.DefaultChannels()); err != nil {
		a.logger.Warn("failed to configure notification channels", zap.Error(err))
	}
	if granted, err := a.notifier.PermissionGranted(ctx); err != nil || !granted {
		return domain.ErrPermissionDenied
	}

	fmt.Println("\n=== Running Stock Check ===")
	poller := a.newPoller(a.newRunner())
	result, err := poller.Trigger(ctx)
	if result != nil {
		printCycle(result)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stock check failed: %w", err)
	}
	fmt.Println("===========================")
	return nil
}

// triggerRemoteCheck asks the running monitor to run the check.
func triggerRemoteCheck(ctx context.Context, addr string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+addr+"/check", nil)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("monitor control API unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusAccepted:
		fmt.Println("Stock check started in the running monitor.")
		return nil
	case http.StatusConflict:
		fmt.Println("A stock check is already running.")
		return nil
	default:
		var body httpapi.ErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("monitor refused check (%d): %s", resp.StatusCode, body.Error.Message)
	}
}

func printCycle(result *domain.CycleResult) {
	if result.Skipped {
		fmt.Println("\nSkipped: not signed in. Run 'stockmon login' first.")
		return
	}
	for _, c := range result.Categories {
		fmt.Printf("\n[%s]\n", c.Category)
		if c.Err != nil {
			fmt.Printf("  Error: %v\n", c.Err)
		}
		fmt.Printf("  Items: %d, alerts: %d, sent: %d, suppressed: %d\n",
			c.ItemCount, c.Alerts, len(c.Dispatched), c.Skipped)
	}
	fmt.Printf("\nTotal: %d notifications sent in %s\n",
		result.Dispatched(), (time.Duration(result.DurationMs) * time.Millisecond).Round(time.Millisecond))
}
