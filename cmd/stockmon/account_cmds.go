package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/farmstock/stockmon/internal/domain"
)

const commandTimeout = 30 * time.Second

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, commandTimeout)
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	data, _ := json.MarshalIndent(a.settings.Load(ctx), "", "  ")
	fmt.Println(string(data))
	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	patch, err := parseSettingsArgs(args)
	if err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	settings, err := applySettings(a.settings.Load(ctx), patch)
	if err != nil {
		return err
	}
	if err := a.settings.Save(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	data, _ := json.MarshalIndent(settings, "", "  ")
	fmt.Println(string(data))
	if pid, _ := a.daemonPID(); pid != 0 {
		fmt.Printf("The running monitor picks up changes within %s.\n", a.cfg.SettingsRefresh)
	}
	return nil
}

// parseSettingsArgs turns key=value pairs into a JSON patch.
func parseSettingsArgs(args []string) (map[string]bool, error) {
	patch := make(map[string]bool, len(args))
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s: expected true or false, got %q", key, value)
		}
		patch[key] = b
	}
	return patch, nil
}

// applySettings overlays patch on current. Unknown keys are rejected.
func applySettings(current domain.NotificationSettings, patch map[string]bool) (domain.NotificationSettings, error) {
	raw, err := json.Marshal(patch)
	if err != nil {
		return current, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&current); err != nil {
		return current, fmt.Errorf("invalid setting: %w", err)
	}
	return current, nil
}

func runInboxList(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	list, err := a.client.ListNotifications(ctx)
	if err != nil {
		return fmt.Errorf("failed to list notifications: %w", err)
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(list, "", "  ")
		fmt.Println(string(data))
		return nil
	}

	if len(list) == 0 {
		fmt.Println("Inbox is empty.")
		return nil
	}
	for _, n := range list {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Printf("%s %s  %s  %s\n", mark, n.ID, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Title)
		if n.Message != "" {
			fmt.Printf("    %s\n", n.Message)
		}
	}
	return nil
}

func runInboxRead(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := a.client.MarkRead(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to mark %s read: %w", args[0], err)
	}
	fmt.Printf("Marked %s as read.\n", args[0])
	return nil
}

func runInboxReadAll(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := a.client.MarkAllRead(ctx); err != nil {
		return fmt.Errorf("failed to mark all read: %w", err)
	}
	fmt.Println("All notifications marked as read.")
	return nil
}

func runInboxUnread(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := commandContext(cmd)
	defer cancel()

	n, err := a.client.UnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("failed to count unread: %w", err)
	}
	fmt.Println(n)
	return nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		fmt.Fprint(os.Stderr, "Access token: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read token: %w", err)
		}
		token = line
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.auth.Save(token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	fmt.Printf("Token saved to %s\n", a.store.Path())

	// A push token registered while signed out is sent now.
	ctx, cancel := commandContext(cmd)
	defer cancel()
	a.devices.RegisterCached(ctx, a.cfg.Platform)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.auth.Save(""); err != nil {
		return fmt.Errorf("failed to clear token: %w", err)
	}
	fmt.Println("Signed out.")
	if a.cfg.APIToken != "" {
		fmt.Println("Note: STOCKMON_API_TOKEN is set and still takes effect.")
	}
	return nil
}

func runRegisterDevice(cmd *cobra.Command, args []string) error {
	a, err := setup()
	if err != nil {
		return err
	}
	defer a.close()

	p := platform
	if p == "" {
		p = a.cfg.Platform
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	if err := a.devices.Register(ctx, args[0], p); err != nil {
		return fmt.Errorf("push token saved locally but not registered: %w", err)
	}
	fmt.Printf("Device registered (%s).\n", p)
	return nil
}
