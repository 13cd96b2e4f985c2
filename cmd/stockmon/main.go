// Package main is the CLI entry point for stockmon.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "stockmon",
	Short: "Farm stock monitor - alerts on low stock, expiry and due dates",
	Long: `stockmon watches a farm inventory backend and sends device notifications
when supplies run low or expire, machinery is due for maintenance, or
livestock is due for vaccination or breeding.

Run 'stockmon login' first, then 'stockmon start' to monitor in the background.`,
	Version:      Version,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitor in the foreground",
	Long: `Runs the monitor daemon in the foreground until interrupted.
Automatic checks follow the automaticStockAlerts setting. The local
control API is served on STOCKMON_LISTEN_ADDR unless --no-api is set.`,
	RunE: runRun,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the monitor in the background",
	RunE:  runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background monitor",
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show monitor status",
	Long:  `Shows whether the monitor is running, its last heartbeat and last stock check.`,
	RunE:  runStatus,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run a stock check now",
	Long: `Runs one manual stock check across all categories. When the monitor is
running with the control API enabled the check runs inside the monitor;
otherwise it runs in this process and prints what was sent.`,
	RunE: runCheck,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change notification settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Print the current notification settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set key=value...",
	Short: "Change notification settings",
	Long: `Changes one or more settings, for example:

  stockmon settings set lowStockAlerts=false automaticStockAlerts=true

Keys: lowStockAlerts, expiryAlerts, maintenanceAlerts, vaccinationAlerts,
breedingAlerts, automaticStockAlerts.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSettingsSet,
}

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Read the notification inbox",
}

var inboxListCmd = &cobra.Command{
	Use:   "list",
	Short: "List inbox notifications",
	Args:  cobra.NoArgs,
	RunE:  runInboxList,
}

var inboxReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE:  runInboxRead,
}

var inboxReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	Args:  cobra.NoArgs,
	RunE:  runInboxReadAll,
}

var inboxUnreadCmd = &cobra.Command{
	Use:   "unread",
	Short: "Print the unread notification count",
	Args:  cobra.NoArgs,
	RunE:  runInboxUnread,
}

var loginCmd = &cobra.Command{
	Use:   "login [token]",
	Short: "Save the backend access token",
	Long:  `Saves the backend access token. Reads it from stdin when no argument is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved access token",
	Args:  cobra.NoArgs,
	RunE:  runLogout,
}

var registerDeviceCmd = &cobra.Command{
	Use:   "register-device <push-token>",
	Short: "Register this device's push token with the backend",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegisterDevice,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	envFile    string
	dataDir    string
	apiURL     string
	noAPI      bool
	platform   string
	jsonOutput bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Env file to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for the local store (default depends on user/root)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "Backend base URL (overrides STOCKMON_API_URL)")

	runCmd.Flags().BoolVar(&noAPI, "no-api", false, "Do not serve the local control API")
	registerDeviceCmd.Flags().StringVar(&platform, "platform", "", "Device platform (default STOCKMON_PLATFORM)")
	statusCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output status as JSON")
	inboxListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output notifications as JSON")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	inboxCmd.AddCommand(inboxListCmd, inboxReadCmd, inboxReadAllCmd, inboxUnreadCmd)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(inboxCmd)
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(registerDeviceCmd)
	rootCmd.AddCommand(versionCmd)
}

// globalArgs returns the persistent flags to pass on to a detached child.
func globalArgs() []string {
	args := []string{"--env-file", envFile}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}
	if apiURL != "" {
		args = append(args, "--api-url", apiURL)
	}
	return args
}

// VersionInfo represents version information for JSON output.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}

func runVersion(cmd *cobra.Command, args []string) {
	info := VersionInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}

	if jsonOutput {
		data, _ := json.MarshalIndent(info, "", "  ")
		fmt.Println(string(data))
		return
	}

	fmt.Printf("stockmon %s\n", info.Version)
	fmt.Printf("  Commit:     %s\n", info.Commit)
	fmt.Printf("  Built:      %s\n", info.BuildTime)
	fmt.Printf("  Go version: %s\n", info.GoVersion)
	fmt.Printf("  Platform:   %s\n", info.Platform)
}
