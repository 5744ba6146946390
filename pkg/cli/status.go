package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/getpushd/pushd/pkg/api/types"
)

var (
	statusPidFile string
	statusJSON    bool
)

// StatusOutput is the JSON shape of the status command.
type StatusOutput struct {
	Running       bool   `json:"running"`
	PID           int    `json:"pid,omitempty"`
	Version       string `json:"version,omitempty"`
	Uptime        string `json:"uptime,omitempty"`
	URL           string `json:"url,omitempty"`
	Subscriptions int    `json:"subscriptions,omitempty"`
	Messages      int    `json:"messages,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show status of a running pushd server",
	Example: `  # Check server status
  pushd status

  # Output as JSON
  pushd status --json`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusPidFile, "pid-file", DefaultPIDPath(), "Path to PID file")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
}

func runStatus(cmd *cobra.Command, args []string) error {
	info, err := ReadPIDFile(statusPidFile)
	if err != nil || !info.IsRunning() {
		return printStatus(StatusOutput{Running: false})
	}

	out := StatusOutput{
		Running: true,
		PID:     info.PID,
		Version: info.Version,
		Uptime:  info.FormatUptime(),
		URL:     info.ServerURL(),
	}

	// Enrich from the live server when reachable; the process existing is
	// enough for the basic fields.
	if live := fetchServerStatus(info.ServerURL()); live != nil {
		out.Subscriptions = live.Subscriptions
		out.Messages = live.Messages
		if live.Version != "" {
			out.Version = live.Version
		}
	}
	return printStatus(out)
}

func fetchServerStatus(baseURL string) *types.StatusResponse {
	client := &http.Client{Timeout: 3 * time.Second}
	resp, err := client.Get(baseURL + "/status")
	if err != nil {
		return nil
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	var status types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil
	}
	return &status
}

func printStatus(out StatusOutput) error {
	if statusJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if !out.Running {
		fmt.Println("pushd is not running")
		return nil
	}
	fmt.Printf("pushd is running (PID %d)\n", out.PID)
	if out.Version != "" {
		fmt.Printf("  Version:       %s\n", out.Version)
	}
	fmt.Printf("  Uptime:        %s\n", out.Uptime)
	fmt.Printf("  Push service:  %s\n", out.URL)
	fmt.Printf("  Subscriptions: %d\n", out.Subscriptions)
	fmt.Printf("  Messages:      %d\n", out.Messages)
	return nil
}
