package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"
)

// newAccrueCommand triggers the daily accrual run on a running server. It is
// the hook an external cron job calls once per day.
func newAccrueCommand() *cobra.Command {
	var serverURL string
	var asOf string

	cmd := &cobra.Command{
		Use:   "accrue",
		Short: "Trigger the daily accrual run on a running server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccrue(cmd, serverURL, asOf)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "base URL of the running investd server")
	cmd.Flags().StringVar(&asOf, "as-of", "", "accrual day in RFC3339 form (defaults to the server's current time)")

	return cmd
}

func runAccrue(cmd *cobra.Command, serverURL, asOf string) error {
	var body io.Reader
	if asOf != "" {
		t, err := time.Parse(time.RFC3339, asOf)
		if err != nil {
			return fmt.Errorf("parsing --as-of: %w", err)
		}
		payload, err := json.Marshal(map[string]time.Time{"as_of": t})
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, serverURL+"/api/v1/accrual/runs", body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("calling server: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("accrual run failed (%s): %s", resp.Status, payload)
	}

	fmt.Fprintln(cmd.OutOrStdout(), string(payload))
	return nil
}
