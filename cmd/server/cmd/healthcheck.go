package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/Togather-Foundation/eventease/internal/api/handlers"
	"github.com/spf13/cobra"
)

type healthcheckFlags struct {
	url     string
	timeout time.Duration
}

func newHealthcheckCommand() *cobra.Command {
	flags := &healthcheckFlags{}
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is ready",
		Long: `Performs a readiness check by calling the /readyz endpoint.

This command is used by container HEALTHCHECK directives. It exits non-zero
when the server is unreachable or any dependency check fails.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url := flags.url
			if url == "" {
				url = fmt.Sprintf("http://localhost:%s/readyz", envOr("SERVER_PORT", "8080"))
			}
			ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
			defer cancel()

			report, err := probeReadiness(ctx, http.DefaultClient, url)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (version %s)\n", report.Status, report.Version)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.url, "url", "", "readiness URL (default: http://localhost:$SERVER_PORT/readyz)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 5*time.Second, "request timeout")
	return cmd
}

// probeReadiness fetches url and fails unless the server reports ready.
func probeReadiness(ctx context.Context, client *http.Client, url string) (*handlers.HealthCheck, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("health check failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Error closing response body: %v\n", closeErr)
		}
	}()

	var report handlers.HealthCheck
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		return nil, fmt.Errorf("parse health response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || report.Status != "ready" {
		for name, check := range report.Checks {
			if check.Status != "pass" {
				return &report, fmt.Errorf("unhealthy: %s: %s", name, check.Message)
			}
		}
		return &report, fmt.Errorf("unhealthy: status %d (%s)", resp.StatusCode, report.Status)
	}
	return &report, nil
}
