package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/hirescout/internal/models"
	"github.com/ternarybob/hirescout/internal/services/records"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Find hiring managers for a file of job records",
	Long: `Reads job records from a JSON or YAML file, looks up the hiring team of each
posting and writes the augmented records as JSON or CSV.

With configured credentials a browser window opens for login first; press Enter
once logged in. Without credentials, or with --no-auth, every posting is
fetched anonymously.`,
	RunE: runExtract,
}

var (
	extractInput  string
	extractOutput string
	extractFormat string
	extractNoAuth bool
)

func init() {
	extractCmd.Flags().StringVarP(&extractInput, "input", "i", "", "Job records file (.json, .yaml, .yml)")
	extractCmd.Flags().StringVarP(&extractOutput, "output", "o", "", "Output file (format from extension unless --format is set)")
	extractCmd.Flags().StringVarP(&extractFormat, "format", "f", "", "Output format: json or csv")
	extractCmd.Flags().BoolVar(&extractNoAuth, "no-auth", false, "Skip login and use anonymous extraction only")
	extractCmd.MarkFlagRequired("input")
	extractCmd.MarkFlagRequired("output")
}

func runExtract(cmd *cobra.Command, args []string) error {
	format := records.FormatForPath(extractOutput)
	if extractFormat != "" {
		parsed, err := records.ParseFormat(extractFormat)
		if err != nil {
			return err
		}
		format = parsed
	}

	jobs, err := records.LoadFile(extractInput)
	if err != nil {
		return err
	}
	logger.Info().Str("input", extractInput).Int("records", len(jobs)).Msg("Job records loaded")

	application, err := newApp()
	if err != nil {
		return err
	}
	defer application.Close()

	creds := application.DefaultCredentials()
	if extractNoAuth {
		creds = models.Credentials{}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, runErr := application.Orchestrator.Run(ctx, jobs, creds, enterToConfirm(cmd.InOrStdin(), cmd.OutOrStdout()))
	if result == nil || result.Records == nil {
		return fmt.Errorf("extraction failed: %w", runErr)
	}

	if err := records.WriteFile(extractOutput, result.Records, format); err != nil {
		return err
	}

	outcome := result.Run.Outcome
	fmt.Fprintf(cmd.OutOrStdout(), "\nRun %s %s\n", result.Run.ID, result.Run.Status)
	fmt.Fprintf(cmd.OutOrStdout(), "  records:            %d (%d attempted, %d skipped)\n", outcome.Total, outcome.Attempted, outcome.SkippedCount)
	fmt.Fprintf(cmd.OutOrStdout(), "  authenticated:      %d\n", outcome.AuthenticatedCount)
	fmt.Fprintf(cmd.OutOrStdout(), "  fallback:           %d\n", outcome.FallbackCount)
	fmt.Fprintf(cmd.OutOrStdout(), "  jobs with managers: %d (%.1f%%)\n", outcome.JobsWithManagers, outcome.SuccessRate())
	fmt.Fprintf(cmd.OutOrStdout(), "  managers found:     %d (%.2f per job)\n", outcome.TotalManagersFound, outcome.AvgManagersPerJob())
	fmt.Fprintf(cmd.OutOrStdout(), "  output:             %s\n", extractOutput)

	// Partial results are written before the run error is reported
	return runErr
}
