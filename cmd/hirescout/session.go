package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect or clear the stored LinkedIn session",
}

var sessionShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored session age and freshness",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp()
		if err != nil {
			return err
		}
		defer application.Close()

		record := application.SessionStore.Load(context.Background())
		out := cmd.OutOrStdout()
		if record == nil {
			fmt.Fprintln(out, "No stored session")
			return nil
		}

		fmt.Fprintf(out, "Location:   %s\n", sessionLocation())
		fmt.Fprintf(out, "Created:    %s\n", record.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(out, "Age:        %s\n", record.Age(time.Now()).Round(time.Second))
		fmt.Fprintf(out, "Fresh:      %t (window %s)\n", application.SessionStore.IsFresh(record), config.Session.FreshnessWindow.Duration())
		fmt.Fprintf(out, "Cookies:    %d\n", len(record.Cookies))
		if record.LastURL != "" {
			fmt.Fprintf(out, "Last URL:   %s\n", record.LastURL)
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, err := newApp()
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.SessionStore.Delete(context.Background()); err != nil {
			return fmt.Errorf("failed to clear session: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Stored session cleared")
		return nil
	},
}

func init() {
	sessionCmd.AddCommand(sessionShowCmd, sessionClearCmd)
}
