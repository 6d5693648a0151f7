package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type appFactory func(ctx context.Context) (*App, error)

func newRootCmd(factory appFactory) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "civicreports",
		Short: "Civic issue reporting service",
		Long: `civicreports serves the citizen report form and the admin dashboard,
and offers maintenance commands against the configured report store.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd(factory))
	rootCmd.AddCommand(seedCmd(factory))
	rootCmd.AddCommand(listCmd(factory))
	rootCmd.AddCommand(clearCmd(factory))
	rootCmd.AddCommand(exportCmd(factory))
	rootCmd.AddCommand(tokenCmd(factory))
	return rootCmd
}

// withApp builds an App for one command and closes it afterwards.
func withApp(cmd *cobra.Command, factory appFactory, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	app, err := factory(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			app.log.Error("close store failed", "err", closeErr)
		}
	}()
	return fn(ctx, app)
}

func serveCmd(factory appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			cmd.SetContext(ctx)
			return withApp(cmd, factory, func(ctx context.Context, app *App) error {
				return app.serve(ctx)
			})
		},
	}
}

func seedCmd(factory appFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Store the sample reports when the store is empty",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, factory, func(ctx context.Context, app *App) error {
				seeded, err := seedIfEmpty(ctx, app.reports, app.now(), app.newReportID)
				if err != nil {
					return fmt.Errorf("failed to seed reports: %w", err)
				}
				out := cmd.OutOrStdout()
				if !seeded {
					fmt.Fprintln(out, "Store already has reports; nothing seeded")
					return nil
				}
				fmt.Fprintf(out, "%s Seeded %d sample reports\n", color.New(color.FgGreen).Sprint("✓"), len(sampleReportTemplates))
				return nil
			})
		},
	}
}

func listCmd(factory appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored reports",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")
			return withApp(cmd, factory, func(ctx context.Context, app *App) error {
				reports, err := app.listReports(ctx, strings.TrimSpace(category))
				if err != nil {
					return fmt.Errorf("failed to list reports: %w", err)
				}
				return writeReportTable(cmd.OutOrStdout(), app, reports)
			})
		},
	}
	cmd.Flags().String("category", "", "Only list reports in this category")
	return cmd
}

func writeReportTable(out io.Writer, app *App, reports []Report) error {
	if len(reports) == 0 {
		fmt.Fprintln(out, "No reports")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tCATEGORY\tTITLE\tLOCATION\tCREATED")
	for _, report := range reports {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			report.ID,
			colorStatus(report.EffectiveStatus()),
			report.Category,
			report.Title,
			formatLocation(report.Location, "-"),
			app.formatTimestamp(report.CreatedAt),
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	stats := computeReportStats(reports)
	parts := make([]string, 0, len(stats.ByCategory))
	for _, entry := range stats.ByCategory {
		parts = append(parts, fmt.Sprintf("%s: %d", entry.Category, entry.Count))
	}
	fmt.Fprintf(out, "\n%d reports (%s)\n", stats.Total, strings.Join(parts, ", "))
	return nil
}

func colorStatus(status string) string {
	switch status {
	case StatusOpen:
		return color.New(color.FgYellow).Sprint(status)
	case StatusAssigned:
		return color.New(color.FgBlue).Sprint(status)
	case StatusClosed:
		return color.New(color.FgGreen).Sprint(status)
	default:
		return status
	}
}

func clearCmd(factory appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored report",
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, _ := cmd.Flags().GetBool("yes")
			if !yes {
				return fmt.Errorf("refusing to clear reports without confirmation\nHint: re-run with --yes")
			}
			return withApp(cmd, factory, func(ctx context.Context, app *App) error {
				if err := app.clearReports(ctx); err != nil {
					return fmt.Errorf("failed to clear reports: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s Cleared all reports\n", color.New(color.FgGreen).Sprint("✓"))
				return nil
			})
		},
	}
	cmd.Flags().Bool("yes", false, "Confirm deleting all reports")
	return cmd
}

func exportCmd(factory appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export reports as CSV or PDF",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			category, _ := cmd.Flags().GetString("category")
			outPath, _ := cmd.Flags().GetString("out")

			format = strings.ToLower(strings.TrimSpace(format))
			if !containsString(exportFormats, format) {
				return fmt.Errorf("invalid format: %s\nValid formats: %s", format, strings.Join(exportFormats, ", "))
			}
			category = strings.TrimSpace(category)

			return withApp(cmd, factory, func(ctx context.Context, app *App) error {
				reports, err := app.listReports(ctx, category)
				if err != nil {
					return fmt.Errorf("failed to load reports: %w", err)
				}
				export, err := buildReportExport(reports, format, category, app.displayLocation(), app.now())
				if err != nil {
					return fmt.Errorf("failed to build export: %w", err)
				}

				if outPath == "" || outPath == "-" {
					_, err := cmd.OutOrStdout().Write(export.Body)
					return err
				}
				if err := os.WriteFile(outPath, export.Body, 0o644); err != nil {
					return fmt.Errorf("failed to write %s: %w", outPath, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "%s Wrote %d reports to %s\n", color.New(color.FgGreen).Sprint("✓"), len(reports), outPath)
				return nil
			})
		},
	}
	cmd.Flags().String("format", exportFormatCSV, "Export format (csv or pdf)")
	cmd.Flags().String("category", "", "Only export reports in this category")
	cmd.Flags().String("out", "", "Output file (default stdout)")
	return cmd
}

func tokenCmd(factory appFactory) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a confirmation token for a destructive API call",
		RunE: func(cmd *cobra.Command, args []string) error {
			action, _ := cmd.Flags().GetString("action")
			reportID, _ := cmd.Flags().GetString("id")
			action = strings.TrimSpace(action)
			if action == confirmActionClear {
				reportID = ""
			}
			return withApp(cmd, factory, func(ctx context.Context, app *App) error {
				token, err := app.createConfirmationToken(action, strings.TrimSpace(reportID))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	}
	cmd.Flags().String("action", confirmActionClear, "Action to confirm (delete or clear)")
	cmd.Flags().String("id", "", "Report id, required for delete")
	return cmd
}
