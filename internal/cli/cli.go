// ============================================================================
// plantrack CLI - Command Line Interface
// ============================================================================
//
// Package: internal/cli
// File: cli.go
// Purpose: Cobra front end over the dashboard service
//
// Command Structure:
//   plantrack                      # Root command
//   ├── load                       # Ingest a plan workbook
//   │   └── --file, -f             # .xlsx with one sheet per machine
//   ├── status                     # Downtime, capacity and today's state
//   ├── timeline                   # Projected machine/job tree as JSON
//   │   ├── --machine              # Repeatable machine filter
//   │   └── --customer             # Exact customer filter
//   ├── maintenance                # Append today's maintenance block
//   │   └── --machine              # Target machine
//   ├── context                    # Assistant system instruction and plan
//   ├── history                    # Journaled plan changes
//   ├── metrics                    # Write the Prometheus textfile
//   ├── --config, -c               # Config file (default: configs/default.yaml)
//   ├── --now                      # Override the wall clock
//   └── --version
//
// Configuration:
//   YAML file, see configs/default.yaml. A missing default config falls back
//   to built-in defaults; a missing explicit --config is an error.
//
// Clock:
//   Every time-dependent command reads "now" once, from --now when given
//   (day-first like 05.06.2024 09:00 or RFC3339) and the wall clock
//   otherwise. Times are shown in the configured plant timezone.
//
// Output:
//   Results go to the command's stdout, logs to stderr.
// ============================================================================

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChuLiYu/plantrack/internal/assistant"
	"github.com/ChuLiYu/plantrack/internal/dashboard"
	"github.com/ChuLiYu/plantrack/internal/datetime"
	"github.com/ChuLiYu/plantrack/internal/ingest"
	"github.com/ChuLiYu/plantrack/internal/schedule"
	"github.com/ChuLiYu/plantrack/pkg/types"
)

var (
	configFile string
	nowFlag    string
)

// session is what every command starts from.
type session struct {
	cfg *Config
	loc *time.Location
	now time.Time
	svc *dashboard.Service
}

func BuildCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "plantrack",
		Short: "plantrack: production plan tracking for injection-molding machines",
		Long: `plantrack reads a production plan workbook and reports:
- recorded downtime and idle gaps per machine
- weekly and monthly capacity utilization
- what each machine is doing today
- a machine/job timeline for charting`,
		Version:      "1.0.0",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "configs/default.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&nowFlag, "now", "", "override the current time (e.g. \"05.06.2024 09:00\")")

	rootCmd.AddCommand(buildLoadCommand())
	rootCmd.AddCommand(buildStatusCommand())
	rootCmd.AddCommand(buildTimelineCommand())
	rootCmd.AddCommand(buildMaintenanceCommand())
	rootCmd.AddCommand(buildContextCommand())
	rootCmd.AddCommand(buildHistoryCommand())
	rootCmd.AddCommand(buildMetricsCommand())

	return rootCmd
}

// setup loads the config, installs logging and opens the service.
func setup(cmd *cobra.Command) (*session, error) {
	cfg, err := resolveConfig(configFile, cmd.Flags().Changed("config"))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := setupLogging(os.Stderr, cfg.LogLevel); err != nil {
		return nil, err
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	now, err := resolveNow(nowFlag, loc)
	if err != nil {
		return nil, err
	}

	svc, err := openService(cfg, loc)
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, loc: loc, now: now, svc: svc}, nil
}

func resolveNow(value string, loc *time.Location) (time.Time, error) {
	if value == "" {
		return time.Now().In(loc), nil
	}
	in := datetime.NewParser(loc).ParseText(value)
	if !in.Valid {
		return time.Time{}, fmt.Errorf("invalid --now value %q", value)
	}
	return in.At.In(loc), nil
}

func openService(cfg *Config, loc *time.Location) (*dashboard.Service, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	svc := dashboard.NewService(dashboard.Config{
		Catalog:          catalog,
		Location:         loc,
		SnapshotPath:     cfg.Snapshot.Path,
		KeepBackups:      cfg.Snapshot.KeepBackups,
		JournalPath:      cfg.Journal.Path,
		JournalMaxEvents: cfg.Journal.MaxEvents,
		MaintenanceLabel: cfg.Labels.Maintenance,
		Labels:           cfg.ProjectorLabels(),
	})
	if err := svc.Open(); err != nil {
		return nil, fmt.Errorf("failed to open plan: %w", err)
	}
	return svc, nil
}

func writeJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

// ============================================================================
// load
// ============================================================================

func buildLoadCommand() *cobra.Command {
	var workbook string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load a plan workbook",
		Long:  "Read every machine sheet of an .xlsx plan and replace the stored plan with it.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.svc.Close()
			return loadPlan(cmd, rt, workbook, asJSON)
		},
	}

	cmd.Flags().StringVarP(&workbook, "file", "f", "", "plan workbook (.xlsx)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the ingestion summary as JSON")
	cmd.MarkFlagRequired("file")

	return cmd
}

func loadPlan(cmd *cobra.Command, rt *session, workbook string, asJSON bool) error {
	result, err := ingest.ReadWorkbook(workbook, rt.svc.Plan().Catalog(), datetime.NewParser(rt.loc))
	if err != nil {
		return err
	}

	plan, err := rt.svc.Replace(result.Jobs, filepath.Base(workbook))
	if err != nil {
		return err
	}

	if asJSON {
		return writeJSON(cmd, map[string]interface{}{
			"revision": plan.Revision(),
			"jobs":     plan.Len(),
			"sheets":   result.Sheets,
			"missing":  result.Missing,
		})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Loaded %d jobs from %s (revision %s)\n", plan.Len(), filepath.Base(workbook), shortRevision(plan.Revision()))
	for _, s := range result.Sheets {
		fmt.Fprintf(out, "  %-12s %3d rows  %3d accepted  %3d rejected  %3d unparseable\n",
			s.Sheet, s.Rows, s.Accepted, s.Rejected, s.Unparseable)
	}
	for _, name := range result.Missing {
		fmt.Fprintf(out, "  %-12s missing\n", name)
	}
	return nil
}

// ============================================================================
// status
// ============================================================================

func buildStatusCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show downtime, capacity and today's machine state",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.svc.Close()

			view := rt.svc.View(rt.now)
			if asJSON {
				return writeJSON(cmd, view)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderStatus(view, rt.cfg, rt.svc.Source()))
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the view as JSON")
	return cmd
}

// ============================================================================
// timeline
// ============================================================================

func buildTimelineCommand() *cobra.Command {
	var machines []int
	var customer string
	var listCustomers bool

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the machine/job timeline as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.svc.Close()

			if listCustomers {
				return writeJSON(cmd, rt.svc.Plan().Customers())
			}

			filter := schedule.Filter{Customer: customer}
			for _, id := range machines {
				filter.Machines = append(filter.Machines, types.MachineID(id))
			}
			return writeJSON(cmd, rt.svc.Timeline(filter))
		},
	}

	cmd.Flags().IntSliceVar(&machines, "machine", nil, "only these machines (repeatable)")
	cmd.Flags().StringVar(&customer, "customer", "", "only jobs for this customer")
	cmd.Flags().BoolVar(&listCustomers, "customers", false, "list the customers in the plan instead")
	return cmd
}

// ============================================================================
// maintenance
// ============================================================================

func buildMaintenanceCommand() *cobra.Command {
	var machine int

	cmd := &cobra.Command{
		Use:   "maintenance",
		Short: "Schedule today's maintenance block on a machine",
		Long:  "Append a maintenance job from 08:00 to 17:00 of the current day.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.svc.Close()

			plan, err := rt.svc.AddMaintenance(rt.now, types.MachineID(machine))
			if err != nil {
				return err
			}

			day := datetime.StartOfDay(rt.now)
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %s %s → %s (revision %s)\n",
				rt.cfg.Labels.Machine, machine, rt.cfg.Labels.Maintenance,
				datetime.FormatDayFirstShort(datetime.AtClock(day, 8, 0)),
				datetime.FormatDayFirstShort(datetime.AtClock(day, 17, 0)),
				shortRevision(plan.Revision()))
			return nil
		},
	}

	cmd.Flags().IntVar(&machine, "machine", 0, "machine id")
	cmd.MarkFlagRequired("machine")
	return cmd
}

// ============================================================================
// context
// ============================================================================

func buildContextCommand() *cobra.Command {
	var lang string
	var prompt string

	cmd := &cobra.Command{
		Use:   "context",
		Short: "Print the assistant system instruction with the plan embedded",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.svc.Close()

			if lang == "" {
				lang = rt.cfg.Assistant.Language
			}
			language, err := assistant.ParseLanguage(lang)
			if err != nil {
				return err
			}

			ctx, err := assistant.BuildContext(rt.svc.Plan(), language, rt.cfg.Assistant.Company)
			if err != nil {
				return err
			}

			out := map[string]interface{}{
				"language":           ctx.Language,
				"current_date":       assistant.CurrentDate(rt.now),
				"system_instruction": ctx.SystemInstruction,
			}
			if prompt != "" {
				out["prompt"] = assistant.Prompt(rt.now, prompt)
			}
			return writeJSON(cmd, out)
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "", "answer language: tr or en (default from config)")
	cmd.Flags().StringVar(&prompt, "prompt", "", "also print this question with the date prefix")
	return cmd
}

// ============================================================================
// history
// ============================================================================

func buildHistoryCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled plan loads and maintenance blocks",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.svc.Close()

			events, err := rt.svc.History()
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, events)
			}

			out := cmd.OutOrStdout()
			if len(events) == 0 {
				fmt.Fprintln(out, "No plan changes journaled.")
				return nil
			}
			for _, e := range events {
				at := datetime.FormatDayFirst(time.UnixMilli(e.Timestamp).In(rt.loc))
				detail := e.Source
				if e.MachineID != 0 {
					detail = fmt.Sprintf("%s %d", rt.cfg.Labels.Machine, e.MachineID)
				}
				fmt.Fprintf(out, "%4d  %s  %-12s %-8s %4d jobs  %s\n",
					e.Seq, at, e.Type, shortRevision(e.Revision), e.Jobs, detail)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the events as JSON")
	return cmd
}

// ============================================================================
// metrics
// ============================================================================

func buildMetricsCommand() *cobra.Command {
	var output string
	var watch time.Duration

	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Write the Prometheus textfile",
		Long: `Write plan gauges in the node-exporter textfile format.
With --watch the file is rewritten every interval until interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := setup(cmd)
			if err != nil {
				return err
			}
			defer rt.svc.Close()
			if output == "" {
				output = rt.cfg.Metrics.Textfile
			}
			if dir := filepath.Dir(output); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create metrics directory: %w", err)
				}
			}

			if cmd.Flags().Changed("watch") {
				interval := watch
				if interval == 0 {
					interval = rt.cfg.Metrics.Interval
				}
				ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				return rt.svc.RunMetricsLoop(ctx, interval, output, nil)
			}

			rt.svc.View(rt.now)
			if err := rt.svc.Metrics().WriteTextfile(output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Metrics written to %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "textfile path (default from config)")
	cmd.Flags().DurationVar(&watch, "watch", 0, "rewrite every interval (0 uses the configured interval)")
	return cmd
}
