package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"hrsync/internal/app"
	"hrsync/internal/config"
	"hrsync/internal/hrsync"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var verbose bool

// loadConfig reads the config file at the default location.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an HRSyncApp. The caller must defer app.Close().
// operation identifies the CLI command being run (e.g. "RunImport", "ApproveImport").
func newApp(ctx context.Context, operation string, args ...string) (*app.HRSyncApp, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	a, err := app.NewHRSyncApp(ctx, cfg, operation, app.Options{
		Parameters: strings.Join(args, " "),
		Verbose:    verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// readPassphrase prompts on the terminal without echo.
func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return string(b), nil
}

var rootCmd = &cobra.Command{
	Use:          "hrsync",
	Short:        "HR export import and reconciliation",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg := config.NewConfig(defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults["config_path"])
		fmt.Printf("Base Dir: %s\n", defaults["base_dir"])
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Configuration from %s:\n\n", defaults["config_path"])
		fmt.Printf("Base Dir:  %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:   %s\n", cfg.LogDir)
		fmt.Printf("Database:  %s\n", cfg.Database.Type)
		fmt.Printf("Source:    %s %s\n", cfg.Source.Type, cfg.Source.Dir)
		fmt.Printf("Archive:   %s (encrypt=%v)\n", cfg.Archive.Type, cfg.Archive.Encrypt)
		fmt.Printf("Notify:    %s\n", cfg.Notify.Type)
		fmt.Println("Sources:")
		for _, s := range cfg.Sources {
			fmt.Printf("  %-20s -> %-12s key=%s required=%v\n", s.Name, s.Table, strings.Join(s.Key, ","), s.Required)
		}
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage archive encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the archive key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		passphrase, err := readPassphrase("Passphrase: ")
		if err != nil {
			return err
		}
		confirm, err := readPassphrase("Confirm passphrase: ")
		if err != nil {
			return err
		}
		if passphrase != confirm {
			return errors.New("passphrases do not match")
		}

		if err := app.InitKeys(cfg, passphrase); err != nil {
			return err
		}
		fmt.Printf("Public key:  %s\n", cfg.Encryption.PublicKeyPath)
		fmt.Printf("Private key: %s\n", cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// import command
var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Run and manage imports",
}

var importRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one import",
	RunE: func(cmd *cobra.Command, args []string) error {
		triggerFlag, _ := cmd.Flags().GetString("trigger")
		trigger, err := hrsync.ParseTriggerType(triggerFlag)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), "RunImport", triggerFlag)
		if err != nil {
			return err
		}
		defer a.Close()

		log, err := a.RunImport(cmd.Context(), trigger)
		if log != nil {
			printImportLog(log)
		}
		var blocked *hrsync.BlockedError
		if errors.As(err, &blocked) {
			return fmt.Errorf("import blocked by %s (%s)", blocked.LogID, blocked.Status)
		}
		return err
	},
}

var importApproveCmd = &cobra.Command{
	Use:   "approve ID",
	Short: "Approve structure changes of an import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		noContinue, _ := cmd.Flags().GetBool("no-continue")

		a, err := newApp(cmd.Context(), "ApproveImport", args[0], by)
		if err != nil {
			return err
		}
		defer a.Close()

		log, err := a.ApproveImport(cmd.Context(), args[0], by, !noContinue)
		if log != nil {
			printImportLog(log)
		}
		return err
	},
}

var importRejectCmd = &cobra.Command{
	Use:   "reject ID",
	Short: "Reject structure changes of an import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		reason, _ := cmd.Flags().GetString("reason")

		a, err := newApp(cmd.Context(), "RejectImport", args[0], by)
		if err != nil {
			return err
		}
		defer a.Close()

		log, err := a.RejectImport(cmd.Context(), args[0], by, reason)
		if err != nil {
			return err
		}
		printImportLog(log)
		return nil
	},
}

var importResumeCmd = &cobra.Command{
	Use:   "resume ID",
	Short: "Continue an approved import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ResumeImport", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		log, err := a.ResumeImport(cmd.Context(), args[0])
		if log != nil {
			printImportLog(log)
		}
		return err
	},
}

var importListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent imports",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		statuses, _ := cmd.Flags().GetStringSlice("status")
		pending, _ := cmd.Flags().GetBool("pending")

		a, err := newApp(cmd.Context(), "ListImports")
		if err != nil {
			return err
		}
		defer a.Close()

		var logs []*hrsync.ImportLog
		if pending {
			logs, err = a.PendingApprovals(cmd.Context())
		} else {
			logs, err = a.ListImports(cmd.Context(), limit, statuses)
		}
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Println("No imports recorded.")
			return nil
		}

		for _, l := range logs {
			duration := ""
			if l.CompletedAt != nil {
				duration = l.CompletedAt.Sub(l.StartedAt).Truncate(time.Millisecond).String()
			}
			fmt.Printf("%s  %-7s  %s  %-17s  %s\n",
				l.ID,
				l.TriggerType,
				l.StartedAt.Local().Format("2006-01-02 15:04:05"),
				l.Status,
				duration,
			)
		}
		return nil
	},
}

var importShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "ShowImport", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		details, err := a.ShowImport(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printImportLog(details.Log)

		if len(details.Files) > 0 {
			fmt.Println("\nFiles:")
			for _, f := range details.Files {
				archived := ""
				if f.Archived {
					archived = "  [archived]"
				}
				fmt.Printf("  %-28s %-12s %8d bytes %6d rows  %s%s\n",
					f.Filename, f.Table, f.Size, f.RowCount, f.Checksum[:12], archived)
			}
		}
		if len(details.Diffs) > 0 {
			fmt.Println("\nPersisted diffs:")
			for _, table := range sortedKeys(details.Diffs) {
				c := details.Diffs[table]
				fmt.Printf("  %-12s inserts=%d updates=%d\n", table, c.Inserts, c.Updates)
			}
		}
		return nil
	},
}

// diffs command
var diffsCmd = &cobra.Command{
	Use:   "diffs ID",
	Short: "List record diffs of an import",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		table, _ := cmd.Flags().GetString("table")
		changeType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		a, err := newApp(cmd.Context(), "ListDiffs", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		diffs, err := a.ListDiffs(cmd.Context(), args[0], hrsync.DiffFilter{
			Table:      table,
			ChangeType: hrsync.ChangeType(changeType),
			Limit:      limit,
			Offset:     offset,
		})
		if err != nil {
			return err
		}
		if len(diffs) == 0 {
			fmt.Println("No diffs recorded.")
			return nil
		}

		for _, d := range diffs {
			fmt.Printf("%-12s %-7s %s\n", d.Table, d.ChangeType, d.RecordKey)
			for _, fc := range d.FieldsChanged {
				fmt.Printf("    %s: %q -> %q\n", fc.Field, fc.OldValue, fc.NewValue)
			}
		}
		return nil
	},
}

// structure command
var structureCmd = &cobra.Command{
	Use:   "structure FILENAME",
	Short: "View the column history of a source file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "StructureHistory", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		snaps, err := a.StructureHistory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No structure recorded.")
			return nil
		}

		for _, s := range snaps {
			fmt.Printf("%s  %-5s %6d rows  %s\n",
				s.ImportedAt.Local().Format("2006-01-02 15:04:05"),
				s.FileType,
				s.RowCount,
				strings.Join(s.Columns, ", "),
			)
		}
		return nil
	},
}

// archive command
var archiveCmd = &cobra.Command{
	Use:   "archive",
	Short: "Access archived export files",
}

var archiveGetCmd = &cobra.Command{
	Use:   "get CHECKSUM",
	Short: "Restore an archived export file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		a, err := newApp(cmd.Context(), "RetrieveExport", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		var passphrase string
		if a.ArchiveEncrypted() {
			passphrase, err = readPassphrase("Passphrase: ")
			if err != nil {
				return err
			}
		}

		var w io.Writer = os.Stdout
		if output != "" {
			f, err := os.OpenFile(output, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := a.RetrieveExport(cmd.Context(), args[0], passphrase, w); err != nil {
			if output != "" {
				os.Remove(output)
			}
			return err
		}
		if output != "" {
			fmt.Fprintf(os.Stderr, "Restored %s\n", output)
		}
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the database",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := app.MigrateDatabase(cmd.Context(), cfg); err != nil {
			return err
		}
		fmt.Println("Database schema is up to date.")
		return nil
	},
}

// records command
var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect stored records",
}

var recordsCountCmd = &cobra.Command{
	Use:   "count TABLE",
	Short: "Count stored records of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), "CountRecords", args[0])
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.CountRecords(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", args[0], n)
		return nil
	},
}

func printImportLog(l *hrsync.ImportLog) {
	fmt.Printf("Import:   %s\n", l.ID)
	fmt.Printf("Trigger:  %s\n", l.TriggerType)
	fmt.Printf("Status:   %s\n", l.Status)
	fmt.Printf("Started:  %s\n", l.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if l.CompletedAt != nil {
		fmt.Printf("Finished: %s\n", l.CompletedAt.Local().Format("2006-01-02 15:04:05"))
	}
	if l.ApprovedBy != "" {
		fmt.Printf("Approved: %s\n", l.ApprovedBy)
	}
	if l.ErrorMessage != "" {
		fmt.Printf("Error:    %s: %s\n", l.ErrorStep, l.ErrorMessage)
	}

	if l.HasStructureChanges {
		fmt.Println("\nStructure changes:")
		for _, name := range sortedKeys(l.StructureChanges) {
			c := l.StructureChanges[name]
			fmt.Printf("  %s\n", name)
			if len(c.Added) > 0 {
				fmt.Printf("    added:   %s\n", strings.Join(c.Added, ", "))
			}
			if len(c.Removed) > 0 {
				fmt.Printf("    removed: %s\n", strings.Join(c.Removed, ", "))
			}
		}
	}

	if l.Results != nil {
		fmt.Println("\nResults:")
		for _, t := range l.Results.Tables {
			fmt.Printf("  %-12s inserts=%d updates=%d unchanged=%d skipped=%d written=%d",
				t.Table, t.Inserts, t.Updates, t.Unchanged, t.Skipped, t.Written)
			if t.FailedBatches > 0 {
				fmt.Printf(" failed_batches=%d", t.FailedBatches)
			}
			fmt.Println()
		}
		for _, w := range l.Results.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		for _, e := range l.Results.Errors {
			fmt.Printf("  error: %s\n", e)
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	// config subcommands
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)

	// keys subcommands
	keysCmd.AddCommand(keysInitCmd)

	// import subcommands
	importCmd.AddCommand(importRunCmd)
	importRunCmd.Flags().String("trigger", string(hrsync.TriggerManual), "Trigger type (manual or cron)")
	importCmd.AddCommand(importApproveCmd)
	importApproveCmd.Flags().String("by", "", "Operator approving the import")
	importApproveCmd.Flags().Bool("no-continue", false, "Approve without continuing the import")
	importApproveCmd.MarkFlagRequired("by")
	importCmd.AddCommand(importRejectCmd)
	importRejectCmd.Flags().String("by", "", "Operator rejecting the import")
	importRejectCmd.Flags().String("reason", "", "Reason for the rejection")
	importRejectCmd.MarkFlagRequired("by")
	importCmd.AddCommand(importResumeCmd)
	importCmd.AddCommand(importListCmd)
	importListCmd.Flags().IntP("limit", "n", 20, "Maximum number of imports to show")
	importListCmd.Flags().StringSlice("status", nil, "Only show imports with these statuses")
	importListCmd.Flags().Bool("pending", false, "Only show imports awaiting approval")
	importCmd.AddCommand(importShowCmd)

	// archive subcommands
	archiveCmd.AddCommand(archiveGetCmd)
	archiveGetCmd.Flags().StringP("output", "o", "", "Write to file instead of stdout")

	// db subcommands
	dbCmd.AddCommand(dbMigrateCmd)

	// records subcommands
	recordsCmd.AddCommand(recordsCountCmd)

	// root commands
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(diffsCmd)
	diffsCmd.Flags().String("table", "", "Only show diffs of this table")
	diffsCmd.Flags().String("type", "", "Only show diffs of this change type (insert or update)")
	diffsCmd.Flags().IntP("limit", "n", 100, "Maximum number of diffs to show")
	diffsCmd.Flags().Int("offset", 0, "Number of diffs to skip")
	rootCmd.AddCommand(structureCmd)
	rootCmd.AddCommand(archiveCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(recordsCmd)
}
