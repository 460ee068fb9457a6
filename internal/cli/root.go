// Package cli builds the tracktable command tree.
package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/tracktable/tracktable/internal/app"
	"github.com/tracktable/tracktable/internal/config"
	"github.com/tracktable/tracktable/internal/orchestrator"
	"github.com/tracktable/tracktable/pkg/dialect"
)

const cliVersion = "0.1.0"

// Execute parses args and runs the selected command.
func Execute(ctx context.Context, args []string) error {
	command := NewRootCommand()
	command.SetArgs(args)
	return command.ExecuteContext(ctx)
}

// NewRootCommand builds the full command tree. Running the root with no
// subcommand starts the interactive console.
func NewRootCommand() *cobra.Command {
	command := &cobra.Command{
		Use:          "tracktable",
		Short:        "Generate and manage database history tables",
		Version:      cliVersion,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, func(ctx context.Context, s *app.Session) error {
				return app.Run(ctx, s, cmd.OutOrStdout())
			})
		},
	}

	command.PersistentFlags().String("config", "", "path to config file")
	command.PersistentFlags().Bool("include-views", false, "offer views as candidates")
	command.PersistentFlags().Bool("backup", true, "write a backup script before applying")
	AddConnectionFlags(command)

	addLeaf := func(name, short string, addFlags func(*cobra.Command), runFn func(*cobra.Command, *app.Session) error) {
		cmd := &cobra.Command{
			Use:   name,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withSession(cmd, func(ctx context.Context, s *app.Session) error {
					return runFn(cmd, s)
				})
			},
		}
		if addFlags != nil {
			addFlags(cmd)
		}
		command.AddCommand(cmd)
	}

	addLeaf("tables", "list candidate tables", nil, runTables)
	addLeaf("preview", "show the DDL that apply would execute", addSelectionFlags, runPreview)
	addLeaf("apply", "create history tables and triggers", addApplyFlags, runApply)
	addLeaf("rollback", "reverse every change recorded this session", nil, runRollback)

	command.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "print the tracktable version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "tracktable %s\n", cliVersion)
			return nil
		},
	})

	return command
}

func addSelectionFlags(cmd *cobra.Command) {
	cmd.Flags().String("tables", "all", "comma-separated table names, or all")
}

func addApplyFlags(cmd *cobra.Command) {
	addSelectionFlags(cmd)
	cmd.Flags().Bool("yes", false, "apply without prompting")
}

// withSession loads config, applies flag overrides, wires a session, and
// runs fn with the adapter connected.
func withSession(cmd *cobra.Command, fn func(context.Context, *app.Session) error) error {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")
	fs := afero.NewOsFs()
	cfg, err := config.Load(fs, configPath)
	if err != nil {
		return err
	}
	ApplyOverrides(cmd, cfg)
	overrideBool(cmd, "include-views", &cfg.App.IncludeViews)
	overrideBool(cmd, "backup", &cfg.App.BackupBeforeChanges)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	logger := app.NewLogger(cfg.Logging, cmd.ErrOrStderr())
	session, err := app.Setup(cfg, cmd.InOrStdin(), cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if cmd.CalledAs() == "tracktable" || cmd == cmd.Root() {
		// Interactive mode manages its own connection lifecycle.
		return fn(ctx, session)
	}

	if err := session.Adapter.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := session.Adapter.Disconnect(ctx); err != nil {
			logger.Warn("disconnect failed", "error", err)
		}
	}()
	return fn(ctx, session)
}

// flagSelector builds a selector from a --tables value: "all" keeps every
// candidate, otherwise names are matched case-insensitively.
func flagSelector(expr string) orchestrator.TableSelector {
	return func(candidates []dialect.TableMetadata) []string {
		if strings.EqualFold(strings.TrimSpace(expr), "all") {
			names := make([]string, 0, len(candidates))
			for _, t := range candidates {
				names = append(names, t.Name)
			}
			return names
		}
		wanted := make(map[string]bool)
		for _, name := range strings.Split(expr, ",") {
			if trimmed := strings.TrimSpace(name); trimmed != "" {
				wanted[strings.ToLower(trimmed)] = true
			}
		}
		names := make([]string, 0, len(wanted))
		for _, t := range candidates {
			if wanted[strings.ToLower(t.Name)] {
				names = append(names, t.Name)
			}
		}
		return names
	}
}

func sessionSchema(s *app.Session) string {
	return app.DefaultSchema(s.Config)
}

func runTables(cmd *cobra.Command, s *app.Session) error {
	tables, err := s.Adapter.ListTables(cmd.Context(), sessionSchema(s))
	if err != nil {
		return err
	}
	s.Console.RenderTables(tables)
	return nil
}

func runPreview(cmd *cobra.Command, s *app.Session) error {
	expr, _ := cmd.Flags().GetString("tables")
	s.Orch.SetSelector(flagSelector(expr))

	previews, err := s.Orch.Preview(cmd.Context(), sessionSchema(s))
	if err != nil {
		return err
	}
	s.Console.RenderPreviews(previews)
	return nil
}

func runApply(cmd *cobra.Command, s *app.Session) error {
	expr, _ := cmd.Flags().GetString("tables")
	s.Orch.SetSelector(flagSelector(expr))
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		s.Orch.SetConfirm(func(string) bool { return true })
	}

	report, err := s.Orch.Apply(cmd.Context(), sessionSchema(s))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Applied history tracking to %d tables.\n", len(report.Tables))
	if report.BackupPath != "" {
		fmt.Fprintf(out, "Backup written to %s\n", report.BackupPath)
	}
	return nil
}

func runRollback(cmd *cobra.Command, s *app.Session) error {
	if err := s.Orch.Rollback(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "All recorded changes reversed.")
	return nil
}
