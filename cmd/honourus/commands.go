package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"honourus/internal/analytics"
	"honourus/internal/app"
	"honourus/internal/config"
	"honourus/internal/domain"
	"honourus/internal/engine"
	"honourus/internal/repo"
)

// cliActor is the identity used for operator changes made from the CLI.
var cliActor = domain.User{ID: "cli", Name: "cli", Role: domain.RoleAdmin}

func userCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "user", Short: "Manage users"}
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userListCmd())
	cmd.AddCommand(userPromoteCmd())
	cmd.AddCommand(userReconcileCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var opts engine.SignUpOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user of any role",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Password == "" {
				opts.Password = os.Getenv("HONOURUS_USER_PASSWORD")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, opts)
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	cmd.Flags().StringVar(&opts.Email, "email", "", "email address")
	cmd.Flags().StringVar(&opts.Password, "password", "", "password (or HONOURUS_USER_PASSWORD)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().StringVar(&opts.Department, "department", "", "department")
	cmd.Flags().StringVar(&opts.Role, "role", domain.RoleMember, "member, manager or admin")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func userListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users by credits",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				users, err := r.ListUsers(ctx, limit)
				if err != nil {
					return err
				}
				return printUsers(users)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum users (0 for all)")
	return cmd
}

func userPromoteCmd() *cobra.Command {
	var email, role string
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Change a user's role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				target, err := e.Repo.GetUserByEmail(ctx, email)
				if err != nil {
					return fmt.Errorf("user %s: %w", email, err)
				}
				u, err := e.UpdateProfile(ctx, cliActor, target.ID, repo.UserUpdate{Role: &role})
				if err != nil {
					return err
				}
				return printUsers([]domain.User{u})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the user")
	cmd.Flags().StringVar(&role, "role", domain.RoleManager, "new role")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userReconcileCmd() *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare stored credits with the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				drifts, err := e.ReconcileCredits(ctx, apply)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(drifts))
				for _, d := range drifts {
					rows = append(rows, table.Row{d.UserID, d.Name, d.Stored, d.Ledger, d.Applied})
				}
				return printRows(drifts, table.Row{"User", "Name", "Stored", "Ledger", "Applied"}, rows)
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "rewrite stored credits to the ledger sum")
	return cmd
}

func printUsers(users []domain.User) error {
	rows := make([]table.Row, 0, len(users))
	for _, u := range users {
		rows = append(rows, table.Row{u.ID, u.Name, u.Email, u.Role, u.Department, u.Credits})
	}
	return printRows(users, table.Row{"ID", "Name", "Email", "Role", "Department", "Credits"}, rows)
}

func policyCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "policy", Short: "View and load the credit policy"}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the stored policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				cfg, err := app.ResolvePolicy(ctx, r, "")
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cfg)
				}
				data, err := cfg.ToYAML()
				if err != nil {
					return err
				}
				fmt.Print(string(data))
				return nil
			})
		},
	})
	var file string
	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Validate and store a policy file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				_, err := app.ResolvePolicy(ctx, r, file)
				return err
			})
		},
	}
	importCmd.Flags().StringVar(&file, "file", "", "policy yaml file")
	_ = importCmd.MarkFlagRequired("file")
	cmd.AddCommand(importCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "template",
		Short: "Print the default policy",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Print(config.GenerateDefault())
		},
	})
	return cmd
}

func analyticsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "analytics", Short: "Contribution reports"}
	cmd.AddCommand(unsungHeroCmd())
	cmd.AddCommand(heatmapCmd())
	return cmd
}

func unsungHeroCmd() *cobra.Command {
	var q analytics.UnsungHeroQuery
	cmd := &cobra.Command{
		Use:   "unsung-hero",
		Short: "Rank assignees by completion, volume and tag breadth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				report, err := analytics.New(r).UnsungHero(ctx, q)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(report))
				for i, s := range report {
					tags := make([]string, 0, len(s.TopTags))
					for _, tag := range s.TopTags {
						tags = append(tags, fmt.Sprintf("%s(%d)", tag.Tag, tag.Count))
					}
					rows = append(rows, table.Row{
						i + 1, s.Name, s.CompletedTasks, s.TotalTasks,
						fmt.Sprintf("%.1f%%", s.CompletionRate), s.TotalCredits,
						strings.Join(tags, " "), fmt.Sprintf("%.2f", s.Score),
					})
				}
				return printRows(report, table.Row{"#", "Name", "Done", "Tasks", "Rate", "Credits", "Top tags", "Score"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&q.TeamID, "team", "", "team id filter")
	cmd.Flags().StringVar(&q.DateFrom, "from", "", "created on or after (YYYY-MM-DD or RFC 3339)")
	cmd.Flags().StringVar(&q.DateTo, "to", "", "created on or before (YYYY-MM-DD or RFC 3339)")
	return cmd
}

func heatmapCmd() *cobra.Command {
	var userID string
	var year int
	var all bool
	cmd := &cobra.Command{
		Use:   "heatmap",
		Short: "Daily contribution heatmap for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				days, err := analytics.New(r).Heatmap(ctx, userID, year)
				if err != nil {
					return err
				}
				rows := []table.Row{}
				for _, d := range days {
					if !all && d.TasksCompleted == 0 && d.CreditsEarned == 0 {
						continue
					}
					rows = append(rows, table.Row{d.Date, d.TasksCompleted, d.CreditsEarned, strings.Repeat("#", d.Intensity)})
				}
				return printRows(days, table.Row{"Date", "Tasks", "Credits", "Intensity"}, rows)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().IntVar(&year, "year", 0, "calendar year")
	cmd.Flags().BoolVar(&all, "all", false, "include days without activity")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("year")
	return cmd
}

func kvCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "kv", Short: "Legacy document store"}
	var prefix string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List legacy documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				entries, err := r.KVScan(ctx, prefix)
				if err != nil {
					return err
				}
				rows := make([]table.Row, 0, len(entries))
				for _, kv := range entries {
					value := kv.Value
					if len(value) > 60 {
						value = value[:57] + "..."
					}
					rows = append(rows, table.Row{kv.Key, value})
				}
				return printRows(entries, table.Row{"Key", "Value"}, rows)
			})
		},
	}
	listCmd.Flags().StringVar(&prefix, "prefix", "", "key prefix such as task: or recognition:")
	cmd.AddCommand(listCmd)
	cmd.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Copy legacy documents into the relational tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				report, err := e.ImportKV(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(report)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Kind", "Imported"})
				for _, kind := range []string{"team", "task", "recognition"} {
					tw.AppendRow(table.Row{kind, report.Imported[kind]})
				}
				tw.AppendFooter(table.Row{"existing", report.Existing})
				tw.Render()
				for _, s := range report.Skipped {
					fmt.Printf("skipped %s: %s\n", s.Key, s.Reason)
				}
				return nil
			})
		},
	})
	return cmd
}
