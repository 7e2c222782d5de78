package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"bugtracker/internal/models"
	"bugtracker/internal/observability"
	"bugtracker/internal/serviceinterfaces"
	contextutils "bugtracker/internal/utils"

	"github.com/spf13/cobra"
)

// DefaultAdminActor is recorded in progress notes when --actor is not given
const DefaultAdminActor = "admin"

// BugServiceProvider hands out the bug service once the store is open
type BugServiceProvider interface {
	GetBugService() (serviceinterfaces.BugServiceInterface, error)
}

// BugCommands returns the bug administration commands
func BugCommands(provider BugServiceProvider, logger *observability.Logger) *cobra.Command {
	var actor string

	bugsCmd := &cobra.Command{
		Use:   "bugs",
		Short: "Bug report administration",
		Long: `Bug report administration commands.

Available commands:
  list        - List open bugs
  show        - Show one bug with its progress notes
  assignable  - List unassigned bugs that can be picked up
  triage      - Set severity, category, or status
  assign      - Assign bugs to a developer
  dismiss     - Dismiss a bug
  dashboard   - Show the team workload
  audit       - Show resolved bugs with their notes
  purge       - Permanently delete Resolved or Dismissed bugs`,
	}
	bugsCmd.PersistentFlags().StringVar(&actor, "actor", DefaultAdminActor, "Name recorded as the actor of changes")

	b := &bugCommands{provider: provider, logger: logger, actor: &actor}
	bugsCmd.AddCommand(b.listCmd())
	bugsCmd.AddCommand(b.showCmd())
	bugsCmd.AddCommand(b.assignableCmd())
	bugsCmd.AddCommand(b.triageCmd())
	bugsCmd.AddCommand(b.assignCmd())
	bugsCmd.AddCommand(b.dismissCmd())
	bugsCmd.AddCommand(b.dashboardCmd())
	bugsCmd.AddCommand(b.auditCmd())
	bugsCmd.AddCommand(b.purgeCmd())

	return bugsCmd
}

type bugCommands struct {
	provider BugServiceProvider
	logger   *observability.Logger
	actor    *string
}

func (b *bugCommands) service() (serviceinterfaces.BugServiceInterface, error) {
	svc, err := b.provider.GetBugService()
	if err != nil {
		return nil, contextutils.WrapError(err, "bug service not available")
	}
	return svc, nil
}

func (b *bugCommands) listCmd() *cobra.Command {
	var status, severity string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List open bugs",
		Long:  `List bugs, critical first. Resolved and Dismissed bugs are hidden unless --status selects them.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			statusFilter, err := models.ParseStatusFilter(status)
			if err != nil {
				return err
			}
			severityFilter, err := models.ParseSeverityFilter(severity)
			if err != nil {
				return err
			}
			svc, err := b.service()
			if err != nil {
				return err
			}
			bugs, err := svc.ListOpen(cmd.Context(), statusFilter, severityFilter, limit)
			if err != nil {
				return contextutils.WrapError(err, "failed to list bugs")
			}
			printBugTable(cmd.OutOrStdout(), models.Summaries(bugs))
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "Only bugs with this status")
	cmd.Flags().StringVar(&severity, "severity", "", "Only bugs with this severity")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of bugs (0 selects the default)")
	return cmd
}

func (b *bugCommands) showCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <bug-id>",
		Short: "Show one bug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := b.service()
			if err != nil {
				return err
			}
			bug, err := svc.GetReport(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(bug)
			}
			printBug(cmd, bug)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full record as JSON")
	return cmd
}

func printBug(cmd *cobra.Command, bug *models.BugReport) {
	out := cmd.OutOrStdout()
	s := bug.Summary()
	fmt.Fprintf(out, "ID:          %s\n", bug.ID)
	fmt.Fprintf(out, "Title:       %s\n", bug.Title)
	fmt.Fprintf(out, "Status:      %s\n", bug.Status)
	fmt.Fprintf(out, "Severity:    %s\n", orDash(s.Severity))
	fmt.Fprintf(out, "Category:    %s\n", orDash(s.Category))
	fmt.Fprintf(out, "Reporter:    %s\n", bug.Reporter)
	fmt.Fprintf(out, "Assigned to: %s\n", orDash(s.AssignedTo))
	fmt.Fprintf(out, "Reported:    %s\n", formatTime(bug.ReportedAt))
	fmt.Fprintf(out, "Updated:     %s\n", formatTime(bug.UpdatedAt))
	if bug.ScreenshotPath.Valid {
		fmt.Fprintf(out, "Screenshot:  %s (%s)\n", bug.ScreenshotPath.String, bug.ScreenshotName.String)
	}
	fmt.Fprintf(out, "\n%s\n", bug.Description)
	if bug.ReproductionSteps.Valid && bug.ReproductionSteps.String != "" {
		fmt.Fprintf(out, "\nSteps to reproduce:\n%s\n", bug.ReproductionSteps.String)
	}
	if bug.ProgressNotes != "" {
		fmt.Fprintf(out, "\nProgress notes:\n%s\n", bug.ProgressNotes)
	}
}

func (b *bugCommands) assignableCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "assignable",
		Short: "List unassigned bugs that can be picked up",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := b.service()
			if err != nil {
				return err
			}
			bugs, err := svc.ListAssignable(cmd.Context(), limit)
			if err != nil {
				return contextutils.WrapError(err, "failed to list assignable bugs")
			}
			printBugTable(cmd.OutOrStdout(), models.Summaries(bugs))
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of bugs (0 selects the default)")
	return cmd
}

func (b *bugCommands) triageCmd() *cobra.Command {
	var severity, category, status string

	cmd := &cobra.Command{
		Use:   "triage <bug-id>",
		Short: "Set severity, category, or status",
		Long: `Set any of severity, category, and status on one bug. Severity and
category are applied before status so a New bug given a severity is triaged
first and may then be moved on.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if severity == "" && category == "" && status == "" {
				return contextutils.Detailf(contextutils.ErrMissingRequired, "at least one of --severity, --category, --status is required")
			}
			svc, err := b.service()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			id := args[0]
			var bug *models.BugReport

			if severity != "" {
				sev, err := models.ParseSeverity(severity)
				if err != nil {
					return err
				}
				if bug, err = svc.SetSeverity(ctx, *b.actor, id, sev); err != nil {
					return err
				}
			}
			if category != "" {
				cat, err := models.ParseCategory(category)
				if err != nil {
					return err
				}
				if bug, err = svc.SetCategory(ctx, *b.actor, id, cat); err != nil {
					return err
				}
			}
			if status != "" {
				st, err := models.ParseStatus(status)
				if err != nil {
					return err
				}
				if bug, err = svc.SetStatus(ctx, *b.actor, id, st); err != nil {
					return err
				}
			}

			s := bug.Summary()
			fmt.Fprintf(cmd.OutOrStdout(), "Bug %s: status=%s severity=%s category=%s\n", bug.ID, bug.Status, orDash(s.Severity), orDash(s.Category))
			b.logger.Info(ctx, "Bug triaged from CLI", map[string]interface{}{"bug_id": bug.ID, "actor": *b.actor})
			return nil
		},
	}
	cmd.Flags().StringVar(&severity, "severity", "", "Low, Medium, High, or Critical")
	cmd.Flags().StringVar(&category, "category", "", "UI, Performance, Crash, Data, Network, or Other")
	cmd.Flags().StringVar(&status, "status", "", "Target lifecycle status")
	return cmd
}

func (b *bugCommands) assignCmd() *cobra.Command {
	var to string

	cmd := &cobra.Command{
		Use:   "assign <bug-id>...",
		Short: "Assign bugs to a developer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(to) == "" {
				return contextutils.Detailf(contextutils.ErrMissingRequired, "--to is required")
			}
			svc, err := b.service()
			if err != nil {
				return err
			}
			result, err := svc.AssignBulk(cmd.Context(), args, to)
			if err != nil {
				return err
			}
			printBatchResult(cmd.OutOrStdout(), result)
			if len(result.Errors) > 0 && len(result.AppliedIDs) == 0 && len(result.Unchanged) == 0 {
				return contextutils.ErrorWithContextf("no bugs were assigned")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Developer to assign the bugs to")
	return cmd
}

func (b *bugCommands) dismissCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "dismiss <bug-id>",
		Short: "Dismiss a bug",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := b.service()
			if err != nil {
				return err
			}
			bug, err := svc.Dismiss(cmd.Context(), *b.actor, args[0], reason)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Bug %s dismissed\n", bug.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "Why the bug is dismissed")
	return cmd
}

func (b *bugCommands) dashboardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Show assigned bugs grouped by developer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := b.service()
			if err != nil {
				return err
			}
			dash, err := svc.TeamDashboard(cmd.Context())
			if err != nil {
				return contextutils.WrapError(err, "failed to build dashboard")
			}
			printDashboard(cmd, dash)
			return nil
		},
	}
}

func printDashboard(cmd *cobra.Command, dash *models.TeamDashboard) {
	out := cmd.OutOrStdout()
	t := dash.Totals
	fmt.Fprintf(out, "Assigned: %d  In Progress: %d  Good-to-Test: %d  Critical: %d  High: %d\n",
		t.Assigned, t.InProgress, t.GoodToTest, t.Critical, t.High)
	if len(dash.Assignees) == 0 {
		fmt.Fprintln(out, "\nNo assigned bugs")
		return
	}
	for _, a := range dash.Assignees {
		fmt.Fprintf(out, "\n%s (%d)\n", a.Assignee, a.Total)
		for _, st := range models.OpenStatuses {
			if n := a.ByStatus[st]; n > 0 {
				fmt.Fprintf(out, "  %-13s %d\n", st, n)
			}
		}
		for _, bug := range a.Bugs {
			fmt.Fprintf(out, "    %-36s  %-13s  %-9s  %s\n", bug.ID, bug.Status, orDash(bug.Severity), truncate(bug.Title, 50))
		}
	}
}

func (b *bugCommands) auditCmd() *cobra.Command {
	var limit int
	var withNotes bool

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show resolved bugs, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := b.service()
			if err != nil {
				return err
			}
			entries, err := svc.AuditResolved(cmd.Context(), limit)
			if err != nil {
				return contextutils.WrapError(err, "failed to list resolved bugs")
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No resolved bugs")
				return nil
			}
			for _, e := range entries {
				fmt.Fprintf(out, "%-36s  %-16s  %-14s  %s\n", e.ID, formatTime(e.ResolvedAt), truncate(orDash(e.AssignedTo), 14), truncate(e.Title, 50))
				if withNotes && e.Notes != "" {
					fmt.Fprintf(out, "%s\n\n", e.Notes)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of bugs (0 selects the default)")
	cmd.Flags().BoolVar(&withNotes, "notes", false, "Include progress notes")
	return cmd
}

func (b *bugCommands) purgeCmd() *cobra.Command {
	var status string
	var yes bool

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Permanently delete Resolved or Dismissed bugs",
		Long: `Permanently delete every bug with the given terminal status, together with
its screenshot. Asks for confirmation unless --yes is given.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := models.ParseStatus(status)
			if err != nil {
				return err
			}
			if !st.IsTerminal() {
				return contextutils.Detailf(contextutils.ErrInvalidInput, "only %s or %s bugs can be purged", models.StatusResolved, models.StatusDismissed)
			}
			svc, err := b.service()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			if !yes {
				stats, err := svc.Stats(ctx)
				if err != nil {
					return err
				}
				ok, err := confirm(cmd.InOrStdin(), cmd.OutOrStdout(),
					fmt.Sprintf("Permanently delete %d %s bug(s)?", stats.ByStatus[st], st))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted")
					return nil
				}
			}

			n, err := svc.Purge(ctx, st)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Purged %d %s bug(s)\n", n, st)
			b.logger.Info(ctx, "Bugs purged from CLI", map[string]interface{}{"status": string(st), "count": n, "actor": *b.actor})
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", string(models.StatusResolved), "Resolved or Dismissed")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// sortedStatuses returns the keys of counts in lifecycle order, unknown values last
func sortedStatuses(counts map[models.Status]int) []models.Status {
	order := make(map[models.Status]int, len(models.AllStatuses))
	for i, s := range models.AllStatuses {
		order[s] = i
	}
	out := make([]models.Status, 0, len(counts))
	for s := range counts {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		oi, iok := order[out[i]]
		oj, jok := order[out[j]]
		if iok != jok {
			return iok
		}
		if oi != oj {
			return oi < oj
		}
		return out[i] < out[j]
	})
	return out
}
