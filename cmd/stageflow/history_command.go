package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stageflow/internal/api"
	"stageflow/internal/audit"
	"stageflow/internal/store"
	"stageflow/internal/workflow"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var (
		asOf    string
		entries bool
		asJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "history <item-id>",
		Short: "Show the stage history of a work item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0], "item id")
			if err != nil {
				return err
			}
			return ctx.withEngine(func(engine *workflow.Engine, st *store.Store) error {
				if entries {
					if _, err := engine.GetItem(cmd.Context(), id); err != nil {
						return err
					}
					raw, err := st.ListAuditEntries(cmd.Context(), id)
					if err != nil {
						return err
					}
					dtos := api.FromAuditEntries(raw)
					return render(cmd, asJSON, dtos, func() error {
						renderAuditEntries(cmd, dtos)
						return nil
					})
				}

				var states []audit.State
				if strings.TrimSpace(asOf) != "" {
					at, err := time.Parse(time.RFC3339, strings.TrimSpace(asOf))
					if err != nil {
						return fmt.Errorf("invalid --as-of %q: use RFC 3339", asOf)
					}
					state, err := engine.GetStateAsOf(cmd.Context(), id, at)
					if err != nil {
						return err
					}
					if state == nil {
						return fmt.Errorf("item %d did not exist at %s", id, at.Format(time.RFC3339))
					}
					states = []audit.State{*state}
				} else {
					states, err = engine.GetWorkflowHistory(cmd.Context(), id)
					if err != nil {
						return err
					}
				}
				dtos := api.FromHistory(states, time.Now())
				return render(cmd, asJSON, dtos, func() error {
					rows := make([][]string, 0, len(dtos))
					for _, s := range dtos {
						exited := s.ExitedAt
						if s.Current {
							exited = "(current)"
						}
						actor := s.ActorID
						if s.Automatic {
							actor += " (auto)"
						}
						rows = append(rows, []string{
							fmt.Sprintf("%d %s", s.Stage, s.StageName),
							s.EnteredAt,
							exited,
							formatHours(s.DurationHours),
							actor,
							s.Decision,
							truncate(s.Comment, 40),
						})
					}
					printTable(cmd, "No history recorded",
						[]string{"Stage", "Entered", "Exited", "Duration", "Actor", "Decision", "Comment"}, rows,
						[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight})
					return nil
				})
			})
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Show only the stage occupied at this RFC 3339 time")
	cmd.Flags().BoolVar(&entries, "entries", false, "Show raw audit entries")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func renderAuditEntries(cmd *cobra.Command, entries []api.AuditEntry) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.Timestamp,
			e.Action,
			formatStageChange(e.OldStage, e.NewStage),
			e.ActorID,
			e.Decision,
			formatHours(e.TimeInPreviousStageHours),
		})
	}
	printTable(cmd, "No audit entries",
		[]string{"ID", "Timestamp", "Action", "Stages", "Actor", "Decision", "Prev Stage"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
}

func formatStageChange(from, to *int) string {
	format := func(v *int) string {
		if v == nil {
			return "-"
		}
		return strconv.Itoa(*v)
	}
	return format(from) + " -> " + format(to)
}
