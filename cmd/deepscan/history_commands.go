package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"deepscan/internal/api"
	"deepscan/internal/history"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and maintain stored detections",
	}
	historyCmd.AddCommand(newHistoryListCommand(ctx))
	historyCmd.AddCommand(newHistoryShowCommand(ctx))
	historyCmd.AddCommand(newHistoryRemoveCommand(ctx))
	historyCmd.AddCommand(newHistoryPruneCommand(ctx))
	return historyCmd
}

func newHistoryListCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent detections, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(cmd.Context(), func(h historyAPI, _ *history.Store) error {
				items, err := h.List(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, api.HistoryListResponse{Items: items})
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "No detections recorded")
					return nil
				}
				fmt.Fprintln(out, renderHistoryTable(items))
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", history.DefaultListLimit, "Maximum number of records")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderHistoryTable(items []api.HistoryRecord) string {
	table := make([][]string, 0, len(items))
	for _, item := range items {
		table = append(table, []string{
			shortID(item.ID),
			formatCreatedAt(item.CreatedAt),
			truncate(item.Filename, 32),
			item.Mode,
			formatConfidence(item.VideoConfidence),
			formatConfidence(item.AudioConfidence),
			verdictLabel(item.IsFake),
		})
	}
	return renderTable(
		[]string{"ID", "When", "File", "Mode", "Video", "Audio", "Verdict"},
		table,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
	)
}

func newHistoryShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show ID",
		Short: "Show one stored detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(cmd.Context(), func(h historyAPI, _ *history.Store) error {
				item, err := h.Describe(cmd.Context(), strings.TrimSpace(args[0]))
				if errors.Is(err, history.ErrNotFound) {
					return fmt.Errorf("detection %s not found", args[0])
				}
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, item)
				}
				renderHistoryItem(cmd, *item)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderHistoryItem(cmd *cobra.Command, item api.HistoryRecord) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	for _, line := range renderSectionHeader("Detection "+item.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fields := [][2]string{
		{"File", item.Filename},
		{"Media type", item.MIMEType},
		{"Mode", item.Mode},
		{"Recorded", formatCreatedAt(item.CreatedAt)},
		{"Video", modalityDetail(item.VideoConfidence, item.VideoAbsentReason)},
		{"Audio", modalityDetail(item.AudioConfidence, item.AudioAbsentReason)},
		{"Processing", fmt.Sprintf("%d ms", item.ProcessingTimeMS)},
		{"SHA-256", item.SHA256},
		{"Archived at", item.ArchiveLocation},
	}
	for _, field := range fields {
		if strings.TrimSpace(field[1]) == "" {
			continue
		}
		fmt.Fprintf(out, "%s%-*s %s\n", statusIndent, statusLabelWidth, field[0]+":", field[1])
	}
	kind := statusOK
	if item.IsFake {
		kind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Verdict", kind, verdictLabel(item.IsFake), colorize))
}

func newHistoryRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "rm ID",
		Aliases: []string{"remove"},
		Short:   "Delete a stored detection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withHistory(cmd.Context(), func(h historyAPI, _ *history.Store) error {
				if err := h.Remove(cmd.Context(), id); err != nil {
					if errors.Is(err, history.ErrNotFound) {
						return fmt.Errorf("detection %s not found", id)
					}
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed detection %s\n", id)
				return nil
			})
		},
	}
}

func newHistoryPruneCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete detections older than a number of days",
		RunE: func(cmd *cobra.Command, args []string) error {
			if ctx.remote() {
				return errors.New("history prune works on the local store; run it on the server host without --server")
			}
			return ctx.withHistory(cmd.Context(), func(_ historyAPI, store *history.Store) error {
				if days <= 0 {
					cfg, err := ctx.ensureConfig()
					if err != nil {
						return err
					}
					days = cfg.History.RetentionDays
				}
				if days <= 0 {
					return errors.New("no retention configured; pass --days")
				}
				removed, err := api.NewHistoryService(store).PruneOlderThan(cmd.Context(), days)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d detection(s) older than %d day(s)\n", removed, days)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "Age threshold in days (default history.retention_days)")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}

func formatCreatedAt(value string) string {
	if value == "" {
		return "-"
	}
	parsed, err := api.ParseTime(value)
	if err != nil {
		return value
	}
	return parsed.Local().Format(time.DateTime)
}

func verdictLabel(fake bool) string {
	if fake {
		return "FAKE"
	}
	return "REAL"
}

func modalityDetail(confidence *float64, reason string) string {
	if confidence != nil {
		return formatConfidence(confidence)
	}
	if reason == "" {
		return "absent"
	}
	return "absent (" + reason + ")"
}
