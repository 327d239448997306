package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"deepscan/internal/api"
	"deepscan/internal/config"
	"deepscan/internal/history"
	"deepscan/internal/inference"
	"deepscan/internal/logging"
	"deepscan/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check media tools, directories, and model endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.StatusResponse
			if ctx.remote() {
				client, err := ctx.client()
				if err != nil {
					return err
				}
				status, err = client.Status(cmd.Context())
				if err != nil {
					return wrapClientError(err, ctx.serverAddress())
				}
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				status, err = localStatus(cmd.Context(), cfg)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				return writeJSON(cmd, status)
			}
			renderStatus(cmd.OutOrStdout(), status, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// localStatus builds the same payload the server returns from /api/status.
func localStatus(ctx context.Context, cfg *config.Config) (api.StatusResponse, error) {
	models, err := inference.Load(cfg, logging.NewNop())
	if err != nil {
		return api.StatusResponse{}, err
	}
	report := preflight.Collect(ctx, cfg, models)
	status := api.StatusResponse{
		Ready:         report.Ready(),
		PID:           os.Getpid(),
		Thresholds:    api.Thresholds{Video: cfg.Detection.VideoThreshold, Audio: cfg.Detection.AudioThreshold},
		Archive:       cfg.Archive.Backend,
		Notifications: cfg.Notifications.NtfyTopic != "",
	}
	status.Dependencies, status.Models, status.Checks = api.FromReport(report)
	status.History = localHistoryStatus(ctx, cfg)
	status.Workspaces = api.Workspaces(cfg.Paths.TempDir)
	return status, nil
}

func localHistoryStatus(ctx context.Context, cfg *config.Config) api.HistoryStatus {
	if !cfg.History.Enabled {
		return api.HistoryStatus{}
	}
	status := api.HistoryStatus{Enabled: true, Driver: cfg.History.Driver}
	store, err := history.OpenFromConfig(ctx, cfg)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	defer store.Close()
	status.Location = store.Location()
	summary, err := store.Summarize(ctx)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	status.Total = summary.Total
	status.Fake = summary.Fake
	return status
}

func renderStatus(out io.Writer, status api.StatusResponse, colorize bool) {
	section := func(title string) {
		fmt.Fprintln(out)
		for _, line := range renderSectionHeader(title, colorize) {
			fmt.Fprintln(out, line)
		}
	}
	line := func(label string, kind statusKind, message string) {
		fmt.Fprintln(out, renderStatusLine(label, kind, message, colorize))
	}

	overall, message := statusOK, "ready"
	if !status.Ready {
		overall, message = statusError, "not ready"
	}
	line("deepscan", overall, message)

	section("Models")
	if len(status.Models) == 0 {
		line("Models", statusWarn, "none configured")
	}
	for _, m := range status.Models {
		label := m.Modality + " " + m.Name
		if m.Ready {
			line(label, statusOK, m.Detail)
		} else {
			line(label, statusError, m.Detail)
		}
	}

	section("Dependencies")
	for _, dep := range status.Dependencies {
		switch {
		case dep.Available:
			line(dep.Name, statusOK, dep.Command)
		case dep.Optional:
			line(dep.Name, statusWarn, joinNonEmpty(dep.Detail, "optional"))
		default:
			line(dep.Name, statusError, dep.Detail)
		}
	}

	section("Directories")
	for _, check := range status.Checks {
		if check.Passed {
			line(check.Name, statusOK, check.Detail)
		} else {
			line(check.Name, statusError, check.Detail)
		}
	}

	section("Storage")
	line("Thresholds", statusInfo, fmt.Sprintf("video %.2f, audio %.2f", status.Thresholds.Video, status.Thresholds.Audio))
	switch {
	case !status.History.Enabled:
		line("History", statusInfo, "disabled")
	case status.History.Error != "":
		line("History", statusError, status.History.Error)
	default:
		line("History", statusOK, fmt.Sprintf("%s, %d record(s), %d fake", joinNonEmpty(status.History.Driver, status.History.Location), status.History.Total, status.History.Fake))
	}
	line("Archive", statusInfo, status.Archive)
	line("Workspaces", statusInfo, fmt.Sprintf("%d active, %s", status.Workspaces.Active, formatBytes(status.Workspaces.Bytes)))
	if status.Notifications {
		line("Notifications", statusInfo, "ntfy")
	} else {
		line("Notifications", statusInfo, "off")
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			kept = append(kept, part)
		}
	}
	return strings.Join(kept, " ")
}
