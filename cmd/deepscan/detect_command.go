package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"deepscan/internal/api"
	"deepscan/internal/config"
	"deepscan/internal/detection"
	"deepscan/internal/inference"
	"deepscan/internal/logging"
	"deepscan/internal/mediatype"
	"deepscan/internal/services"
	"deepscan/internal/workspace"
)

func newDetectCommand(ctx *commandContext) *cobra.Command {
	var dual, videoOnly, audioOnly, jsonOutput, verbose bool

	cmd := &cobra.Command{
		Use:   "detect FILE",
		Short: "Score a video or audio file",
		Long: "Score a video or audio file. By default the pipeline is chosen from the file's media type.\n" +
			"--dual runs both pipelines and reports a missing modality as absent instead of failing.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mode := detection.ModeAuto
			switch {
			case dual:
				mode = detection.ModeDual
			case videoOnly:
				mode = detection.ModeVideo
			case audioOnly:
				mode = detection.ModeAudio
			}

			path, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			if info, err := os.Stat(path); err != nil {
				return fmt.Errorf("input file: %w", err)
			} else if info.IsDir() {
				return fmt.Errorf("input file: %s is a directory", path)
			}

			var result api.DetectionResult
			if ctx.remote() {
				client, err := ctx.client()
				if err != nil {
					return err
				}
				result, err = client.Detect(cmd.Context(), path, mode)
				if err != nil {
					return wrapClientError(err, ctx.serverAddress())
				}
			} else {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				result, err = detectLocal(cmd.Context(), cfg, path, mode, verbose)
				if err != nil {
					return err
				}
			}

			if jsonOutput {
				return writeJSON(cmd, result)
			}
			renderDetection(cmd.OutOrStdout(), result, shouldColorize(cmd.OutOrStdout()))
			return nil
		},
	}
	cmd.Flags().BoolVar(&dual, "dual", false, "Run both pipelines (legacy compatibility mode)")
	cmd.Flags().BoolVar(&videoOnly, "video", false, "Force the video pipeline")
	cmd.Flags().BoolVar(&audioOnly, "audio", false, "Force the audio pipeline")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log pipeline progress to stderr")
	cmd.MarkFlagsMutuallyExclusive("dual", "video", "audio")
	return cmd
}

// detectLocal runs the detector in-process against the configured model
// endpoints. Nothing is written to history.
func detectLocal(ctx context.Context, cfg *config.Config, path string, mode detection.Mode, verbose bool) (api.DetectionResult, error) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	})
	if err != nil {
		return api.DetectionResult{}, err
	}

	models, err := inference.Load(cfg, logger)
	if err != nil {
		return api.DetectionResult{}, err
	}
	detector, err := detection.New(cfg, models, logger)
	if err != nil {
		return api.DetectionResult{}, err
	}
	ws, err := workspace.Create(cfg.Paths.TempDir, logger)
	if err != nil {
		return api.DetectionResult{}, err
	}
	defer ws.Close()

	filename := filepath.Base(path)
	up := detection.Upload{
		Path:     path,
		MIME:     mediatype.Detect(path, filename),
		Filename: filename,
		WorkDir:  ws.Dir(),
	}
	runCtx := services.WithRequestID(ctx, ws.ID())

	var result detection.Result
	switch mode {
	case detection.ModeDual:
		result, err = detector.DetectDual(runCtx, up)
	case detection.ModeVideo:
		result, err = detector.DetectModality(runCtx, up, detection.ModalityVideo)
	case detection.ModeAudio:
		result, err = detector.DetectModality(runCtx, up, detection.ModalityAudio)
	default:
		result, err = detector.Detect(runCtx, up)
	}
	if err != nil {
		return api.DetectionResult{}, describeDetectError(err)
	}
	return api.FromResult(result, api.Meta{ID: ws.ID(), Filename: filename}), nil
}

func describeDetectError(err error) error {
	kind, ok := services.KindOf(err)
	if !ok || errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("detection failed (%s): %w", kind, err)
}

func renderDetection(out io.Writer, result api.DetectionResult, colorize bool) {
	rows := [][]string{
		{"Video", formatConfidence(result.VideoConfidence), result.VideoAbsentReason},
		{"Audio", formatConfidence(result.AudioConfidence), result.AudioAbsentReason},
	}
	fmt.Fprintln(out, renderTable([]string{"Modality", "Fake Probability", "Note"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))

	verdict, kind := "REAL", statusOK
	if result.IsFake {
		verdict, kind = "FAKE", statusError
	}
	details := []string{fmt.Sprintf("%d ms", result.ProcessingTimeMS)}
	if result.Mode != "" {
		details = append(details, "mode "+result.Mode)
	}
	if result.MIMEType != "" {
		details = append(details, result.MIMEType)
	}
	if result.Archived {
		details = append(details, "archived")
	}
	fmt.Fprintln(out, renderStatusLine("Verdict", kind, verdict+" ("+strings.Join(details, ", ")+")", colorize))
}

func formatConfidence(value *float64) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprintf("%.4f", *value)
}
