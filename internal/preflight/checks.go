package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"deepscan/internal/config"
	"deepscan/internal/deps"
	"deepscan/internal/inference"
)

const modelCheckTimeout = 5 * time.Second

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the media binaries for the given config. The
// server status endpoint and the CLI status command share this list.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(ctx, deps.MediaRequirements(cfg.FFmpegBinary(), cfg.FFprobeBinary()))
}

// CheckModels probes every configured classifier in order. Each probe has
// its own timeout.
func CheckModels(ctx context.Context, models *inference.Models) []ModelResult {
	if models == nil {
		return nil
	}
	results := make([]ModelResult, 0, len(models.Video)+1)
	for _, c := range models.Video {
		results = append(results, CheckModel(ctx, "video", c))
	}
	if models.Audio != nil {
		results = append(results, CheckModel(ctx, "audio", models.Audio))
	}
	return results
}

// CheckModel reports whether a single classifier is serving.
func CheckModel(ctx context.Context, modality string, c inference.Classifier) ModelResult {
	result := ModelResult{Name: c.Name(), Modality: modality}
	checkCtx, cancel := context.WithTimeout(ctx, modelCheckTimeout)
	defer cancel()

	detail, err := inference.Status(checkCtx, c)
	if err != nil {
		result.Detail = summarizeModelError(err)
		return result
	}
	result.Ready = true
	result.Detail = detail
	return result
}

func summarizeModelError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "status check timed out (model server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "status check timed out (model server unreachable)"
	}
	return err.Error()
}
