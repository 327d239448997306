package preflight

import (
	"context"

	"deepscan/internal/config"
	"deepscan/internal/deps"
	"deepscan/internal/inference"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// ModelResult reports the readiness of one classifier endpoint.
type ModelResult struct {
	Name     string
	Modality string
	Ready    bool
	Detail   string
}

// Report aggregates every check.
type Report struct {
	Dependencies []deps.Status
	Directories  []Result
	Models       []ModelResult
}

// Ready reports whether every required dependency, directory and model passed.
func (r Report) Ready() bool {
	for _, dep := range r.Dependencies {
		if !dep.Available && !dep.Optional {
			return false
		}
	}
	for _, dir := range r.Directories {
		if !dir.Passed {
			return false
		}
	}
	for _, model := range r.Models {
		if !model.Ready {
			return false
		}
	}
	return true
}

// RunAll executes the directory checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Upload directory", cfg.Paths.TempDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	if cfg.Archive.Backend == config.ArchiveLocal {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Archive.Dir))
	}
	return results
}

// Collect runs dependency, directory and model checks. models may be nil, in
// which case model endpoints are not probed.
func Collect(ctx context.Context, cfg *config.Config, models *inference.Models) Report {
	if cfg == nil {
		return Report{}
	}
	return Report{
		Dependencies: CheckSystemDeps(ctx, cfg),
		Directories:  RunAll(ctx, cfg),
		Models:       CheckModels(ctx, models),
	}
}
