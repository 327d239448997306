package api

import (
	"deepscan/internal/preflight"
	"deepscan/internal/workspace"
)

// FromReport splits a preflight report into its status payload sections.
// Every returned slice is non-nil so it encodes as [].
func FromReport(report preflight.Report) ([]DependencyStatus, []ModelStatus, []CheckStatus) {
	deps := make([]DependencyStatus, 0, len(report.Dependencies))
	for _, dep := range report.Dependencies {
		deps = append(deps, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	models := make([]ModelStatus, 0, len(report.Models))
	for _, m := range report.Models {
		models = append(models, ModelStatus{Name: m.Name, Modality: m.Modality, Ready: m.Ready, Detail: m.Detail})
	}
	checks := make([]CheckStatus, 0, len(report.Directories))
	for _, c := range report.Directories {
		checks = append(checks, CheckStatus{Name: c.Name, Passed: c.Passed, Detail: c.Detail})
	}
	return deps, models, checks
}

// Workspaces summarizes the per-request workspaces under root. An unreadable
// root reports zero.
func Workspaces(root string) WorkspaceStatus {
	dirs, err := workspace.List(root)
	if err != nil {
		return WorkspaceStatus{}
	}
	status := WorkspaceStatus{Active: len(dirs)}
	for _, dir := range dirs {
		status.Bytes += dir.Size
	}
	return status
}
