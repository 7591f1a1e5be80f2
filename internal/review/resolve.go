package review

import (
	"fmt"
	"strings"

	"jobflow/internal/identity"
	"jobflow/internal/models"
	"jobflow/internal/state"
)

// TargetSelector identifies one pipeline entry from CLI input. Exactly
// one field may be set.
type TargetSelector struct {
	Index   int    // 1-based position in pending_materials, as printed by status
	QueueID string
	JobID   string
	Folder  string
	Company string
}

func (sel TargetSelector) set() int {
	n := 0
	if sel.Index > 0 {
		n++
	}
	for _, s := range []string{sel.QueueID, sel.JobID, sel.Folder, sel.Company} {
		if s != "" {
			n++
		}
	}
	return n
}

// ResolveTarget finds the entry the selector addresses, searching all
// three stage queues. Ambiguity is an error, not a guess: a company
// substring that matches several applications lists them all so the
// operator can re-run with a precise key.
func ResolveTarget(doc *models.StateDoc, listings *models.ListingsDoc, sel TargetSelector) (models.PipelineEntry, error) {
	switch n := sel.set(); {
	case n == 0:
		return models.PipelineEntry{}, validationf("a target is required: an index, --queue-id, --job-id, --folder or --company")
	case n > 1:
		return models.PipelineEntry{}, validationf("choose exactly one of index, --queue-id, --job-id, --folder, --company")
	}

	if sel.Index > 0 {
		pending := doc.JobPipeline.PendingMaterials
		if sel.Index > len(pending) {
			return models.PipelineEntry{}, validationf("index %d out of range: pending_materials has %d entries", sel.Index, len(pending))
		}
		return pending[sel.Index-1], nil
	}

	if sel.Company != "" {
		return resolveByCompany(doc, listings, sel.Company)
	}

	probe := models.PipelineEntry{QueueID: sel.QueueID, JobID: sel.JobID, FolderName: sel.Folder}
	if entry, _, ok := state.FindEntry(doc, probe); ok {
		return entry, nil
	}
	return models.PipelineEntry{}, validationf("no pipeline entry matches %s", describeSelector(sel))
}

func resolveByCompany(doc *models.StateDoc, listings *models.ListingsDoc, company string) (models.PipelineEntry, error) {
	needle := identity.Normalize(company)
	var matches []models.PipelineEntry
	seen := map[string]bool{}

	for _, stage := range models.Stages {
		for _, e := range state.Entries(doc, stage) {
			name := e.Company
			if name == "" {
				if l := ResolveListing(listings, e); l != nil {
					name = l.Company
				}
			}
			if name == "" || !strings.Contains(identity.Normalize(name), needle) {
				continue
			}
			id := identity.QueueIDFor(e)
			if seen[id] {
				continue
			}
			seen[id] = true
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return models.PipelineEntry{}, validationf("no pipeline entry matches company %q", company)
	case 1:
		return matches[0], nil
	}

	labels := make([]string, len(matches))
	for i, m := range matches {
		labels[i] = fmt.Sprintf("%s (%s)", m.Company, identity.QueueIDFor(m))
	}
	return models.PipelineEntry{}, validationf("company %q is ambiguous: %s", company, strings.Join(labels, ", "))
}

func describeSelector(sel TargetSelector) string {
	switch {
	case sel.QueueID != "":
		return "queue id " + sel.QueueID
	case sel.JobID != "":
		return "job " + sel.JobID
	case sel.Folder != "":
		return "folder " + sel.Folder
	}
	return "the given selector"
}
