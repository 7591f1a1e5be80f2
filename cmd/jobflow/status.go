package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"jobflow/internal/collab"
	"jobflow/internal/config"
	"jobflow/internal/identity"
	"jobflow/internal/materials"
	"jobflow/internal/pipeline"
	"jobflow/internal/review"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the pipeline at a glance",
	Long: `Shows stage counts, the review queue with the current item marked,
the numbered pending list that materials-ready and submit accept as an
index, lock state and collaborator availability.`,
	RunE: runStatus,
}

var (
	successColor = lipgloss.Color("#10B981")
	warningColor = lipgloss.Color("#F59E0B")
	errorColor   = lipgloss.Color("#EF4444")
	mutedColor   = lipgloss.Color("#6B7280")
	cyanColor    = lipgloss.Color("#06B6D4")

	headerStyle  = lipgloss.NewStyle().Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(successColor)
	warnStyle    = lipgloss.NewStyle().Foreground(warningColor)
	errStyle     = lipgloss.NewStyle().Foreground(errorColor)
	mutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	currentStyle = lipgloss.NewStyle().Foreground(cyanColor)
)

type statusReport struct {
	Stages        stageCounts   `json:"stages"`
	CurrentQueue  string        `json:"currentQueueId,omitempty"`
	SkippedCount  int           `json:"skippedCount"`
	ReviewQueue   []reviewLine  `json:"reviewQueue"`
	Pending       []pendingLine `json:"pending"`
	Lock          *lockLine     `json:"lock,omitempty"`
	Collaborators []collab.Info `json:"collaborators"`
	OpenFollowUps int           `json:"openFollowUps"`
}

type stageCounts struct {
	Pending   int `json:"pending_materials"`
	Ready     int `json:"materials_ready"`
	Submitted int `json:"submitted_applications"`
}

type reviewLine struct {
	QueueID string  `json:"queueId"`
	Label   string  `json:"label"`
	Stage   string  `json:"stage"`
	Score   float64 `json:"score"`
	Drafts  string  `json:"drafts"`
	Current bool    `json:"current"`
	Skipped bool    `json:"skipped"`
}

type pendingLine struct {
	Index   int    `json:"index"`
	QueueID string `json:"queueId"`
	Label   string `json:"label"`
	Drafts  string `json:"drafts"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	st := newStore(cfg)
	doc := st.LoadState()
	listings := st.LoadListings()

	queue := review.Build(doc, listings, cfg.Paths.Materials)
	current := review.Current(doc, queue, "")
	currentID := ""
	if current != nil {
		currentID = identity.QueueIDFor(current.Entry)
	}
	skipped := map[string]bool{}
	for _, id := range doc.JobPipeline.Review.SkippedQueueIDs {
		skipped[id] = true
	}

	rep := statusReport{
		Stages: stageCounts{
			Pending:   len(doc.JobPipeline.PendingMaterials),
			Ready:     len(doc.JobPipeline.MaterialsReady),
			Submitted: len(doc.JobPipeline.SubmittedApplications),
		},
		CurrentQueue: currentID,
		SkippedCount: len(doc.JobPipeline.Review.SkippedQueueIDs),
		ReviewQueue:  make([]reviewLine, 0, len(queue)),
		Pending:      make([]pendingLine, 0, len(doc.JobPipeline.PendingMaterials)),
	}

	for _, it := range queue {
		id := identity.QueueIDFor(it.Entry)
		rep.ReviewQueue = append(rep.ReviewQueue, reviewLine{
			QueueID: id,
			Label:   itemLabel(it),
			Stage:   string(it.Stage),
			Score:   it.Score(),
			Drafts:  draftsLabel(it),
			Current: id == currentID,
			Skipped: skipped[id],
		})
	}

	// Index numbering must match what materials-ready and submit accept.
	for i, e := range doc.JobPipeline.PendingMaterials {
		sig := materials.Scan(cfg.Paths.Materials, e.FolderName)
		rep.Pending = append(rep.Pending, pendingLine{
			Index:   i + 1,
			QueueID: identity.QueueIDFor(e),
			Label:   entryLabel(e),
			Drafts:  draftsWord(sig.HasCoverLetter, sig.HasResume),
		})
	}

	rep.Lock = inspectLockLine(cfg.Paths.Lock)
	rep.Collaborators = collab.Detect(collaboratorRunners(cfg)...)
	rep.OpenFollowUps = countOpenFollowUps(cfg)

	if jsonOut {
		return printJSON(rep)
	}
	printStatus(rep)
	return nil
}

type lockLine struct {
	PID        int    `json:"pid"`
	AcquiredAt string `json:"acquiredAt,omitempty"`
	AgeSeconds int64  `json:"ageSeconds"`
	Stale      bool   `json:"stale"`
}

func inspectLockLine(path string) *lockLine {
	info, age, err := pipeline.InspectLock(path)
	if err != nil || info == nil {
		return nil
	}
	return &lockLine{
		PID:        info.PID,
		AcquiredAt: info.AcquiredAt,
		AgeSeconds: int64(age / time.Second),
		Stale:      pipeline.LockStale(age),
	}
}

func collaboratorRunners(cfg *config.Config) []collab.Runner {
	c := buildCollaborators(cfg, false, false, false, false)
	return []collab.Runner{c.Discovery, c.Scrape, c.Qualify, c.Write}
}

func countOpenFollowUps(cfg *config.Config) int {
	hist, err := openHistory(cfg)
	if err != nil || hist == nil {
		return 0
	}
	defer hist.Close()
	tasks, err := hist.ListFollowUps(false)
	if err != nil {
		return 0
	}
	return len(tasks)
}

func printStatus(rep statusReport) {
	fmt.Println(headerStyle.Render("Pipeline"))
	fmt.Printf("  pending_materials       %d\n", rep.Stages.Pending)
	fmt.Printf("  materials_ready         %d\n", rep.Stages.Ready)
	fmt.Printf("  submitted_applications  %d\n", rep.Stages.Submitted)

	fmt.Println()
	fmt.Println(headerStyle.Render(fmt.Sprintf("Review queue: %d item(s), %d skipped", len(rep.ReviewQueue), rep.SkippedCount)))
	for _, l := range rep.ReviewQueue {
		line := fmt.Sprintf("  %s  score %.0f  drafts: %s", truncate(l.Label, 60), l.Score, l.Drafts)
		switch {
		case l.Current:
			fmt.Println(currentStyle.Render("> " + line[2:]))
		case l.Skipped:
			fmt.Println(mutedStyle.Render(line + "  [skipped]"))
		default:
			fmt.Println(line)
		}
	}
	if len(rep.ReviewQueue) == 0 {
		fmt.Println(mutedStyle.Render("  nothing to review"))
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("Pending materials"))
	for _, p := range rep.Pending {
		fmt.Printf("  %d. %s  drafts: %s\n", p.Index, truncate(p.Label, 60), p.Drafts)
	}
	if len(rep.Pending) == 0 {
		fmt.Println(mutedStyle.Render("  none"))
	}

	fmt.Println()
	switch {
	case rep.Lock == nil:
		fmt.Println("Lock: " + okStyle.Render("free"))
	case rep.Lock.Stale:
		fmt.Printf("Lock: %s\n", errStyle.Render(fmt.Sprintf("stale, held by pid %d for %ds", rep.Lock.PID, rep.Lock.AgeSeconds)))
	default:
		fmt.Printf("Lock: %s\n", warnStyle.Render(fmt.Sprintf("held by pid %d for %ds", rep.Lock.PID, rep.Lock.AgeSeconds)))
	}

	if len(rep.Collaborators) > 0 {
		fmt.Println(headerStyle.Render("Collaborators"))
		for _, ci := range rep.Collaborators {
			mark := okStyle.Render("ok     ")
			if !ci.Available {
				mark = errStyle.Render("missing")
			}
			fmt.Printf("  %-10s %s  %s\n", ci.Name, mark, mutedStyle.Render(truncate(ci.Command, 50)))
		}
	}

	fmt.Printf("Open follow-ups: %d\n", rep.OpenFollowUps)
}
