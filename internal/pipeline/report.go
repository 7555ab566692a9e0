package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// RenderMarkdown renders a run result as the task report consumed by alerts.
func RenderMarkdown(r *RunResult) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Collector Run %s\n\n", r.Mode))
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Run ID | %s |\n", r.RunID))
	sb.WriteString(fmt.Sprintf("| Started | %s |\n", r.Started.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("| Duration | %s |\n", r.Finished.Sub(r.Started).Round(time.Second)))
	sb.WriteString(fmt.Sprintf("| Outcome | %s (exit %d) |\n", r.Outcome(), r.ExitCode()))
	if r.PeakMemory > 0 {
		sb.WriteString(fmt.Sprintf("| Peak Memory | %s |\n", humanize.IBytes(r.PeakMemory)))
	}
	sb.WriteString("\n")

	sb.WriteString("## Tasks\n\n")
	if len(r.Tasks) == 0 {
		sb.WriteString("No tasks ran.\n\n")
	} else {
		sb.WriteString("| Task | Duration | Rows | Status | Detail |\n")
		sb.WriteString("|------|----------|------|--------|--------|\n")
		for _, t := range r.Tasks {
			status := "OK"
			if t.Err != nil {
				status = "FAILED"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s | %s |\n",
				t.Name, t.Duration.Round(time.Millisecond), humanize.Comma(t.Rows), status, cell(t.Detail)))
		}
		sb.WriteString("\n")
	}

	if len(r.Skipped) > 0 {
		sb.WriteString("## Skipped Sources\n\n")
		for _, s := range r.Skipped {
			sb.WriteString(fmt.Sprintf("- %s\n", s))
		}
		sb.WriteString("\n")
	}

	if failed := r.Failed(); len(failed) > 0 || r.Err != nil {
		sb.WriteString("## Errors\n\n")
		for _, t := range failed {
			sb.WriteString(fmt.Sprintf("- **%s**: %s\n", t.Name, oneLine(t.Err.Error())))
		}
		if r.Err != nil && len(failed) == 0 {
			sb.WriteString(fmt.Sprintf("- %s\n", oneLine(r.Err.Error())))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func oneLine(s string) string {
	return strings.ReplaceAll(s, "\n", "; ")
}

func cell(s string) string {
	return strings.ReplaceAll(oneLine(s), "|", "/")
}
