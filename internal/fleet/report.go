package fleet

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"

	"github.com/temirov/gitfleet/internal/githubapi"
)

const (
	reportHeaderRepositoryConstant    = "Repository"
	reportHeaderStatusConstant        = "Status"
	reportHeaderDetailConstant        = "Detail"
	reportSummaryTemplateConstant     = "%d succeeded, %d skipped, %d failed\n"
	reportHeaderDefaultBranchConstant = "Default Branch"
	reportHeaderArchivedConstant      = "Archived"
	reportHeaderForkConstant          = "Fork"
	repositoryCountTemplateConstant   = "%d repositories\n"
)

// ReportOptions controls report rendering.
type ReportOptions struct {
	Colorize bool
}

// WriterSupportsColor reports whether the writer is an interactive terminal.
func WriterSupportsColor(writer io.Writer) bool {
	file, isFile := writer.(*os.File)
	if !isFile || file == nil {
		return false
	}
	descriptor := file.Fd()
	return isatty.IsTerminal(descriptor) || isatty.IsCygwinTerminal(descriptor)
}

// RenderReport writes a table of results followed by a one-line summary.
func RenderReport(writer io.Writer, results []Result, options ReportOptions) error {
	table := tablewriter.NewWriter(writer)
	table.SetHeader([]string{reportHeaderRepositoryConstant, reportHeaderStatusConstant, reportHeaderDetailConstant})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)

	palette := newStatusPalette(options.Colorize)
	counts := make(map[Status]int, 3)
	for _, result := range results {
		counts[result.Status]++
		table.Append([]string{result.Repository.String(), palette.render(result.Status), result.Detail})
	}
	table.Render()

	_, writeError := fmt.Fprintf(writer, reportSummaryTemplateConstant, counts[StatusSucceeded], counts[StatusSkipped], counts[StatusFailed])
	return writeError
}

type statusPalette struct {
	colors map[Status]*color.Color
}

func newStatusPalette(colorize bool) statusPalette {
	colors := map[Status]*color.Color{
		StatusSucceeded: color.New(color.FgGreen),
		StatusSkipped:   color.New(color.FgYellow),
		StatusFailed:    color.New(color.FgRed, color.Bold),
	}
	for _, statusColor := range colors {
		if colorize {
			statusColor.EnableColor()
		} else {
			statusColor.DisableColor()
		}
	}
	return statusPalette{colors: colors}
}

func (palette statusPalette) render(status Status) string {
	statusColor, known := palette.colors[status]
	if !known {
		return string(status)
	}
	return statusColor.Sprint(string(status))
}

// RenderRepositories writes a table describing the selected repositories.
func RenderRepositories(writer io.Writer, repositories []githubapi.Repository) error {
	table := tablewriter.NewWriter(writer)
	table.SetHeader([]string{reportHeaderRepositoryConstant, reportHeaderDefaultBranchConstant, reportHeaderArchivedConstant, reportHeaderForkConstant})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	for _, repository := range repositories {
		table.Append([]string{
			repository.Identifier.String(),
			repository.DefaultBranch,
			strconv.FormatBool(repository.Archived),
			strconv.FormatBool(repository.Fork),
		})
	}
	table.Render()

	_, writeError := fmt.Fprintf(writer, repositoryCountTemplateConstant, len(repositories))
	return writeError
}
