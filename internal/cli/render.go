package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ChuLiYu/plantrack/internal/analytics"
	"github.com/ChuLiYu/plantrack/internal/dashboard"
	"github.com/ChuLiYu/plantrack/internal/datetime"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	maintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// cell pads s to width.
func cell(s string, width int) string {
	return lipgloss.NewStyle().Width(width).Render(s)
}

func renderStatus(view dashboard.View, cfg *Config, source string) string {
	header := titleStyle.Render("plantrack status")
	meta := mutedStyle.Render(fmt.Sprintf("%s · revision %s · %d jobs",
		datetime.FormatDayFirst(view.GeneratedAt), shortRevision(view.Revision), view.Jobs))
	if source != "" {
		meta += mutedStyle.Render(" · " + source)
	}

	sections := []string{header, meta, "", renderMachines(view, cfg), "", renderDowntime(view, cfg)}
	if view.Unparseable > 0 {
		sections = append(sections, "", warnStyle.Render(fmt.Sprintf("%d job(s) have no usable start/end and are left off the timeline", view.Unparseable)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderMachines(view dashboard.View, cfg *Config) string {
	rows := []string{
		headerStyle.Render(cell(cfg.Labels.Machine, 22) + cell("Week", 9) + cell("Month", 9) + cell("Overdue", 9) + "Today"),
	}
	for _, m := range view.Machines {
		name := fmt.Sprintf("%s %d (%d %s)", cfg.Labels.Machine, m.ID, m.Tonnage, cfg.Labels.Ton)
		rows = append(rows,
			cell(name, 22)+
				cell(capacity(m.Weekly), 9)+
				cell(capacity(m.Monthly), 9)+
				cell(fmt.Sprintf("%d", m.Overdue), 9)+
				active(m.Active))
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func renderDowntime(view dashboard.View, cfg *Config) string {
	if len(view.Downtime) == 0 {
		return mutedStyle.Render("No plan loaded.")
	}
	rows := []string{
		headerStyle.Render(cell(cfg.Labels.Machine, 22) + cell("Downtime h", 12) + cell("Idle h", 12) + "Total loss h"),
	}
	for _, d := range view.Downtime {
		rows = append(rows,
			cell(fmt.Sprintf("%s %d", cfg.Labels.Machine, d.MachineID), 22)+
				cell(fmt.Sprintf("%.2f", d.RecordedDowntimeHours), 12)+
				cell(fmt.Sprintf("%.2f", d.IdleHours), 12)+
				fmt.Sprintf("%.2f", d.TotalLossHours))
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func capacity(r analytics.CapacityReading) string {
	s := fmt.Sprintf("%d%%", r.Percent)
	if r.Overbooked {
		return warnStyle.Render(s + "!")
	}
	return s
}

func active(a dashboard.ActiveJob) string {
	switch a.State {
	case analytics.StateProduction:
		return okStyle.Render("production") + " " + fmt.Sprintf("%s %s (%s → %s)", a.PartNo, a.PartName, a.Start, a.End)
	case analytics.StateMaintenance:
		return maintStyle.Render("maintenance") + " " + fmt.Sprintf("%s → %s", a.Start, a.End)
	}
	return mutedStyle.Render("idle")
}

func shortRevision(rev string) string {
	if len(rev) > 8 {
		return rev[:8]
	}
	return rev
}
