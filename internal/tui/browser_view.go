package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/tablesync/internal/notify"
	"github.com/rshade/tablesync/internal/pagination"
)

const helpText = "/ search · 1-9 sort · n more · space select · v select page · D/A/X delete/activate/deactivate · r reload · q quit"

// View implements tea.Model.
func (m Browser) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{
		HeaderStyle.Render(m.title),
		m.renderHeader(),
		m.renderBody(),
		m.renderFooter(),
	}
	if line := m.renderNotice(); line != "" {
		sections = append(sections, line)
	}
	switch {
	case m.confirm != "":
		n := len(m.snap.Selection)
		sections = append(sections, WarningStyle.Render(
			fmt.Sprintf("%s %s %s? (y/N)", strings.ToUpper(string(m.confirm[:1]))+string(m.confirm[1:]),
				formatCount(n), plural(n, "record", "records"))))
	case m.searching || m.input.Value() != "":
		sections = append(sections, m.input.View())
	}
	sections = append(sections, SubtleStyle.Render(helpText))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Browser) renderHeader() string {
	var b strings.Builder
	b.WriteString("    ")
	for i, col := range m.layout.columns {
		title := col
		if i < 9 {
			title = fmt.Sprintf("%d:%s", i+1, col)
		}
		if m.snap.Sort.Column == col {
			if m.snap.Sort.Direction == pagination.SortOrderDesc {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		b.WriteString(fit(title, m.layout.colWidth))
		b.WriteString(" ")
	}
	return TableHeaderStyle.Render(strings.TrimRight(b.String(), " "))
}

func (m Browser) renderBody() string {
	if m.list.ItemCount() == 0 {
		if m.snap.IsLoading {
			return m.spinner.View() + " Loading..."
		}
		return SubtleStyle.Render("No records found.")
	}
	return m.list.View()
}

func (m Browser) renderFooter() string {
	total := m.snap.Meta.Total
	if total == 0 {
		total = len(m.snap.Rows)
	}
	parts := []string{
		fmt.Sprintf("%s of %s %s", formatCount(len(m.snap.Rows)), formatCount(total), plural(total, "record", "records")),
	}
	if last := m.snap.Meta.LastPage; last > 0 {
		parts = append(parts, fmt.Sprintf("page %d/%d", m.snap.Page, last))
	}
	if n := len(m.snap.Selection); n > 0 {
		parts = append(parts, CheckedStyle.Render(fmt.Sprintf("%s selected", formatCount(n))))
	}
	if m.snap.HasMoreData {
		parts = append(parts, "more available")
	}
	if m.snap.SearchPending {
		parts = append(parts, "searching…")
	}
	if m.snap.PollInterval > 0 {
		parts = append(parts, "live "+m.snap.PollInterval.String())
	}
	line := LabelStyle.Render(strings.Join(parts, " · "))
	if m.snap.Busy() {
		line = m.spinner.View() + " " + line
	}
	return line
}

func (m Browser) renderNotice() string {
	if m.lastErr != nil && (m.notice == nil || m.notice.Variant != notify.VariantDestructive) {
		return CriticalStyle.Render("Error: " + m.lastErr.Error())
	}
	if m.notice == nil {
		return ""
	}
	text := m.notice.Title
	if m.notice.Description != "" {
		text += ": " + m.notice.Description
	}
	switch m.notice.Variant {
	case notify.VariantSuccess:
		return SuccessStyle.Render(text)
	case notify.VariantDestructive:
		return CriticalStyle.Render(text)
	default:
		return InfoStyle.Render(text)
	}
}

// render draws one row: a selection mark then one cell per column.
func (l *rowLayout) render(item rowItem, cursor bool) string {
	var b strings.Builder
	if item.checked {
		b.WriteString(CheckedStyle.Render("[x]"))
	} else {
		b.WriteString("[ ]")
	}
	b.WriteString(" ")
	for i, col := range l.columns {
		if i > 0 {
			b.WriteString(" ")
		}
		b.WriteString(fit(item.record.String(col), l.colWidth))
	}
	if cursor {
		return TableSelectedStyle.Render(b.String())
	}
	return b.String()
}
