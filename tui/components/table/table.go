package table

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	ltable "github.com/charmbracelet/lipgloss/table"

	"github.com/wardentools/warden/tui/theme"
)

// base returns a bordered table that styles the header row and shades
// every other data row per the theme. StyleFunc row indices are
// zero-based for data rows; ltable.HeaderRow marks the header.
func base(t *theme.Theme) *ltable.Table {
	return ltable.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(t.Colors.Border)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == ltable.HeaderRow {
				return t.TableHeader.Padding(0, 1)
			}
			cell := lipgloss.NewStyle().Padding(0, 1)
			if t.UseAlternatingRows && row%2 == 1 {
				cell = cell.Background(t.Colors.RowShade)
			}
			return cell
		})
}

// SimpleTable renders headers and rows as one bordered table string.
func SimpleTable(headers []string, rows [][]string) string {
	tbl := base(theme.DefaultTheme).Headers(headers...)
	for _, r := range rows {
		tbl = tbl.Row(r...)
	}
	return tbl.String()
}

// StatusTable renders label/value pairs with muted labels and no
// border, for status summaries.
func StatusTable(items [][]string) string {
	t := theme.DefaultTheme
	tbl := ltable.New().
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		StyleFunc(func(int, int) lipgloss.Style {
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, item := range items {
		if len(item) < 2 {
			continue
		}
		tbl = tbl.Row(t.Muted.Render(item[0]+":"), item[1])
	}
	return tbl.String()
}

// SelectableTable renders rows with a selection arrow in the left
// gutter, outside the border. A negative selectedIndex renders no
// arrow.
func SelectableTable(headers []string, rows [][]string, selectedIndex int) string {
	t := theme.DefaultTheme

	tbl := base(t)
	if len(headers) > 0 {
		tbl = tbl.Headers(headers...)
	}
	for _, r := range rows {
		tbl = tbl.Row(r...)
	}

	// Rendered line offsets: top border first, then with headers a
	// header row and separator before the first data row.
	selectedLine := 1 + selectedIndex
	if len(headers) > 0 {
		selectedLine = 3 + selectedIndex
	}

	arrow := t.Highlight.Render(theme.IconArrowRightBold)
	lines := strings.Split(tbl.String(), "\n")
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if selectedIndex >= 0 && i == selectedLine {
			sb.WriteString(arrow + " " + line)
		} else {
			sb.WriteString("  " + line)
		}
	}
	return sb.String()
}
