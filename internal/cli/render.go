package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Veraticus/spice-ledger/internal/apply"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/Veraticus/spice-ledger/internal/rules"
	"github.com/charmbracelet/lipgloss"
)

// RenderTable lays out rows under headers in aligned columns.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i := 0; i < min(len(row), len(widths)); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	render := func(style lipgloss.Style, cells []string) string {
		out := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			out[i] = style.Width(widths[i] + style.GetPaddingRight()).Render(cell)
		}
		return strings.TrimRight(lipgloss.JoinHorizontal(lipgloss.Top, out...), " ")
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, render(TableHeaderStyle, headers))
	for _, row := range rows {
		lines = append(lines, render(TableCellStyle, row))
	}
	return strings.Join(lines, "\n")
}

// RenderRules renders rules in evaluation order.
func RenderRules(ruleSet []model.TransactionRule) string {
	if len(ruleSet) == 0 {
		return SubtleStyle.Render("No rules defined.")
	}

	rows := make([][]string, 0, len(ruleSet))
	for _, r := range ruleSet {
		enabled := SuccessIcon
		if !r.Enabled {
			enabled = SubtleStyle.Render("off")
		}
		rows = append(rows, []string{
			strconv.Itoa(r.ID),
			strconv.Itoa(r.Order),
			enabled,
			r.Name,
			DescribeAction(r.Action),
		})
	}
	return RenderTable([]string{"ID", "ORDER", "ON", "NAME", "ACTION"}, rows)
}

// DescribeAction summarizes what a rule action sets.
func DescribeAction(a model.RuleAction) string {
	var parts []string
	if a.Category != nil {
		parts = append(parts, "category="+*a.Category)
	}
	if a.IsInternal != nil {
		parts = append(parts, "internal="+*a.IsInternal)
	}
	if a.Notes != nil {
		parts = append(parts, fmt.Sprintf("notes=%q", *a.Notes))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, " ")
}

// DescribeFilters renders a filter tree as an indented outline.
func DescribeFilters(g model.GroupFilter) string {
	var b strings.Builder
	describeGroup(&b, g, 0)
	return strings.TrimRight(b.String(), "\n")
}

func describeGroup(b *strings.Builder, g model.GroupFilter, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s%s\n", indent, BoldStyle.Render(strings.ToUpper(string(g.Operator))))
	if g.IsEmpty() {
		fmt.Fprintf(b, "%s  %s\n", indent, SubtleStyle.Render("(empty, never matches)"))
	}
	for _, f := range g.Filters {
		fmt.Fprintf(b, "%s  %s %s %q\n", indent, f.Field, f.Operator, f.Value)
	}
	for _, sub := range g.Groups {
		describeGroup(b, sub, depth+1)
	}
}

// RenderIssues lists filter authoring issues as warnings.
func RenderIssues(issues []rules.Issue) string {
	lines := make([]string, 0, len(issues))
	for _, issue := range issues {
		lines = append(lines, FormatWarning(issue.String()))
	}
	return strings.Join(lines, "\n")
}

// RenderReport summarizes a rule application run.
func RenderReport(report apply.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Transactions examined: %d\n", report.Total)
	fmt.Fprintf(&b, "Matched:               %d\n", report.Matched)
	if report.Preview {
		fmt.Fprintf(&b, "Updated:               %s\n", SubtleStyle.Render("preview, nothing written"))
	} else {
		fmt.Fprintf(&b, "Updated:               %d\n", report.Updated)
	}

	if len(report.Breakdown) > 0 {
		rows := make([][]string, 0, len(report.Breakdown))
		for _, rc := range report.Breakdown {
			rows = append(rows, []string{strconv.Itoa(rc.RuleID), rc.RuleName, strconv.Itoa(rc.Matched)})
		}
		b.WriteString("\n")
		b.WriteString(RenderTable([]string{"RULE", "NAME", "MATCHED"}, rows))
		b.WriteString("\n")
	}

	if report.Failed() {
		b.WriteString("\n")
		for _, e := range report.Errors {
			b.WriteString(FormatError(e.Error()))
			b.WriteString("\n")
		}
	}

	title := ChartIcon + " Rule application"
	if report.Preview {
		title += " (preview)"
	}
	return RenderBox(title, strings.TrimRight(b.String(), "\n"))
}

// RenderTransactions renders transactions with signed amounts.
func RenderTransactions(txns []model.Transaction) string {
	if len(txns) == 0 {
		return SubtleStyle.Render("No transactions.")
	}

	rows := make([][]string, 0, len(txns))
	for _, t := range txns {
		amount := fmt.Sprintf("%.2f", t.Amount)
		if t.Type == model.TypeDebit {
			amount = ErrorStyle.Render("-" + amount)
		} else {
			amount = SuccessStyle.Render("+" + amount)
		}
		category := t.CategoryName()
		if category == "" {
			category = SubtleStyle.Render("-")
		}
		rows = append(rows, []string{
			t.Date.Format("2006-01-02"),
			amount,
			t.Description,
			category,
			t.BankAccount,
			t.ID,
		})
	}
	return RenderTable([]string{"DATE", "AMOUNT", "DESCRIPTION", "CATEGORY", "ACCOUNT", "ID"}, rows)
}
