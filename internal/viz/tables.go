package viz

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/san-kum/pksim/internal/dosing"
	"github.com/san-kum/pksim/internal/experiment"
	"github.com/san-kum/pksim/internal/observed"
	"github.com/san-kum/pksim/internal/pk"
	"github.com/san-kum/pksim/internal/solver"
)

// Missing is shown for values the service could not compute.
const Missing = "-"

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(BorderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return HeaderStyle
			}
			return CellStyle
		}).
		Headers(headers...)
}

// FormatValue prints v with four significant digits.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// FormatOptional prints v, or Missing when v is nil.
func FormatOptional(v *float64) string {
	if v == nil {
		return Missing
	}
	return FormatValue(*v)
}

// PKTable renders the PK summary, one row per compartment. Extra metrics follow the
// standard ones in sorted order.
func PKTable(s pk.Summary) string {
	extra := s.ExtraNames()
	headers := append([]string{"compartment", pk.MetricCmax, pk.MetricTmax, pk.MetricAUC, pk.MetricHalfLife}, extra...)
	t := newTable(headers...)
	for _, e := range s {
		row := []string{e.Compartment,
			FormatOptional(e.Cmax), FormatOptional(e.Tmax), FormatOptional(e.AUC), FormatOptional(e.HalfLife)}
		for _, name := range extra {
			row = append(row, FormatOptional(e.Extra[name]))
		}
		t.Row(row...)
	}
	return t.Render()
}

// FitTable renders the fitted parameters with their standard errors and 95% confidence
// intervals, followed by the goodness-of-fit line.
func FitTable(res *solver.FitResult) string {
	t := newTable("parameter", "value", "stderr", "95% CI")
	for _, e := range res.Params {
		ci := Missing
		if e.CILower != nil && e.CIUpper != nil {
			ci = fmt.Sprintf("[%s, %s]", FormatValue(*e.CILower), FormatValue(*e.CIUpper))
		}
		t.Row(e.Name, FormatValue(e.Value), FormatOptional(e.Stderr), ci)
	}

	var b strings.Builder
	b.WriteString(t.Render())
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s  %s %s",
		MetricLabel.Render("SSR"), MetricValue.Render(FormatOptional(res.SSRTotal)),
		MetricLabel.Render("nfev"), MetricValue.Render(strconv.Itoa(res.NFev)))
	if res.Message != "" {
		b.WriteString("\n")
		b.WriteString(Subtle.Render(res.Message))
	}
	return b.String()
}

// DoseTable renders a dose list with its ids.
func DoseTable(entries []dosing.Entry) string {
	t := newTable("id", "type", "compartment", "amount", "start", "duration", "repeat")
	for _, e := range entries {
		duration, repeat := Missing, Missing
		if e.Kind == dosing.Infusion {
			duration = FormatValue(e.Duration)
		}
		if e.Repeats() {
			repeat = fmt.Sprintf("every %s until %s", FormatValue(*e.RepeatEvery), FormatValue(*e.RepeatUntil))
		}
		t.Row(strconv.Itoa(e.ID), string(e.Kind), e.Compartment,
			FormatValue(e.Amount), FormatValue(e.StartTime), duration, repeat)
	}
	return t.Render()
}

// DatasetTable renders the observed datasets with their selection and mappings.
func DatasetTable(ds []*observed.Dataset) string {
	t := newTable("id", "name", "selected", "points", "mappings")
	for _, d := range ds {
		selected := "no"
		if d.Selected {
			selected = "yes"
		}
		var maps []string
		for _, col := range d.Data.Names {
			v, ok := d.Mapping(col)
			if !ok {
				v = Missing
			}
			maps = append(maps, col+"→"+v)
		}
		name := lipgloss.NewStyle().Foreground(lipgloss.Color(d.Color)).Render(d.Name)
		t.Row(strconv.Itoa(d.ID), name, selected, strconv.Itoa(d.Data.Len()), strings.Join(maps, " "))
	}
	return t.Render()
}

// GroupTable renders the experiment groups. Datasets resolves dataset names.
func GroupTable(groups []*experiment.Group, src experiment.Datasets) string {
	t := newTable("group", "dataset", "doses")
	for _, g := range groups {
		dataset := Missing
		if d, ok := src.Get(g.DatasetID); ok {
			dataset = fmt.Sprintf("%d %s", d.ID, d.Name)
		}
		var doses []string
		for _, e := range g.Doses.Entries() {
			doses = append(doses, fmt.Sprintf("#%d %s", e.ID, e.Protocol))
		}
		if len(doses) == 0 {
			doses = []string{Missing}
		}
		t.Row(strconv.Itoa(g.ID), dataset, strings.Join(doses, "\n"))
	}
	return t.Render()
}
