package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/rs/zerolog"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"

	"github.com/carechart/carechart/internal/domain/carechart"
	"github.com/carechart/carechart/internal/platform/db"
	"github.com/carechart/carechart/internal/platform/fhirclient"
)

// chartFromBundle builds the chart for title from a searchset Bundle of
// QuestionnaireResponses. The whole history is folded and the most recent
// maxSubmissions points are kept.
func chartFromBundle(raw []byte, title string, questions carechart.QuestionSource, bounds carechart.Bounds, maxSubmissions int, logger zerolog.Logger) (carechart.Chart, error) {
	var head struct {
		ResourceType string `json:"resourceType"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return carechart.Chart{}, fmt.Errorf("decode bundle: %w", err)
	}
	if head.ResourceType != "Bundle" {
		return carechart.Chart{}, fmt.Errorf("expected a Bundle, got %q", head.ResourceType)
	}
	var bundle fhir.Bundle
	if err := json.Unmarshal(raw, &bundle); err != nil {
		return carechart.Chart{}, fmt.Errorf("decode bundle: %w", err)
	}
	responses, err := fhirclient.DecodeEntries[fhir.QuestionnaireResponse](bundle.Entry)
	if err != nil {
		return carechart.Chart{}, err
	}
	subs, err := carechart.SubmissionsFromResponses(responses, title, logger)
	if err != nil {
		return carechart.Chart{}, err
	}
	qs, err := questions.ChartQuestions(title)
	if err != nil {
		return carechart.Chart{}, err
	}
	return carechart.BuildChart(subs, qs, bounds).Last(maxSubmissions), nil
}

func renderChartJSON(w io.Writer, chart carechart.Chart) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(chart)
}

// renderChartTable prints one row per question with its values per checkup
// and the net trend between the first and last point.
func renderChartTable(w io.Writer, chart carechart.Chart) error {
	table := tablewriter.NewWriter(w)

	headers := append([]string{"Question"}, chart.Labels...)
	headers = append(headers, "Trend")
	table.Header(headers)

	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Header.Formatting.AutoFormat = tw.Off
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for _, ds := range chart.Datasets {
		row := make([]string, 0, len(ds.Data)+2)
		row = append(row, ds.Label)
		for _, v := range ds.Data {
			row = append(row, strconv.Itoa(v))
		}
		row = append(row, trend(ds.Data))
		data = append(data, row)
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

var (
	improving = color.New(color.FgGreen, color.Bold).SprintFunc()
	worsening = color.New(color.FgRed, color.Bold).SprintFunc()
	steady    = color.New(color.FgHiBlack).SprintFunc()
)

func trend(data []int) string {
	if len(data) == 0 {
		return steady("0")
	}
	delta := data[len(data)-1] - data[0]
	switch {
	case delta > 0:
		return improving(fmt.Sprintf("+%d ▲", delta))
	case delta < 0:
		return worsening(fmt.Sprintf("%d ▼", delta))
	default:
		return steady("0")
	}
}

func renderMigrationStatus(w io.Writer, statuses []db.MigrationStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Version", "Name", "Status", "Applied At"})

	var data [][]string
	for _, s := range statuses {
		status := "pending"
		appliedAt := ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		data = append(data, []string{strconv.Itoa(s.Version), s.Name, status, appliedAt})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
