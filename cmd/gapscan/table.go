package main

import (
	"fmt"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/anatolykoptev/go_gap/internal/engine"
	"github.com/anatolykoptev/go_gap/internal/engine/gaps"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const topicWidth = 48

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func renderOpportunities(opps []gaps.ScoredOpportunity) string {
	if len(opps) == 0 {
		return gaps.NoGapsMessage
	}
	headers := []string{"#", "Topic", "Score", "Priority", "Status", "Mentions", "Trend"}
	aligns := []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft, alignRight, alignLeft}
	rows := make([][]string, 0, len(opps))
	for _, o := range opps {
		status := string(o.Status)
		if o.Inconclusive {
			status += "?"
		}
		rows = append(rows, []string{
			strconv.Itoa(o.Rank),
			engine.TruncateRunes(o.Topic, topicWidth, "..."),
			fmt.Sprintf("%.1f", o.Total),
			string(o.Priority),
			status,
			strconv.Itoa(o.MentionCount),
			string(o.Trend.Trajectory),
		})
	}
	return renderTable(headers, rows, aligns)
}

func renderSummary(r gaps.RunReport) string {
	c := r.Counters
	rows := [][]string{
		{"Channel", r.Channel},
		{"Videos", fmt.Sprintf("%d ingested, %d cached, %d without captions, %d failed (of %d)",
			c.VideosIngested, c.VideosCached, c.VideosNoCaptions, c.VideosFailed, c.VideosRequested)},
		{"Comments", fmt.Sprintf("%d read, %d kept", c.CommentsRaw, c.CommentsFiltered)},
		{"Pain points", strconv.Itoa(c.PainPoints)},
		{"Gaps", fmt.Sprintf("%d clustered, %d verified", c.Clustered, c.Verified)},
		{"Backend", r.Backend},
	}
	return renderTable([]string{"Run", r.RunID}, rows, nil)
}
