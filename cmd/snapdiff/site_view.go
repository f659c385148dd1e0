package main

import (
	"fmt"
	"strconv"
	"strings"

	"snapdiff/internal/api"
	"snapdiff/internal/store"
)

const (
	entryPending  = "pending"
	entryLoading  = "loading"
	entryErrored  = "error"
	entryBaseline = "baseline"
	entryFailing  = "failing"
	entryPassing  = "passing"
)

// entryState names the state of one page/device entry. An entry with a
// baseline but no comparison yet reads as "baseline".
func entryState(entry store.Entry, ok bool) string {
	switch {
	case !ok:
		return entryPending
	case entry.Loading:
		return entryLoading
	case entry.Errored():
		return entryErrored
	case entry.ComparisonScreenshot == "" && entry.BaselineScreenshot != "":
		return entryBaseline
	case entry.ComparisonScreenshot == "":
		return entryPending
	case entry.Failing:
		return entryFailing
	default:
		return entryPassing
	}
}

func renderSiteDetail(detail api.SiteDetail, colorize bool) string {
	site := detail.Site
	var b strings.Builder
	fmt.Fprintf(&b, "Site:        %s\n", site.Path)
	if site.Name != "" {
		fmt.Fprintf(&b, "Name:        %s\n", site.Name)
	}
	fmt.Fprintf(&b, "Baseline:    %s\n", site.BaselineURL)
	fmt.Fprintf(&b, "Comparison:  %s\n", site.ComparisonURL)
	fmt.Fprintf(&b, "Threshold:   %s\n", formatThreshold(site))
	fmt.Fprintf(&b, "Cookies:     %s\n", yesNo(site.HasCookies))

	if len(detail.Devices) == 0 {
		b.WriteString("\nNo devices registered\n")
	}
	if len(detail.Pages) == 0 {
		b.WriteString("\nNo pages registered\n")
		return b.String()
	}

	rows := make([][]string, 0, len(detail.Pages)*max(len(detail.Devices), 1))
	for _, page := range detail.Pages {
		id := strconv.FormatInt(page.ID, 10)
		if len(detail.Devices) == 0 {
			rows = append(rows, []string{id, page.Route, "", entryPending, "", ""})
			continue
		}
		for _, device := range detail.Devices {
			entry, ok := page.Screenshots[device.Name]
			state := entryState(entry, ok)
			diff := ""
			note := ""
			switch state {
			case entryFailing, entryPassing:
				diff = strconv.FormatFloat(entry.PercentageDiff, 'f', 2, 64) + "%"
			case entryErrored:
				note = entry.Error
			}
			rows = append(rows, []string{id, page.Route, device.Name, state, diff, note})
		}
	}
	b.WriteString("\n")
	b.WriteString(renderTable([]column{
		{Title: "ID", Right: true, Merge: true},
		{Title: "Route", Merge: true},
		{Title: "Device"},
		{Title: "Status", State: true},
		{Title: "Diff", Right: true},
		{Title: "Error"},
	}, rows, tableOptions{Colorize: colorize}))
	b.WriteString("\n")
	return b.String()
}
