package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"snapdiff/internal/api"
	"snapdiff/internal/apiclient"
)

func newCompareCommand(ctx *commandContext) *cobra.Command {
	var baselines bool
	var routes []string
	var devices []string
	var wait bool

	cmd := &cobra.Command{
		Use:   "compare <site-path>",
		Short: "Capture and compare a site's pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sitePath := args[0]
			return ctx.withClient(func(client *apiclient.Client) error {
				// Remember where the event stream stood before the batch starts.
				events, err := client.Events(cmd.Context(), sitePath, 0, false)
				if err != nil {
					return err
				}
				status, err := client.CompareSite(cmd.Context(), sitePath, api.CompareSiteRequest{
					GenerateBaselines: baselines,
					Routes:            routes,
					Devices:           devices,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Comparison %s for %s\n", status, sitePath)
				if !wait {
					return nil
				}
				detail, err := waitForSite(cmd.Context(), client, sitePath, events.Next)
				if err != nil {
					return err
				}
				fmt.Fprint(out, renderSiteDetail(detail, shouldColorize(out)))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&baselines, "baselines", false, "Recapture baselines as well as comparisons")
	cmd.Flags().StringSliceVar(&routes, "route", nil, "Limit to these routes (repeatable)")
	cmd.Flags().StringSliceVar(&devices, "device", nil, "Limit to these devices (repeatable)")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for every entry to finish loading and print the result")
	return cmd
}

// waitForSite follows the site's event stream until no entry is loading.
func waitForSite(ctx context.Context, client *apiclient.Client, sitePath string, since uint64) (api.SiteDetail, error) {
	for {
		detail, err := client.Site(ctx, sitePath)
		if err != nil {
			return api.SiteDetail{}, err
		}
		if !anyLoading(detail) {
			return detail, nil
		}
		events, err := client.Events(ctx, sitePath, since, true)
		if err != nil {
			return api.SiteDetail{}, err
		}
		since = events.Next
	}
}

func anyLoading(detail api.SiteDetail) bool {
	for _, page := range detail.Pages {
		for _, entry := range page.Screenshots {
			if entry.Loading {
				return true
			}
		}
	}
	return false
}
