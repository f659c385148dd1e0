package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"snapdiff/internal/api"
	"snapdiff/internal/apiclient"
)

func newSiteCommand(ctx *commandContext) *cobra.Command {
	siteCmd := &cobra.Command{
		Use:   "site",
		Short: "Manage tracked sites",
	}

	siteCmd.AddCommand(newSiteListCommand(ctx))
	siteCmd.AddCommand(newSiteAddCommand(ctx))
	siteCmd.AddCommand(newSiteShowCommand(ctx))
	siteCmd.AddCommand(newSiteThresholdCommand(ctx))
	siteCmd.AddCommand(newSiteRemoveCommand(ctx))

	return siteCmd
}

func newSiteListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tracked sites",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				sites, err := client.ListSites(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, sites)
				}
				out := cmd.OutOrStdout()
				if len(sites) == 0 {
					fmt.Fprintln(out, "No sites registered")
					return nil
				}
				rows := make([][]string, 0, len(sites))
				for _, site := range sites {
					rows = append(rows, []string{
						site.Path,
						site.Name,
						site.BaselineURL,
						site.ComparisonURL,
						formatThreshold(site),
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{Title: "Site"},
					{Title: "Name"},
					{Title: "Baseline"},
					{Title: "Comparison"},
					{Title: "Threshold", Right: true},
				}, rows, tableOptions{Noun: "site"}))
				return nil
			})
		},
	}

	addJSONFlag(cmd, &asJSON, "a table")
	return cmd
}

func newSiteAddCommand(ctx *commandContext) *cobra.Command {
	var name string
	var cookiesFile string
	var threshold float64

	cmd := &cobra.Command{
		Use:   "add <site-path> <baseline-url> <comparison-url>",
		Short: "Register a site",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.CreateSiteRequest{
				SitePath:      args[0],
				Name:          strings.TrimSpace(name),
				BaselineURL:   args[1],
				ComparisonURL: args[2],
			}
			if cookiesFile != "" {
				data, err := os.ReadFile(cookiesFile)
				if err != nil {
					return fmt.Errorf("read cookies file: %w", err)
				}
				req.CookieData = string(data)
			}
			if cmd.Flags().Changed("threshold") {
				req.FailingThreshold = &threshold
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				site, err := client.CreateSite(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered site %s (threshold %s)\n", site.Path, formatThreshold(site))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&cookiesFile, "cookies-file", "", "JSON cookie export applied to every capture of this site")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Failing threshold in percent (defaults to comparison.default_failing_threshold)")
	return cmd
}

func newSiteShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <site-path>",
		Short: "Show a site's pages and the latest comparison per device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				detail, err := client.Site(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, detail)
				}
				out := cmd.OutOrStdout()
				fmt.Fprint(out, renderSiteDetail(detail, shouldColorize(out)))
				return nil
			})
		},
	}

	addJSONFlag(cmd, &asJSON, "text")
	return cmd
}

func newSiteThresholdCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "threshold <site-path> <percent|default>",
		Short: "Set or clear a site's failing threshold",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			threshold, err := parseThreshold(args[1])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				site, err := client.SetThreshold(cmd.Context(), args[0], threshold)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Site %s now fails above %s\n", site.Path, formatThreshold(site))
				return nil
			})
		},
	}
}

func newSiteRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <site-path>",
		Short: "Delete a site with its pages and devices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeleteSite(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed site %s\n", args[0])
				return nil
			})
		},
	}
}

// parseThreshold accepts a percentage or "default" to clear the override.
func parseThreshold(value string) (*float64, error) {
	value = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "%"))
	switch strings.ToLower(value) {
	case "default", "clear", "none":
		return nil, nil
	}
	pct, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid threshold %q: expected a percentage or \"default\"", value)
	}
	return &pct, nil
}

func formatThreshold(site api.Site) string {
	text := strconv.FormatFloat(site.EffectiveThreshold, 'f', -1, 64) + "%"
	if site.FailingThreshold == nil {
		text += " (default)"
	}
	return text
}
