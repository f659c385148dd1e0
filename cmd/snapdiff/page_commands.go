package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"snapdiff/internal/apiclient"
)

func newPageCommand(ctx *commandContext) *cobra.Command {
	pageCmd := &cobra.Command{
		Use:   "page",
		Short: "Manage the routes tracked for a site",
	}

	pageCmd.AddCommand(&cobra.Command{
		Use:   "add <site-path> <route>",
		Short: "Track a route",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				page, err := client.AddPage(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added page %d: %s\n", page.ID, page.Route)
				return nil
			})
		},
	})

	pageCmd.AddCommand(&cobra.Command{
		Use:   "remove <site-path> <page-id>",
		Short: "Stop tracking a route",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid page id %q", args[1])
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				if err := client.DeletePage(cmd.Context(), args[0], id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed page %d\n", id)
				return nil
			})
		},
	})

	return pageCmd
}
