package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"snapdiff/internal/api"
	"snapdiff/internal/apiclient"
)

func newDeviceCommand(ctx *commandContext) *cobra.Command {
	deviceCmd := &cobra.Command{
		Use:   "device",
		Short: "Manage the devices a site is captured with",
	}

	deviceCmd.AddCommand(newDeviceAddCommand(ctx))
	deviceCmd.AddCommand(newDeviceListCommand(ctx))

	return deviceCmd
}

func newDeviceAddCommand(ctx *commandContext) *cobra.Command {
	var userAgent string
	var username string
	var password string

	cmd := &cobra.Command{
		Use:   "add <site-path> <name> <width>x<height>",
		Short: "Register a device",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			width, height, err := parseResolution(args[2])
			if err != nil {
				return err
			}
			req := api.AddDeviceRequest{
				Name:      args[1],
				Width:     width,
				Height:    height,
				UserAgent: strings.TrimSpace(userAgent),
			}
			if username != "" {
				req.Login = &api.Login{Username: username, Password: password}
			}
			return ctx.withClient(func(client *apiclient.Client) error {
				device, err := client.AddDevice(cmd.Context(), args[0], req)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added device %s (%dx%d)\n", device.Name, device.Width, device.Height)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&userAgent, "user-agent", "", "User agent override")
	cmd.Flags().StringVar(&username, "username", "", "Basic-auth username")
	cmd.Flags().StringVar(&password, "password", "", "Basic-auth password")
	return cmd
}

func newDeviceListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <site-path>",
		Short: "List a site's devices",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *apiclient.Client) error {
				devices, err := client.ListDevices(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, devices)
				}
				out := cmd.OutOrStdout()
				if len(devices) == 0 {
					fmt.Fprintln(out, "No devices registered")
					return nil
				}
				rows := make([][]string, 0, len(devices))
				for _, d := range devices {
					rows = append(rows, []string{
						d.Name,
						fmt.Sprintf("%dx%d", d.Width, d.Height),
						d.UserAgent,
						d.LoginUsername,
					})
				}
				fmt.Fprintln(out, renderTable([]column{
					{Title: "Device"},
					{Title: "Resolution", Right: true},
					{Title: "User Agent"},
					{Title: "Login"},
				}, rows, tableOptions{Noun: "device"}))
				return nil
			})
		},
	}

	addJSONFlag(cmd, &asJSON, "a table")
	return cmd
}

// parseResolution reads "1280x800".
func parseResolution(value string) (int, int, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(value)), "x")
	if !ok {
		return 0, 0, fmt.Errorf("invalid resolution %q: expected WIDTHxHEIGHT", value)
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution %q: bad width", value)
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return 0, 0, fmt.Errorf("invalid resolution %q: bad height", value)
	}
	return width, height, nil
}
