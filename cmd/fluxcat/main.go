// Command fluxcat is a minimal demonstration client: it issues one query
// and prints one line per Record to stdout. It exists as a living
// integration example, not as part of the library's public surface.
package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	fluxclient "github.com/tsquery-go/fluxclient"
	"github.com/tsquery-go/fluxclient/internal/ilog"
	"github.com/tsquery-go/fluxclient/query"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		baseURL   string
		org       string
		token     string
		logLevel  string
		logFormat string
	)

	cmd := &cobra.Command{
		Use:   "fluxcat [flags] <flux query>",
		Short: "Stream a Flux query's results as annotated CSV, decoded one record at a time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ilog.NewWithStrings(os.Stderr, logLevel, logFormat)
			if err != nil {
				return err
			}

			client, err := fluxclient.NewClient(fluxclient.Config{
				BaseURL: baseURL,
				Org:     org,
				Token:   token,
				Logger:  logger,
			})
			if err != nil {
				return err
			}

			return run(cmd.Context(), client, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&baseURL, "url", "", "database base URL, e.g. https://localhost:8086")
	flags.StringVar(&org, "org", "", "organization identifier")
	flags.StringVar(&token, "token", "", "bearer token")
	flags.StringVar(&logLevel, "log-level", "info", "log level: error, warn, info, or debug")
	flags.StringVar(&logFormat, "log-format", "logfmt", "log format: json or logfmt")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("org")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func run(ctx context.Context, client *fluxclient.Client, flux string) error {
	stream, err := client.QueryStream(ctx, flux)
	if err != nil {
		return err
	}
	defer stream.Close()

	for rec, err := range stream.Seq(ctx) {
		if err != nil {
			return err
		}
		fmt.Println(recordLine(rec))
	}
	return nil
}

func recordLine(rec query.Record) string {
	cols := rec.Table().Columns()
	parts := make([]string, len(cols))
	for i, col := range cols {
		v, _ := rec.Get(col.Name)
		parts[i] = col.Name + "=" + v.String()
	}
	return strings.Join(parts, " ")
}
