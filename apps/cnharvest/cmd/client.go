// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"context"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.mondoo.com/cnharvest/cli/config"
	"go.mondoo.com/cnharvest/harvest"
	"go.mondoo.com/cnharvest/logger"
	"go.mondoo.com/cnharvest/microsoft"
)

// loadedConfig reads the merged configuration, flags and environment
// variables included, and reports the config source to the user.
func loadedConfig() *config.Config {
	opts, err := config.Read()
	if err != nil {
		log.Fatal().Err(err).Msg("could not load configuration")
	}
	config.DisplayUsedConfig()
	return opts
}

func clientOptions(baseURL string, opts *config.Config) harvest.Options {
	tokenSource, err := microsoft.Token(opts.Token)
	if err != nil {
		log.Fatal().Err(err).Msg("could not resolve API token")
	}

	window, err := opts.Window()
	if err != nil {
		log.Fatal().Err(err).Msg("could not parse rate window")
	}

	return harvest.Options{
		BaseURL:     baseURL,
		TokenSource: tokenSource,
		RateLimit:   harvest.RateLimit{Requests: opts.RateRequests, Window: window},
		TraceHTTP:   zerolog.GlobalLevel() == zerolog.TraceLevel,
	}
}

// defenderClient builds the client for the Defender for Endpoint API.
func defenderClient(opts *config.Config) *harvest.Client {
	return defenderDetailClient(opts, 0)
}

// defenderDetailClient builds a Defender client that spaces out detail
// lookups, used for the per machine vulnerability walk.
func defenderDetailClient(opts *config.Config, detailDelay time.Duration) *harvest.Client {
	o := clientOptions(opts.DefenderEndpoint(), opts)
	o.DetailDelay = detailDelay
	client, err := harvest.NewClient(o)
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize Defender API client")
	}
	return client
}

// graphClient builds the client for the Microsoft Graph API.
func graphClient(opts *config.Config) *harvest.Client {
	client, err := harvest.NewClient(clientOptions(opts.GraphEndpoint(), opts))
	if err != nil {
		log.Fatal().Err(err).Msg("could not initialize Graph API client")
	}
	return client
}

// runContext tags all work of one command invocation with a fresh run ID.
func runContext() (context.Context, string) {
	runID := logger.NewRunID()
	return logger.RunScopedContext(context.Background(), runID), runID
}

// printRunSummary renders the closing run statistics to stdout.
func printRunSummary(runID string, rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"run " + runID, ""})
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.AppendBulk(rows)
	table.Render()
}
