// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"go.mondoo.com/cnharvest/cli/config"
	"go.mondoo.com/cnharvest/enrich"
	"go.mondoo.com/cnharvest/reporter"
)

// enrichmentFlags registers the subnet matching flags shared by all
// commands that join against the reference table.
func enrichmentFlags(flagset *flag.FlagSet, defaultSelector string, defaultExplode bool) {
	flagset.String("table", "", "subnet reference table (CSV with subnet, scope and site columns)")
	flagset.Int("mask-length", 0, "prefix length for subnet matching (default 24)")
	flagset.StringSlice("selector", []string{defaultSelector}, "glob for the record fields that hold address candidates")
	flagset.Bool("explode", defaultExplode, "write one row per address and match instead of one row per record")
	flagset.Bool("prefix-match", false, "match by literal string prefix instead of masked network compare")
	flagset.Bool("keep-empty", false, "keep records without any address candidate in the report")
}

// outputFlags registers the CSV sink flags.
func outputFlags(flagset *flag.FlagSet, defaultOutput string) {
	flagset.StringP("output", "o", defaultOutput, "write the report to this file")
	flagset.Int("ceiling", 0, "split the report after this many rows per file")
	flagset.Bool("append", false, "append to the output file instead of overwriting it")
}

// loadReferenceTable resolves the subnet table from flags, config and
// the table sitting next to the loaded config file, in that order.
func loadReferenceTable(conf *config.Config) *enrich.Table {
	path := conf.ReferenceTable
	if path == "" {
		if sibling, ok := config.ReferenceTablePath(config.Path); ok {
			path = sibling
		}
	}
	if path == "" {
		log.Fatal().Msg("no subnet reference table, pass --table or set reference_table in the config")
	}

	table, err := enrich.LoadTable(afero.NewOsFs(), path)
	if err != nil {
		log.Fatal().Err(err).Msg("could not load subnet reference table")
	}
	log.Info().Str("table", path).Int("entries", table.Len()).Msg("loaded subnet reference table")
	return table
}

// newJoiner assembles the enrichment joiner from command flags.
func newJoiner(cmd *cobra.Command, table *enrich.Table, conf *config.Config) *enrich.Joiner {
	explode, _ := cmd.Flags().GetBool("explode")
	prefixMatch, _ := cmd.Flags().GetBool("prefix-match")
	keepEmpty, _ := cmd.Flags().GetBool("keep-empty")
	selectors, _ := cmd.Flags().GetStringSlice("selector")

	mode := enrich.Flatten
	if explode {
		mode = enrich.Explode
	}
	match := enrich.MatchMasked
	if prefixMatch {
		match = enrich.MatchPrefix
	}

	joiner, err := enrich.NewJoiner(enrich.Options{
		Table:     table,
		Mode:      mode,
		Match:     match,
		MaskLen:   conf.MaskLength,
		Selectors: selectors,
		KeepEmpty: keepEmpty,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not configure subnet matching")
	}
	return joiner
}

// newReportWriter builds the CSV sink from command flags.
func newReportWriter(cmd *cobra.Command, path string) *reporter.Writer {
	ceiling, _ := cmd.Flags().GetInt("ceiling")
	appendMode, _ := cmd.Flags().GetBool("append")

	mode := reporter.Overwrite
	if appendMode {
		mode = reporter.Append
	}

	w, err := reporter.NewWriter(reporter.Options{
		Path:    path,
		Mode:    mode,
		Ceiling: ceiling,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("could not open report output")
	}
	return w
}
