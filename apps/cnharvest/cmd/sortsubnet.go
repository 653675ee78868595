// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"encoding/csv"
	"sort"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mondoo.com/cnharvest/enrich"
	"go.mondoo.com/cnharvest/harvest"
	"go.mondoo.com/cnharvest/logger"
	"go.mondoo.com/cnharvest/reporter"
)

func init() {
	rootCmd.AddCommand(sortSubnetCmd)
	sortSubnetCmd.Flags().StringP("input", "i", "", "input CSV report to enrich")
	sortSubnetCmd.MarkFlagRequired("input")
	outputFlags(sortSubnetCmd.Flags(), "sorted.csv")
	enrichmentFlags(sortSubnetCmd.Flags(), "IPAddress", true)
}

var sortSubnetCmd = &cobra.Command{
	Use:   "sort-subnet",
	Short: "Sort an existing CSV report by subnet site",
	Long: `
Join the address columns of an existing CSV report against the subnet
reference table, append the Subnet, Scope and Site columns and write
the rows ordered by site and address. The input stays untouched, the
sorted report goes to '--output'.

By default every address gets its own row, pass '--explode=false' for
one row per input record. Cells holding several addresses are split on
commas, semicolons and whitespace, every address is looked up on its
own.
	`,
	PreRun: func(cmd *cobra.Command, args []string) {
		viper.BindPFlag("reference_table", cmd.Flags().Lookup("table"))
		viper.BindPFlag("mask_length", cmd.Flags().Lookup("mask-length"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadedConfig()
		runID := logger.NewRunID()

		table := loadReferenceTable(conf)
		joiner := newJoiner(cmd, table, conf)

		input, _ := cmd.Flags().GetString("input")
		header, rows, err := readCSVRecords(afero.NewOsFs(), input)
		if err != nil {
			log.Fatal().Err(err).Str("input", input).Msg("could not read input report")
		}

		output, _ := cmd.Flags().GetString("output")
		writer := newReportWriter(cmd, output)

		dropped := 0
		var sorted []*reporter.Record
		for _, row := range rows {
			rec := make(harvest.RawRecord, len(header))
			base := reporter.NewRecord()
			for i, col := range header {
				rec[col] = row[i]
				base.Set(col, row[i])
			}

			out := joiner.Join(rec, base)
			if len(out) == 0 {
				dropped++
				continue
			}
			sorted = append(sorted, out...)
		}
		sortRowsBySite(sorted)

		for _, row := range sorted {
			if err := writer.Write(row); err != nil {
				log.Fatal().Err(err).Msg("could not write report")
			}
		}
		if err := writer.Close(); err != nil {
			log.Fatal().Err(err).Msg("could not finalize report")
		}

		if dropped > 0 {
			log.Warn().Int("dropped", dropped).Msg("records without address candidates were dropped, use --keep-empty to keep them")
		}

		printRunSummary(runID, [][]string{
			{"rows read", strconv.Itoa(len(rows))},
			{"rows written", strconv.Itoa(len(sorted))},
			{"dropped", strconv.Itoa(dropped)},
			{"files", strings.Join(writer.Files(), ", ")},
		})
	},
}

// sortRowsBySite orders report rows by site, then by address. Addresses
// compare numerically when both sides parse as IPv4, lexically otherwise.
func sortRowsBySite(rows []*reporter.Record) {
	sort.SliceStable(rows, func(i, j int) bool {
		if a, b := rows[i].Get("Site"), rows[j].Get("Site"); a != b {
			return a < b
		}
		a, b := rows[i].Get("IPAddress"), rows[j].Get("IPAddress")
		av, aerr := enrich.ParseIPv4(a)
		bv, berr := enrich.ParseIPv4(b)
		if aerr == nil && berr == nil {
			return av < bv
		}
		return a < b
	})
}

// readCSVRecords loads a CSV report into its header and data rows.
func readCSVRecords(fs afero.Fs, path string) ([]string, [][]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(all) == 0 {
		return nil, nil, errors.New("input report is empty")
	}
	return all[0], all[1:], nil
}
