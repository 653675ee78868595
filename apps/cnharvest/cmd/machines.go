// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.mondoo.com/cnharvest/microsoft"
	"go.mondoo.com/cnharvest/reporter"
)

func init() {
	rootCmd.AddCommand(machinesCmd)
	outputFlags(machinesCmd.Flags(), "machines.csv")
	enrichmentFlags(machinesCmd.Flags(), "last*Address", false)
}

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "Harvest Defender machines into a subnet enriched CSV report",
	Long: `
Harvest all onboarded machines from the Defender for Endpoint API and
join their IP addresses against the subnet reference table. The result
is a CSV report with one row per machine, or one row per address when
'--explode' is set.

Machines whose addresses appear in no reference subnet are reported
with the site "No Match".
	`,
	PreRun: func(cmd *cobra.Command, args []string) {
		viper.BindPFlag("reference_table", cmd.Flags().Lookup("table"))
		viper.BindPFlag("mask_length", cmd.Flags().Lookup("mask-length"))
	},
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadedConfig()
		client := defenderClient(conf)
		ctx, runID := runContext()

		table := loadReferenceTable(conf)
		joiner := newJoiner(cmd, table, conf)

		output, _ := cmd.Flags().GetString("output")
		writer := newReportWriter(cmd, output)

		it := client.Harvest(ctx, microsoft.MachinesEndpoint())
		var skipped *multierror.Error
		skippedCount := 0
		machines := 0
		written := 0
		for it.Scan() {
			rec := it.Record()
			m, err := microsoft.DecodeMachine(rec)
			if err != nil {
				log.Error().Err(err).Str("id", rec.String("id")).Msg("skipping machine")
				skipped = multierror.Append(skipped, err)
				skippedCount++
				continue
			}
			machines++

			base := reporter.NewRecord().
				Set("ComputerName", m.ComputerDNSName).
				Set("MachineID", m.ID).
				Set("OSPlatform", m.OSPlatform).
				Set("HealthStatus", m.HealthStatus).
				Set("RiskScore", m.RiskScore).
				Set("LastSeen", m.LastSeen)

			for _, row := range joiner.Join(rec, base) {
				if err := writer.Write(row); err != nil {
					log.Fatal().Err(err).Msg("could not write report")
				}
				written++
			}
		}
		if err := it.Err(); err != nil {
			log.Fatal().Err(err).Msg("could not harvest machines")
		}
		if err := writer.Close(); err != nil {
			log.Fatal().Err(err).Msg("could not finalize report")
		}

		if err := skipped.ErrorOrNil(); err != nil {
			log.Warn().Int("skipped", skippedCount).Msg("some machines could not be processed")
			log.Debug().Msg(err.Error())
		}

		printRunSummary(runID, [][]string{
			{"machines", strconv.Itoa(machines)},
			{"rows written", strconv.Itoa(written)},
			{"pages fetched", strconv.Itoa(it.Pages())},
			{"skipped", strconv.Itoa(skippedCount)},
			{"files", strings.Join(writer.Files(), ", ")},
		})
	},
}
