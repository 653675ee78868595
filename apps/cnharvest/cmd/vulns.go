// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.mondoo.com/cnharvest/harvest"
	"go.mondoo.com/cnharvest/microsoft"
	"go.mondoo.com/cnharvest/reporter"
)

func init() {
	rootCmd.AddCommand(vulnsCmd)
	outputFlags(vulnsCmd.Flags(), "vulnerabilities.csv")
	vulnsCmd.Flags().String("machine", "", "list the vulnerabilities of a single machine instead of the catalog")
	vulnsCmd.Flags().Bool("per-machine", false, "walk all machines and look up the vulnerabilities of each one")
	vulnsCmd.Flags().Duration("detail-delay", time.Second, "pause between per machine lookups")
	vulnsCmd.Flags().String("published-after", microsoft.DefaultVulnerabilityFloor.Format("2006-01-02"), "drop entries published on or before this date, empty disables the filter")
}

var vulnsCmd = &cobra.Command{
	Use:     "vulns",
	Aliases: []string{"vulnerabilities"},
	Short:   "Harvest Defender vulnerabilities into a CSV report",
	Long: `
Harvest the vulnerability catalog from the Defender for Endpoint API.
By default ancient catalog entries are dropped, tune the cutoff with
'--published-after'.

With '--machine' the report covers the vulnerabilities of that single
machine. With '--per-machine' every onboarded machine is looked up in
turn and the report gains ComputerName and MachineID columns; lookups
are spaced by '--detail-delay' and a failed lookup skips that machine
instead of aborting the run.
	`,
	Run: func(cmd *cobra.Command, args []string) {
		machineID, _ := cmd.Flags().GetString("machine")
		perMachine, _ := cmd.Flags().GetBool("per-machine")
		if machineID != "" && perMachine {
			log.Fatal().Msg("--machine and --per-machine exclude each other")
		}

		after := time.Time{}
		if v, _ := cmd.Flags().GetString("published-after"); v != "" {
			var err error
			after, err = harvest.ParseTime(v)
			if err != nil {
				log.Fatal().Err(err).Msg("could not parse --published-after")
			}
		}

		conf := loadedConfig()
		detailDelay, _ := cmd.Flags().GetDuration("detail-delay")
		client := defenderClient(conf)
		if perMachine {
			client = defenderDetailClient(conf, detailDelay)
		}
		ctx, runID := runContext()

		output, _ := cmd.Flags().GetString("output")
		writer := newReportWriter(cmd, output)

		var skipped *multierror.Error
		skippedCount := 0
		filtered := 0
		written := 0

		// writeRow reports one vulnerability, prefixed with the machine
		// columns on the per machine walk
		writeRow := func(machine *microsoft.Machine, rec harvest.RawRecord) {
			v, err := microsoft.DecodeVulnerability(rec)
			if err != nil {
				log.Error().Err(err).Str("id", rec.String("id")).Msg("skipping vulnerability")
				skipped = multierror.Append(skipped, err)
				skippedCount++
				return
			}
			row := reporter.NewRecord()
			if machine != nil {
				row.Set("ComputerName", machine.ComputerDNSName).
					Set("MachineID", machine.ID)
			}
			row.Set("ID", v.ID).
				Set("Name", v.Name).
				Set("Severity", v.Severity).
				Set("CVSS", strconv.FormatFloat(v.CVSSv3, 'f', -1, 64)).
				Set("Published", v.PublishedOn).
				Set("Updated", v.UpdatedOn).
				Set("ExposedMachines", strconv.Itoa(v.ExposedMachines)).
				Set("Description", v.Description)
			if err := writer.Write(row); err != nil {
				log.Fatal().Err(err).Msg("could not write report")
			}
			written++
		}

		// publishedAfter mirrors the catalog filter for detail responses,
		// which bypass the endpoint level time filter
		publishedAfter := func(rec harvest.RawRecord) bool {
			if after.IsZero() {
				return true
			}
			ts, err := rec.Time("publishedOn")
			if err != nil {
				log.Debug().Err(err).Str("id", rec.String("id")).Msg("dropping vulnerability without usable publish date")
				filtered++
				return false
			}
			if !ts.After(after) {
				filtered++
				return false
			}
			return true
		}

		summary := [][]string{}
		switch {
		case machineID != "":
			recs, err := client.Detail(ctx, microsoft.MachineVulnerabilitiesPath(machineID), microsoft.VulnerabilitySchema())
			if err != nil {
				log.Fatal().Err(err).Str("machine", machineID).Msg("could not fetch machine vulnerabilities")
			}
			for _, rec := range recs {
				writeRow(nil, rec)
			}
			summary = append(summary, []string{"machine", machineID})

		case perMachine:
			it := client.Harvest(ctx, microsoft.MachinesEndpoint())
			recs, err := it.Collect()
			if err != nil {
				log.Fatal().Err(err).Msg("could not harvest machines")
			}

			machines := 0
			failedLookups := 0
			for _, rec := range recs {
				m, err := microsoft.DecodeMachine(rec)
				if err != nil {
					log.Error().Err(err).Str("id", rec.String("id")).Msg("skipping machine")
					skipped = multierror.Append(skipped, err)
					skippedCount++
					continue
				}
				machines++

				vulns, err := client.Detail(ctx, microsoft.MachineVulnerabilitiesPath(m.ID), microsoft.VulnerabilitySchema())
				if err != nil {
					log.Error().Err(err).Str("machine", m.ComputerDNSName).Msg("skipping machine, vulnerability lookup failed")
					skipped = multierror.Append(skipped, err)
					skippedCount++
					failedLookups++
					continue
				}
				for _, vrec := range vulns {
					if publishedAfter(vrec) {
						writeRow(m, vrec)
					}
				}
			}
			summary = append(summary,
				[]string{"machines", strconv.Itoa(machines)},
				[]string{"lookups failed", strconv.Itoa(failedLookups)},
				[]string{"pages fetched", strconv.Itoa(it.Pages())},
				[]string{"filtered", strconv.Itoa(filtered)},
			)

		default:
			it := client.Harvest(ctx, microsoft.VulnerabilitiesEndpoint(after))
			for it.Scan() {
				writeRow(nil, it.Record())
			}
			if err := it.Err(); err != nil {
				log.Fatal().Err(err).Msg("could not harvest vulnerabilities")
			}
			summary = append(summary,
				[]string{"pages fetched", strconv.Itoa(it.Pages())},
				[]string{"filtered", strconv.Itoa(it.Filtered())},
			)
		}

		if err := writer.Close(); err != nil {
			log.Fatal().Err(err).Msg("could not finalize report")
		}

		if err := skipped.ErrorOrNil(); err != nil {
			log.Warn().Int("skipped", skippedCount).Msg("some records could not be processed")
			log.Debug().Msg(err.Error())
		}

		summary = append(summary,
			[]string{"rows written", strconv.Itoa(written)},
			[]string{"skipped", strconv.Itoa(skippedCount)},
			[]string{"files", strings.Join(writer.Files(), ", ")},
		)
		printRunSummary(runID, summary)
	},
}
