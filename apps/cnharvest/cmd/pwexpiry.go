// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.mondoo.com/cnharvest/microsoft"
	"go.mondoo.com/cnharvest/reporter"
)

func init() {
	rootCmd.AddCommand(pwexpiryCmd)
	outputFlags(pwexpiryCmd.Flags(), "password-expiry.csv")
	pwexpiryCmd.Flags().String("filter", "", "server side $filter expression for the user listing")
	pwexpiryCmd.Flags().Bool("apply", false, "set the never-expires policy on affected users instead of only reporting them")
}

var pwexpiryCmd = &cobra.Command{
	Use:   "pwexpiry",
	Short: "Report directory users whose passwords still expire",
	Long: `
List all Entra ID users and report the ones whose password policy still
lets passwords expire. With '--apply' the never-expires policy is set
on every affected user, failures are logged per user and do not stop
the run.
	`,
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadedConfig()
		client := graphClient(conf)
		ctx, runID := runContext()

		filter, _ := cmd.Flags().GetString("filter")
		apply, _ := cmd.Flags().GetBool("apply")

		output, _ := cmd.Flags().GetString("output")
		writer := newReportWriter(cmd, output)

		it := client.Harvest(ctx, microsoft.UsersEndpoint(filter))
		var failed *multierror.Error
		failedCount := 0
		users := 0
		affected := 0
		updated := 0
		for it.Scan() {
			rec := it.Record()
			u, err := microsoft.DecodeUser(rec)
			if err != nil {
				log.Error().Err(err).Str("id", rec.String("id")).Msg("skipping user")
				failed = multierror.Append(failed, err)
				failedCount++
				continue
			}
			users++

			if !u.HasPasswordExpiry() {
				continue
			}
			affected++

			status := "expires"
			if apply {
				if err := microsoft.DisablePasswordExpiry(ctx, client, u.ID); err != nil {
					log.Error().Err(err).Str("user", u.UserPrincipalName).Msg("could not update password policy")
					failed = multierror.Append(failed, err)
					failedCount++
					status = "update failed"
				} else {
					updated++
					status = "updated"
				}
			}

			row := reporter.NewRecord().
				Set("UserPrincipalName", u.UserPrincipalName).
				Set("DisplayName", u.DisplayName).
				Set("AccountEnabled", strconv.FormatBool(u.AccountEnabled)).
				Set("PasswordPolicies", u.PasswordPolicies).
				Set("Status", status)
			if err := writer.Write(row); err != nil {
				log.Fatal().Err(err).Msg("could not write report")
			}
		}
		if err := it.Err(); err != nil {
			log.Fatal().Err(err).Msg("could not harvest users")
		}
		if err := writer.Close(); err != nil {
			log.Fatal().Err(err).Msg("could not finalize report")
		}

		if err := failed.ErrorOrNil(); err != nil {
			log.Warn().Int("failures", failedCount).Msg("some users could not be processed")
			log.Debug().Msg(err.Error())
		}

		printRunSummary(runID, [][]string{
			{"users scanned", strconv.Itoa(users)},
			{"passwords expiring", strconv.Itoa(affected)},
			{"policies updated", strconv.Itoa(updated)},
			{"failures", strconv.Itoa(failedCount)},
			{"files", strings.Join(writer.Files(), ", ")},
		})
	},
}
