// Copyright (c) Mondoo, Inc.
// SPDX-License-Identifier: BUSL-1.1

package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.mondoo.com/cnharvest/converge"
	"go.mondoo.com/cnharvest/microsoft"
	"go.mondoo.com/cnharvest/reporter"
)

func init() {
	rootCmd.AddCommand(quarantineCmd)
	quarantineCmd.AddCommand(quarantineListCmd)
	quarantineCmd.AddCommand(quarantinePurgeCmd)

	outputFlags(quarantineListCmd.Flags(), "quarantine.csv")

	quarantinePurgeCmd.Flags().Int("batch", microsoft.DefaultPurgeBatch, "messages deleted per round")
	quarantinePurgeCmd.Flags().Int("max-rounds", converge.DefaultMaxRounds, "abort after this many rounds")
	quarantinePurgeCmd.Flags().Duration("pause", 0, "pause between purge rounds")
	quarantinePurgeCmd.Flags().Bool("force", false, "purge without asking for confirmation")
}

var quarantineCmd = &cobra.Command{
	Use:   "quarantine",
	Short: "Work with the mail quarantine",
}

var quarantineListCmd = &cobra.Command{
	Use:   "list",
	Short: "Harvest quarantined messages into a CSV report",
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadedConfig()
		client := defenderClient(conf)
		ctx, runID := runContext()

		output, _ := cmd.Flags().GetString("output")
		writer := newReportWriter(cmd, output)

		it := client.Harvest(ctx, microsoft.QuarantineMessagesEndpoint())
		var skipped *multierror.Error
		skippedCount := 0
		written := 0
		for it.Scan() {
			rec := it.Record()
			msg, err := microsoft.DecodeQuarantineMessage(rec)
			if err != nil {
				log.Error().Err(err).Str("id", rec.String("id")).Msg("skipping quarantined message")
				skipped = multierror.Append(skipped, err)
				skippedCount++
				continue
			}

			row := reporter.NewRecord().
				Set("ID", msg.ID).
				Set("Received", msg.ReceivedDateTime).
				Set("Sender", msg.SenderAddress).
				Set("Recipient", msg.RecipientAddress).
				Set("Subject", msg.Subject).
				Set("Reason", msg.QuarantineReason)
			if err := writer.Write(row); err != nil {
				log.Fatal().Err(err).Msg("could not write report")
			}
			written++
		}
		if err := it.Err(); err != nil {
			log.Fatal().Err(err).Msg("could not harvest quarantine")
		}
		if err := writer.Close(); err != nil {
			log.Fatal().Err(err).Msg("could not finalize report")
		}

		if err := skipped.ErrorOrNil(); err != nil {
			log.Warn().Int("skipped", skippedCount).Msg("some messages could not be processed")
			log.Debug().Msg(err.Error())
		}

		printRunSummary(runID, [][]string{
			{"messages", strconv.Itoa(written)},
			{"pages fetched", strconv.Itoa(it.Pages())},
			{"skipped", strconv.Itoa(skippedCount)},
			{"files", strings.Join(writer.Files(), ", ")},
		})
	},
}

var quarantinePurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all quarantined messages, batch by batch",
	Long: `
Empty the mail quarantine. Every round lists the quarantine again and
deletes one batch of messages, until the listing comes back empty. The
loop stops early when it hits the round cap or when a round makes no
progress against the backlog.
	`,
	Run: func(cmd *cobra.Command, args []string) {
		conf := loadedConfig()
		client := defenderClient(conf)
		ctx, runID := runContext()

		force, _ := cmd.Flags().GetBool("force")
		if !force && !confirmPurge() {
			log.Info().Msg("purge cancelled")
			return
		}

		batch, _ := cmd.Flags().GetInt("batch")
		maxRounds, _ := cmd.Flags().GetInt("max-rounds")
		pause, _ := cmd.Flags().GetDuration("pause")

		res, err := converge.Run(ctx, converge.Options{MaxRounds: maxRounds, Pause: pause}, microsoft.PurgeStep(client, batch))
		if err != nil {
			log.Error().Int("rounds", res.Rounds).Int("deleted", res.Acted).Msg("purge aborted")
			log.Fatal().Err(err).Msg("could not purge quarantine")
		}

		printRunSummary(runID, [][]string{
			{"rounds", strconv.Itoa(res.Rounds)},
			{"messages deleted", strconv.Itoa(res.Acted)},
			{"converged", strconv.FormatBool(res.Converged)},
		})
	},
}

func confirmPurge() bool {
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		log.Fatal().Msg("refusing to purge without confirmation, pass --force when running non-interactively")
	}

	fmt.Print("Delete ALL quarantined messages? [y/N]: ")
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
