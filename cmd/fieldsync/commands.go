// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aaglobalreachgmbh/fieldsync/offlinesync"
)

var (
	offerConfig string
	calcConfig  string
	calcSummary string
)

func init() {
	offerCmd.Flags().StringVar(&offerConfig, "config", "{}", "offer configuration as JSON")
	calcCmd.Flags().StringVar(&calcConfig, "config", "{}", "calculation configuration as JSON")
	calcCmd.Flags().StringVar(&calcSummary, "summary", "", "one-line calculation summary")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show offline cache and outbox statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := engine.RefreshStats(cmd.Context()); err != nil {
			return err
		}
		stats := engine.Stats()

		bold := color.New(color.Bold)
		bold.Println("Offline cache")
		fmt.Printf("  hardware items:  %d\n", stats.HardwareCount)
		fmt.Printf("  tariffs:         %d\n", stats.TariffCount)
		fmt.Printf("  offline capable: %v\n", engine.IsOfflineCapable())
		if stats.LastSync != nil {
			fmt.Printf("  last sync:       %s\n", stats.LastSync.Format("2006-01-02 15:04:05"))
		} else {
			fmt.Println("  last sync:       never")
		}

		bold.Println("Outbox")
		fmt.Printf("  offers:          %d\n", stats.PendingOffers)
		fmt.Printf("  calculations:    %d\n", stats.PendingCalculations)
		fmt.Printf("  visit reports:   %d\n", stats.PendingVisits)
		fmt.Printf("  photos:          %d\n", stats.PendingPhotos)
		if stats.StalledOffers+stats.StalledCalculations > 0 {
			color.Yellow("  stalled:         %d offers, %d calculations (gave up after repeated failures)",
				stats.StalledOffers, stats.StalledCalculations)
		}

		meta, err := store.AllMetadata(cmd.Context())
		if err != nil {
			return err
		}
		if len(meta) > 0 {
			bold.Println("Cache refreshes")
			for _, m := range meta {
				fmt.Printf("  %-20s %4d items  %s  (%s)\n",
					m.ID, m.ItemCount, m.LastSyncAt.Format("2006-01-02 15:04:05"), m.DataVersion)
			}
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run a sync cycle now",
	RunE: func(cmd *cobra.Command, _ []string) error {
		monitor.Retry(cmd.Context())
		if !monitor.Online() {
			return fmt.Errorf("backend is not reachable")
		}

		result, err := engine.TriggerSync(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Printf("uploaded: %d offers, %d calculations, %d visits, %d photos\n",
			result.Uploaded.Offers, result.Uploaded.Calculations,
			result.Uploaded.Visits, result.Uploaded.Photos)
		fmt.Printf("refreshed: %d hardware, %d tariffs, %d customers, %d checklists\n",
			result.Downloaded.Hardware, result.Downloaded.Tariffs,
			result.Downloaded.Customers, result.Downloaded.Checklists)

		if result.Status == offlinesync.StatusError {
			color.Red("sync finished with %d errors:", len(result.Errors))
			for _, e := range result.Errors {
				fmt.Printf("  - %s\n", e)
			}
			return fmt.Errorf("sync incomplete")
		}
		color.Green("sync complete")
		return nil
	},
}

var offerCmd = &cobra.Command{
	Use:   "offer",
	Short: "Queue a draft offer for upload",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !json.Valid([]byte(offerConfig)) {
			return fmt.Errorf("--config must be valid JSON")
		}
		id, err := engine.SavePendingOffer(cmd.Context(), json.RawMessage(offerConfig))
		if err != nil {
			return err
		}
		fmt.Printf("queued offer %s\n", id)
		return nil
	},
}

var calcCmd = &cobra.Command{
	Use:   "calc",
	Short: "Queue a margin calculation for upload",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !json.Valid([]byte(calcConfig)) {
			return fmt.Errorf("--config must be valid JSON")
		}
		id, err := engine.SavePendingCalculation(cmd.Context(), json.RawMessage(calcConfig), calcSummary)
		if err != nil {
			return err
		}
		fmt.Printf("queued calculation %s\n", id)
		return nil
	},
}

var requeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Reset failed outbox items for another round of attempts",
	RunE: func(cmd *cobra.Command, _ []string) error {
		n, err := engine.RequeueFailed(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("requeued %d items\n", n)
		stats := engine.Stats()
		fmt.Printf("outbox now: %d offers, %d calculations, %d visits\n",
			stats.PendingOffers, stats.PendingCalculations, stats.PendingVisits)
		return nil
	},
}
