package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/papermill/papermill/internal/home"
	"github.com/papermill/papermill/internal/ledger"
)

var usageCmd = &cobra.Command{
	Use:   "usage [paper-id]",
	Short: "Show recorded token usage and cost",
	Long: `Usage reads the snapshot each process run persists next to its
artifacts. With a paper ID it prints that paper's full breakdown; without
arguments it lists every processed paper with its total cost.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := papermillHome()
		if err != nil {
			return err
		}

		if len(args) == 1 {
			return printPaperUsage(h, args[0])
		}
		return listPaperUsage(h)
	},
}

func readSnapshot(h *home.Dir, paperID string) (*ledger.Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(h.PaperDir(paperID), home.UsageFileName))
	if err != nil {
		return nil, err
	}
	var snap ledger.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parse usage snapshot for %s: %w", paperID, err)
	}
	return &snap, nil
}

func printPaperUsage(h *home.Dir, paperID string) error {
	snap, err := readSnapshot(h, paperID)
	if err != nil {
		return fmt.Errorf("no usage recorded for %s: %w", paperID, err)
	}

	fmt.Printf("paper: %s\n", paperID)
	printUsage(*snap)
	if len(snap.ByProvider) > 0 {
		fmt.Println("by provider:")
		for _, name := range sortedKeys(snap.ByProvider) {
			t := snap.ByProvider[name]
			fmt.Printf("  %-14s %d calls, %d in / %d out, $%.4f\n",
				name, t.Calls, t.InputTokens, t.OutputTokens, t.CostUSD)
		}
	}
	return nil
}

func listPaperUsage(h *home.Dir) error {
	entries, err := os.ReadDir(h.PapersPath())
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("no papers processed yet")
			return nil
		}
		return err
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Strings(ids)

	found := false
	for _, id := range ids {
		snap, err := readSnapshot(h, id)
		if err != nil {
			continue
		}
		found = true
		fmt.Printf("%-40s %d calls, $%.4f\n", id, snap.Grand.Calls, snap.Grand.CostUSD)
	}
	if !found {
		fmt.Println("no papers processed yet")
	}
	return nil
}
