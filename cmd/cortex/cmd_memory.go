// Memory inspection and maintenance commands: read, trust, gc, stats,
// audit.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cortex/internal/types"
)

var (
	readComponent  string
	readOutputType string
	readLoopID     string
	readDomain     string
	readCategory   string
	readMinTrust   float64
	readLimit      int
	readNoDecay    bool
	readJSON       bool
)

// readCmd queries the memory store.
var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Query ranked memory artifacts",
	RunE:  runRead,
}

func init() {
	readCmd.Flags().StringVar(&readComponent, "component", "", "Match component")
	readCmd.Flags().StringVar(&readOutputType, "type", "", "Match output type")
	readCmd.Flags().StringVar(&readLoopID, "loop", "", "Match loop id")
	readCmd.Flags().StringVar(&readDomain, "domain", "", "Filter by domain")
	readCmd.Flags().StringVar(&readCategory, "category", "", "Filter by category")
	readCmd.Flags().Float64Var(&readMinTrust, "min-trust", -1, "Minimum stored trust score")
	readCmd.Flags().IntVarP(&readLimit, "limit", "k", 10, "Maximum hits")
	readCmd.Flags().BoolVar(&readNoDecay, "no-decay", false, "Rank on stored trust without decay")
	readCmd.Flags().BoolVar(&readJSON, "json", false, "Emit hits as JSON")
}

func runRead(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	query := &types.ReadQuery{
		Component:  readComponent,
		OutputType: types.OutputType(readOutputType),
		LoopID:     readLoopID,
	}
	filters := &types.ReadFilters{Domain: readDomain, Category: readCategory}
	if readMinTrust >= 0 {
		filters.MinTrust = &readMinTrust
	}

	hits, err := p.Store.Read(context.Background(), query, readLimit, !readNoDecay, filters)
	if err != nil {
		return err
	}
	if readJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	if len(hits) == 0 {
		fmt.Println("no artifacts matched")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("%.4f  %-10s %-12s trust=%.3f recency=%.3f  %s\n",
			h.Rank, h.Artifact.Output.Component, h.Artifact.Output.Type,
			h.Trust, h.Recency, h.Artifact.Ref)
	}
	return nil
}

var (
	trustDelta   float64
	trustReason  string
	trustOutcome string
	trustActor   string
	trustHistory bool
)

// trustCmd records a usage outcome or shows trust history for an artifact.
var trustCmd = &cobra.Command{
	Use:   "trust <ref>",
	Short: "Update an artifact's trust or show its history",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrust,
}

func init() {
	trustCmd.Flags().Float64Var(&trustDelta, "delta", 0, "Explicit trust delta (bypasses the read model)")
	trustCmd.Flags().StringVar(&trustReason, "reason", "cli_update", "Reason recorded in the trust event")
	trustCmd.Flags().StringVar(&trustOutcome, "outcome", "neutral", "Usage outcome: success, failure, neutral")
	trustCmd.Flags().StringVar(&trustActor, "actor", "cli", "Actor recorded in the trust event")
	trustCmd.Flags().BoolVar(&trustHistory, "history", false, "Show the trust event history instead of updating")
}

func runTrust(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()
	ctx := context.Background()
	ref := args[0]

	if trustHistory {
		events, err := p.Store.History(ctx, ref)
		if err != nil {
			return err
		}
		for _, ev := range events {
			fmt.Printf("%s  %.3f -> %.3f  %-8s %s (%s)\n",
				ev.CreatedAt.Format("2006-01-02 15:04:05"),
				ev.TrustBefore, ev.TrustAfter, ev.Outcome, ev.Reason, ev.Actor)
		}
		return nil
	}

	var delta *float64
	if cmd.Flags().Changed("delta") {
		delta = &trustDelta
	}
	outcome := types.Outcome(trustOutcome)
	if err := p.Store.UpdateTrust(ctx, ref, delta, trustReason, outcome, trustActor); err != nil {
		return err
	}
	a, err := p.Store.Get(ctx, ref)
	if err != nil {
		return err
	}
	fmt.Printf("%s trust=%.3f access=%d success=%d failure=%d\n",
		ref, a.TrustScore, a.AccessCount, a.SuccessCount, a.FailureCount)
	return nil
}

var (
	gcMaxAge   float64
	gcMaxCount int
	gcDryRun   bool
)

// gcCmd runs one garbage collection pass using the configured thresholds.
var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Archive and delete low-trust or stale artifacts",
	RunE:  runGC,
}

func init() {
	gcCmd.Flags().Float64Var(&gcMaxAge, "max-age-hours", 0, "Archive artifacts older than this (0 disables)")
	gcCmd.Flags().IntVar(&gcMaxCount, "max-artifacts", 0, "Cap the active population (0 disables)")
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "Report intended actions without committing")
}

func runGC(cmd *cobra.Command, args []string) error {
	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	policy := cfg.GC
	policy.DryRun = gcDryRun
	if gcMaxAge > 0 {
		policy.MaxAgeHours = &gcMaxAge
	}
	if gcMaxCount > 0 {
		policy.MaxArtifacts = &gcMaxCount
	}

	res, err := p.Store.GarbageCollect(context.Background(), policy)
	if err != nil {
		return err
	}
	verb := ""
	if policy.DryRun {
		verb = " (dry run)"
	}
	fmt.Printf("scanned=%d archived=%d deleted=%d%s\n", res.Scanned, res.Archived, res.Deleted, verb)
	return nil
}

// statsCmd summarizes the artifact population.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory store statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		st, err := p.Store.Stats(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("active=%d archived=%d deleted=%d mean_trust=%.3f total_reads=%d\n",
			st.Active, st.Archived, st.Deleted, st.MeanTrust, st.TotalReads)
		return nil
	},
}

var auditLimit int

// auditCmd shows recent audit ledger entries.
var auditCmd = &cobra.Command{
	Use:   "audit [resource]",
	Short: "Show audit ledger entries, newest first",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.Close()
		ctx := context.Background()

		var entries []auditEntry
		if len(args) == 1 {
			raw, err := p.Ledger.ForResource(ctx, args[0])
			if err != nil {
				return err
			}
			for _, e := range raw {
				entries = append(entries, auditEntry{e.RecordedAt.Format("2006-01-02 15:04:05"), e.Record})
			}
		} else {
			raw, err := p.Ledger.Recent(ctx, auditLimit)
			if err != nil {
				return err
			}
			for _, e := range raw {
				entries = append(entries, auditEntry{e.RecordedAt.Format("2006-01-02 15:04:05"), e.Record})
			}
		}
		for _, e := range entries {
			fmt.Printf("%s  %-10s %-16s %-10s %-8s %s\n",
				e.at, e.rec.Subsystem, e.rec.Action, e.rec.Actor, e.rec.Result, e.rec.Resource)
		}
		return nil
	},
}

type auditEntry struct {
	at  string
	rec types.AuditRecord
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 50, "Maximum entries")
}
