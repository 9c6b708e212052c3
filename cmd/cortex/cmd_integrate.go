package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cortex/internal/types"
)

var (
	integrateBatch   bool
	integrateTimeout time.Duration
)

// integrateCmd runs one or more outputs through the full pipeline.
var integrateCmd = &cobra.Command{
	Use:   "integrate [file]",
	Short: "Run specialist outputs through lint, gate, scoring, and storage",
	Long: `Integrate reads an Output as JSON from a file (or stdin with no
argument) and runs it through the full pipeline: lint, constitutional
gate, trust scoring, persistence, events, and one audit record.

With --batch the input is a JSON array of outputs, processed concurrently
with bounded parallelism. Blocked or escalated outputs are reported per
item; the command itself only fails on malformed input.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIntegrate,
}

func init() {
	integrateCmd.Flags().BoolVar(&integrateBatch, "batch", false, "Treat input as a JSON array of outputs")
	integrateCmd.Flags().DurationVar(&integrateTimeout, "timeout", 2*time.Minute, "Overall timeout")
}

func readInput(args []string) ([]byte, error) {
	if len(args) == 1 {
		return os.ReadFile(args[0])
	}
	return io.ReadAll(os.Stdin)
}

func runIntegrate(cmd *cobra.Command, args []string) error {
	data, err := readInput(args)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	var outputs []*types.Output
	if integrateBatch {
		if err := json.Unmarshal(data, &outputs); err != nil {
			return fmt.Errorf("failed to parse output array: %w", err)
		}
	} else {
		var o types.Output
		if err := json.Unmarshal(data, &o); err != nil {
			return fmt.Errorf("failed to parse output: %w", err)
		}
		outputs = []*types.Output{&o}
	}
	if len(outputs) == 0 {
		return fmt.Errorf("no outputs to integrate")
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), integrateTimeout)
	defer cancel()

	results, err := p.Integrator.IntegrateBatch(ctx, outputs)
	if err != nil {
		return err
	}
	for _, r := range results {
		o := outputs[r.Index]
		if r.Ref != nil {
			fmt.Printf("%-12s %s component=%s ref=%s\n", r.Disposition, o.LoopID, o.Component, r.Ref.Ref)
		} else {
			fmt.Printf("%-12s %s component=%s\n", r.Disposition, o.LoopID, o.Component)
		}
	}
	return nil
}
