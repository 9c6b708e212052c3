package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"cortex/internal/consensus"
	"cortex/internal/types"
)

// deliberateCmd arbitrates among competing proposals.
var deliberateCmd = &cobra.Command{
	Use:   "deliberate [file]",
	Short: "Select one proposal among competing specialist outputs",
	Long: `Deliberate reads a DeliberationTask as JSON from a file (or stdin)
and runs the configured consensus strategy over its proposals. The task's
strategy field overrides the configured default.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeliberate,
}

func runDeliberate(cmd *cobra.Command, args []string) error {
	data, err := readInput(args)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	var task types.DeliberationTask
	if err := json.Unmarshal(data, &task); err != nil {
		return fmt.Errorf("failed to parse deliberation task: %w", err)
	}
	if task.Strategy == "" {
		task.Strategy = cfg.Consensus.DefaultStrategy
	}

	engine := consensus.New(consensus.NewTrustTable())
	decision, err := engine.Deliberate(&task)
	if err != nil {
		return err
	}

	fmt.Printf("Decision: %s\n", consensus.Describe(decision))
	if decision.GovernanceValidated {
		fmt.Println("Governance: validated")
	}
	if len(decision.VotingSummary) > 0 {
		out, _ := json.Marshal(decision.VotingSummary)
		fmt.Printf("Summary: %s\n", out)
	}

	specialists := make([]string, 0, len(decision.Weights))
	for name := range decision.Weights {
		specialists = append(specialists, name)
	}
	sort.Strings(specialists)
	for _, name := range specialists {
		marker := " "
		if name == decision.ChosenSpecialist {
			marker = "*"
		}
		fmt.Printf("  %s %-20s %.4f\n", marker, name, decision.Weights[name])
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(decision.ChosenOutput)
}
