package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"cortex/internal/lint"
	"cortex/internal/types"
)

// lintCmd runs the contradiction linter over a single output.
var lintCmd = &cobra.Command{
	Use:   "lint [file]",
	Short: "Lint an output for contradictions and drift",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		var o types.Output
		if err := json.Unmarshal(data, &o); err != nil {
			return fmt.Errorf("failed to parse output: %w", err)
		}

		report := lint.New().Lint(&o, nil)
		status := "PASS"
		if !report.Passed {
			status = "FAIL"
		}
		fmt.Printf("%s severity=%s auto_remediable=%v\n", status, report.Severity, report.AutoRemediable)
		for _, v := range report.Violations {
			fmt.Printf("  [%s] %s: %s\n", v.Severity, v.Check, v.Message)
		}
		for _, f := range report.Fixes {
			auto := ""
			if f.SafeToAutoApply {
				auto = " (auto)"
			}
			fmt.Printf("  fix %s: %s%s\n", f.Check, f.Description, auto)
		}
		return nil
	},
}

// validateCmd runs the constitutional gate over a single output.
var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Run an output through the constitutional gate",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(args)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}
		var o types.Output
		if err := json.Unmarshal(data, &o); err != nil {
			return fmt.Errorf("failed to parse output: %w", err)
		}

		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer p.Close()

		verdict, err := p.Gate.Validate(context.Background(), &o)
		if err != nil {
			return err
		}
		fmt.Printf("%s compliance=%.3f severity=%s\n", verdict.Decision, verdict.ComplianceScore, verdict.Severity)
		if len(verdict.Tags) > 0 {
			fmt.Printf("tags: %v\n", verdict.Tags)
		}
		if len(verdict.RemediationActions) > 0 {
			fmt.Printf("remediation: %v\n", verdict.RemediationActions)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lintCmd)
	rootCmd.AddCommand(validateCmd)
}
