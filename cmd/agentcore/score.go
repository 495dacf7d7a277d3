package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/BaSui01/agentcore/scoring"
)

func newScoreCmd(a *app) *cobra.Command {
	var m scoring.VersionMetrics

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score explicit version metrics and print the tier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			score, err := scoring.ComputeScore(m)
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetOutputMirror(cmd.OutOrStdout())
			tw.AppendHeader(table.Row{"Component", "Weight", "Value", "Contribution"})
			for _, c := range m.Components() {
				tw.AppendRow(table.Row{c.Name, fmt.Sprintf("%.2f", c.Weight), fmt.Sprintf("%.4f", c.Value), fmt.Sprintf("%.4f", c.Weight*c.Value)})
			}
			tw.AppendFooter(table.Row{"score", "", "", fmt.Sprintf("%.4f", score)})
			tw.Render()

			fmt.Fprintf(cmd.OutOrStdout(), "tier: %s\n", scoring.TierFor(score))
			return nil
		},
	}

	f := cmd.Flags()
	f.Float64Var(&m.CoherenceAccumulation, "coherence", 0, "coherence accumulation [0,1]")
	f.Float64Var(&m.EvolutionCount, "evolution", 0, "evolution count [0,1]")
	f.Float64Var(&m.PatternEmergenceRate, "pattern", 0, "pattern emergence rate [0,1]")
	f.Float64Var(&m.OperationSuccessRate, "success", 0, "operation success rate [0,1]")
	f.Float64Var(&m.AverageConfidence, "confidence", 0, "average confidence [0,1]")
	f.Float64Var(&m.SkillRetrievalScore, "retrieval", 0, "skill retrieval score [0,1]")
	f.Float64Var(&m.ResourceEfficiency, "efficiency", 0, "resource efficiency [0,1]")
	f.Float64Var(&m.ErrorRecoveryRate, "recovery", 0, "error recovery rate [0,1]")
	return cmd
}
