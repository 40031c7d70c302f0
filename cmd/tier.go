package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/placement"
)

var tierCmd = &cobra.Command{
	Use:   "tier",
	Short: "Recommend a starting tier from a placement quiz result",
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := placementInput(cmd)
		if err != nil {
			return err
		}
		return printJSON(placement.RecommendTier(in))
	},
}

var tierSetCmd = &cobra.Command{
	Use:   "set <student> <tier>",
	Short: "Record a parent or tutor tier choice (empty string clears it)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var tier placement.Tier
		if args[1] != "" {
			t, err := placement.ParseTier(args[1])
			if err != nil {
				return err
			}
			tier = t
		}
		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		st, err := e.SelectTier(cmd.Context(), args[0], tier)
		if err != nil {
			return err
		}
		return printJSON(st)
	},
}

func addPlacementFlags(cmd *cobra.Command) {
	cmd.Flags().Int("age", 0, "Student age in years (0 if unknown)")
	cmd.Flags().String("grade", "", "Estimated grade from the family (PreK, K, 1-12)")
	cmd.Flags().Float64("score", 0, "Placement quiz score, 0-100")
}

func placementInput(cmd *cobra.Command) (placement.Input, error) {
	age, _ := cmd.Flags().GetInt("age")
	gradeFlag, _ := cmd.Flags().GetString("grade")
	score, _ := cmd.Flags().GetFloat64("score")

	if score < 0 || score > 100 {
		return placement.Input{}, fmt.Errorf("--score must be between 0 and 100")
	}
	in := placement.Input{Age: age, QuizScore: score}
	if gradeFlag != "" {
		g, err := competency.ParseGrade(gradeFlag)
		if err != nil {
			return placement.Input{}, err
		}
		in.EstimatedGrade = &g
	}
	return in, nil
}

func init() {
	addPlacementFlags(tierCmd)
	tierCmd.AddCommand(tierSetCmd)
}
