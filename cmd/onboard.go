package cmd

import (
	"github.com/spf13/cobra"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/quest"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard <student>",
	Short: "Place a student from the quiz and assign the first quest",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := placementInput(cmd)
		if err != nil {
			return err
		}
		subject, _ := cmd.Flags().GetString("subject")

		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		p, err := e.AssignFirstQuestFromQuiz(cmd.Context(), args[0], quest.QuizResult{
			Age:            in.Age,
			EstimatedGrade: in.EstimatedGrade,
			Score:          in.QuizScore,
			Subject:        competency.Subject(subject),
		})
		if err != nil {
			return err
		}
		return printJSON(p)
	},
}

func init() {
	addPlacementFlags(onboardCmd)
	onboardCmd.Flags().String("subject", "math", "Subject to start in")
}
