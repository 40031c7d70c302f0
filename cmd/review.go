package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wowl-learning/wowl/internal/assessment"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the tutor review queue",
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List submissions waiting for a tutor",
	RunE: func(cmd *cobra.Command, args []string) error {
		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		pending, err := e.PendingReviews(cmd.Context())
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Println("Review queue is empty.")
			return nil
		}

		fmt.Printf("%-24s  %-16s  %-32s  %-10s  %s\n", "Submission", "Student", "Competency", "Type", "Submitted")
		fmt.Println(strings.Repeat("─", 110))
		for _, s := range pending {
			fmt.Printf("%-24s  %-16s  %-32s  %-10s  %s\n",
				s.ID, s.StudentID, s.CompetencyID, s.Type(), s.SubmittedAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var reviewResolveCmd = &cobra.Command{
	Use:   "resolve <submission> <grades.json|->",
	Short: "Score a pending submission with tutor grades",
	Long: `Score a pending submission. The grades file maps criterion IDs to
{"score": 1-5, "observation": "...", "confidence": 0-1}.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var grades assessment.Grades
		if err := readJSON(args[1], &grades); err != nil {
			return fmt.Errorf("read grades: %w", err)
		}

		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		a, err := e.ResolveReview(cmd.Context(), args[0], grades)
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

func init() {
	reviewCmd.AddCommand(reviewListCmd)
	reviewCmd.AddCommand(reviewResolveCmd)
}
