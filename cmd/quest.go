package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wowl-learning/wowl/internal/competency"
	"github.com/wowl-learning/wowl/internal/quest"
)

var questCmd = &cobra.Command{
	Use:   "quest",
	Short: "Assign, inspect and progress quests",
}

var questNextCmd = &cobra.Command{
	Use:   "next <student>",
	Short: "Return the open quest or assign the next one from the learning path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		a, err := e.AssignNextQuest(cmd.Context(), args[0])
		if errors.Is(err, quest.ErrTierComplete) {
			fmt.Println("Every competency in this tier is mastered. Time to pick a new tier!")
			return nil
		}
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

var questShowCmd = &cobra.Command{
	Use:   "show <assignment>",
	Short: "Show one quest assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		a, err := e.Quest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

var questStartCmd = &cobra.Command{
	Use:   "start <assignment>",
	Short: "Mark a quest as in progress",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		a, err := e.StartQuest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

var questLessonCmd = &cobra.Command{
	Use:   "lesson <assignment> <lesson>",
	Short: "Record a finished lesson",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		a, err := e.CompleteLesson(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

var questOverrideCmd = &cobra.Command{
	Use:   "override <student> <competency>...",
	Short: "Assign a hand-picked quest, superseding the open one",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		by, _ := cmd.Flags().GetString("by")
		subject, _ := cmd.Flags().GetString("subject")
		title, _ := cmd.Flags().GetString("title")

		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		a, err := e.OverrideQuest(cmd.Context(), args[0], quest.OverrideRequest{
			By:            quest.Source(by),
			Subject:       competency.Subject(subject),
			CompetencyIDs: args[1:],
			Title:         title,
		})
		if err != nil {
			return err
		}
		return printJSON(a)
	},
}

var questHistoryCmd = &cobra.Command{
	Use:   "history <student>",
	Short: "List a student's quests, oldest first",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		asJSON, _ := cmd.Flags().GetBool("json")

		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		hist, err := e.QuestHistory(cmd.Context(), args[0], competency.Subject(subject))
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(hist)
		}
		if len(hist) == 0 {
			fmt.Println("No quests yet.")
			return nil
		}

		fmt.Printf("%-36s  %-12s  %-16s  %5s  %s\n", "Assignment", "Status", "Assigned by", "XP", "Competencies")
		fmt.Println(strings.Repeat("─", 110))
		for _, a := range hist {
			status := string(a.Status)
			if a.SupersededBy != "" {
				status = "superseded"
			}
			fmt.Printf("%-36s  %-12s  %-16s  %5d  %s\n",
				a.ID, status, a.AssignedBy, a.XPEarned, strings.Join(a.CompetenciesTargeted, ", "))
		}
		return nil
	},
}

func init() {
	questOverrideCmd.Flags().String("by", string(quest.SourceTutor), "Who is overriding (tutor, parent, wowl-ai)")
	questOverrideCmd.Flags().String("subject", "", "Subject of the quest (defaults to the student's subject)")
	questOverrideCmd.Flags().String("title", "", "Custom quest title")

	questHistoryCmd.Flags().String("subject", "", "Subject (defaults to the student's subject)")
	questHistoryCmd.Flags().Bool("json", false, "Print JSON instead of a table")

	questCmd.AddCommand(questNextCmd)
	questCmd.AddCommand(questShowCmd)
	questCmd.AddCommand(questStartCmd)
	questCmd.AddCommand(questLessonCmd)
	questCmd.AddCommand(questOverrideCmd)
	questCmd.AddCommand(questHistoryCmd)
}
