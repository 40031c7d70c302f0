package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wowl-learning/wowl/internal/competency"
)

var pathCmd = &cobra.Command{
	Use:   "path <student>",
	Short: "Show the student's learning path for their tier",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		subject, _ := cmd.Flags().GetString("subject")
		asJSON, _ := cmd.Flags().GetBool("json")

		e, done, err := openEngine(cmd)
		if err != nil {
			return err
		}
		defer done()

		p, err := e.CurrentPath(cmd.Context(), args[0], competency.Subject(subject))
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(p)
		}

		fmt.Printf("%s path for %s (%s)\n\n", p.Subject.DisplayName(), p.StudentID, p.Tier.DisplayName())
		if p.TierComplete() {
			fmt.Println("Tier complete.")
			return nil
		}
		cat := e.Catalog()
		levels, err := e.Ledger().Levels(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		for i, id := range p.Competencies {
			marker := "  "
			if i == p.Cursor {
				marker = "▸ "
			}
			c, err := cat.Get(id)
			if err != nil {
				return err
			}
			fmt.Printf("%s%2d. %-36s  grade %-4s  %-24s  %s\n",
				marker, i+1, c.ID, c.Grade, c.Domain, levels[id].String())
		}
		return nil
	},
}

func init() {
	pathCmd.Flags().String("subject", "", "Subject (defaults to the student's subject)")
	pathCmd.Flags().Bool("json", false, "Print JSON")
}
