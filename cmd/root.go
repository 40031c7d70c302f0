package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wowl",
	Short: "Competency mastery and quest engine",
	Long: "Wowl assesses student work against rubrics, tracks the best mastery level per competency,\n" +
		"orders what is left to learn, and hands out quests.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("db", "", "Database DSN or SQLite file path (overrides WOWL_DB)")
	pf.String("driver", "", "Store driver: sqlite, postgres or memory (overrides WOWL_DB_DRIVER)")
	pf.String("catalog", "", "Directory of competency YAML files (overrides WOWL_CATALOG_DIR)")
	pf.String("rubrics", "", "Rubric YAML file (overrides WOWL_RUBRICS)")

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(tierCmd)
	rootCmd.AddCommand(onboardCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(questCmd)
	rootCmd.AddCommand(pathCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(versionCmd)
}
