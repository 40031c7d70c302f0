package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wowl-learning/wowl/internal/competency"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Browse and validate the competency catalog",
}

var catalogListCmd = &cobra.Command{
	Use:   "list",
	Short: "List competencies (optionally filtered by subject or grade)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		subjectFlag, _ := cmd.Flags().GetString("subject")
		gradeFlag, _ := cmd.Flags().GetString("grade")

		subjects := cat.Subjects()
		if subjectFlag != "" {
			s := competency.Subject(strings.ToLower(subjectFlag))
			if !s.Valid() {
				return fmt.Errorf("unknown subject %q", subjectFlag)
			}
			subjects = []competency.Subject{s}
		}

		var comps []competency.Competency
		for _, s := range subjects {
			if gradeFlag != "" {
				g, err := competency.ParseGrade(gradeFlag)
				if err != nil {
					return err
				}
				comps = append(comps, cat.CompetenciesFor(s, g)...)
				continue
			}
			comps = append(comps, cat.TopologicalOrder(s)...)
		}
		if len(comps) == 0 {
			return fmt.Errorf("no competencies match")
		}

		fmt.Printf("%-36s  %-8s  %5s  %-26s  %s\n", "ID", "Subject", "Grade", "Domain", "Prerequisites")
		fmt.Println(strings.Repeat("─", 110))
		for _, c := range comps {
			fmt.Printf("%-36s  %-8s  %5s  %-26s  %s\n",
				c.ID, c.Subject.DisplayName(), c.Grade, c.Domain, strings.Join(c.Prerequisites, ", "))
		}
		fmt.Printf("\n%d competencies\n", len(comps))
		return nil
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate [dir]",
	Short: "Validate a competency catalog directory",
	Long:  "Loads every YAML file in dir (or the configured catalog) and reports unknown prerequisites, undeclared domains and cycles.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if len(args) == 1 {
			cfg.CatalogDir = args[0]
		}
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}
		for _, s := range cat.Subjects() {
			fmt.Printf("%-10s %3d competencies, %d domains\n",
				s.DisplayName(), len(cat.TopologicalOrder(s)), len(cat.Domains(s)))
		}
		fmt.Println("Catalog OK")
		return nil
	},
}

func init() {
	catalogListCmd.Flags().String("subject", "", "Filter by subject (reading, math, spelling, writing)")
	catalogListCmd.Flags().String("grade", "", "Filter by grade (PreK, K, 1-12)")

	catalogCmd.AddCommand(catalogListCmd)
	catalogCmd.AddCommand(catalogValidateCmd)
}
