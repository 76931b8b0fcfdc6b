package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/tormodhaugland/intake/internal/doctor"
)

var doctorFix bool

type doctorResult struct {
	doctor.Report
	Created []string `json:"created,omitempty"`
	OK      bool     `json:"ok"`
}

var doctorStatusStyles = map[doctor.Status]lipgloss.Style{
	doctor.StatusOK:   lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
	doctor.StatusWarn: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	doctor.StatusFail: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	doctor.StatusSkip: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the data root and history journal",
	Long: `Checks that the data root exists, is a writable directory, and that the
history journal under _system opens. With --fix, missing directories and
the journal are created first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		var result doctorResult
		if doctorFix {
			created, err := doctor.Fix(cfg)
			result.Created = created
			if err != nil {
				return fmt.Errorf("fix failed: %w", err)
			}
		}

		result.Report = doctor.Run(cfg)
		result.OK = result.Report.OK()

		if jsonOut {
			if err := outputJSON(result); err != nil {
				return err
			}
		} else {
			for _, path := range result.Created {
				fmt.Printf("Created %s\n", path)
			}
			fmt.Printf("Data root: %s\n\n", result.DataRoot)
			for _, c := range result.Checks {
				status := doctorStatusStyles[c.Status].Render(fmt.Sprintf("%-4s", c.Status))
				line := fmt.Sprintf("  %s  %s", status, c.Name)
				if c.Detail != "" {
					line += ": " + c.Detail
				}
				fmt.Println(line)
			}
		}

		if !result.OK {
			return fmt.Errorf("doctor found problems")
		}
		return nil
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "create missing directories and the journal")
	rootCmd.AddCommand(doctorCmd)
}
