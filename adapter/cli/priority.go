package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/accord/internal/scheduling/application/services"
)

var (
	priorityDescription   string
	priorityAttendeeCount int
	priorityRecurring     bool
	priorityExplicit      int
)

var priorityCmd = &cobra.Command{
	Use:   "priority [title]",
	Short: "Evaluate the priority a meeting would get",
	Long: `Evaluate the 1-5 priority the scheduler would assign to a meeting,
without scheduling anything.

Examples:
  accord priority "URGENT: prod incident" --attendees 5
  accord priority "Weekly sync" --recurring`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer()
		if err != nil {
			return err
		}

		priority := c.Coordinator.EvaluatePriority(services.PriorityInput{
			Title:         args[0],
			Description:   priorityDescription,
			AttendeeCount: priorityAttendeeCount,
			Recurring:     priorityRecurring,
			Explicit:      priorityExplicit,
		})
		fmt.Fprintf(cmd.OutOrStdout(), "Priority: %d\n", priority)
		return nil
	},
}

func init() {
	priorityCmd.Flags().StringVar(&priorityDescription, "description", "", "meeting description")
	priorityCmd.Flags().IntVar(&priorityAttendeeCount, "attendees", 0, "number of attendees")
	priorityCmd.Flags().BoolVar(&priorityRecurring, "recurring", false, "meeting is recurring")
	priorityCmd.Flags().IntVar(&priorityExplicit, "explicit", 0, "explicit priority override (1-5)")
}
