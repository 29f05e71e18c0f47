package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/accord/internal/scheduling/application/services"
)

var (
	scheduleOrganizer    string
	scheduleAttendees    []string
	scheduleDurationMins int
	scheduleWindowStart  string
	scheduleWindowEnd    string
	scheduleDescription  string
	scheduleRecurring    bool
	schedulePriority     int
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [title]",
	Short: "Schedule a meeting, negotiating conflicts if needed",
	Long: `Schedule a meeting in the preferred window.

When every candidate slot is conflicted, a negotiation session is opened
instead. The session lists ranked relocation proposals to accept, force,
or reject with "accord negotiate".

Examples:
  accord schedule "Sprint Planning" --organizer alice --attendees bob,carol \
    --duration 60 --window-start 2026-08-24T09:00:00Z --window-end 2026-08-24T17:00:00Z
  accord schedule "Incident Review" --organizer alice --attendees bob --duration 30 \
    --window-start 2026-08-24T09:00:00Z --window-end 2026-08-24T17:00:00Z --priority 5`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer()
		if err != nil {
			return err
		}

		windowStart, err := time.Parse(time.RFC3339, scheduleWindowStart)
		if err != nil {
			return fmt.Errorf("invalid --window-start: %w", err)
		}
		windowEnd, err := time.Parse(time.RFC3339, scheduleWindowEnd)
		if err != nil {
			return fmt.Errorf("invalid --window-end: %w", err)
		}

		result, err := c.Coordinator.Schedule(cmd.Context(), services.ScheduleRequest{
			Organizer:   scheduleOrganizer,
			Title:       args[0],
			Description: scheduleDescription,
			Duration:    time.Duration(scheduleDurationMins) * time.Minute,
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
			Attendees:   scheduleAttendees,
			Recurring:   scheduleRecurring,
			Priority:    schedulePriority,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch result.Outcome {
		case services.OutcomeScheduled:
			fmt.Fprintf(out, "Scheduled %q (%s)\n", result.Event.Title, result.Event.ID)
			fmt.Fprintf(out, "  %s\n", formatWindow(result.Event.Start, result.Event.End))
		case services.OutcomeNeedsNegotiation:
			printSession(out, result.Session)
		}
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&scheduleOrganizer, "organizer", "", "organizing agent id (required)")
	scheduleCmd.Flags().StringSliceVar(&scheduleAttendees, "attendees", nil, "attendee agent ids")
	scheduleCmd.Flags().IntVar(&scheduleDurationMins, "duration", 30, "meeting duration in minutes")
	scheduleCmd.Flags().StringVar(&scheduleWindowStart, "window-start", "", "preferred window start (RFC3339, required)")
	scheduleCmd.Flags().StringVar(&scheduleWindowEnd, "window-end", "", "preferred window end (RFC3339, required)")
	scheduleCmd.Flags().StringVar(&scheduleDescription, "description", "", "meeting description")
	scheduleCmd.Flags().BoolVar(&scheduleRecurring, "recurring", false, "mark the meeting as recurring")
	scheduleCmd.Flags().IntVar(&schedulePriority, "priority", 0, "explicit priority 1-5 (0 = evaluate)")

	_ = scheduleCmd.MarkFlagRequired("organizer")
	_ = scheduleCmd.MarkFlagRequired("window-start")
	_ = scheduleCmd.MarkFlagRequired("window-end")
}

func formatWindow(start, end time.Time) string {
	return fmt.Sprintf("%s - %s",
		start.Format("2006-01-02 15:04"),
		end.Format("15:04 MST"))
}
