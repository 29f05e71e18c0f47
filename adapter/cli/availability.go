package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/accord/internal/scheduling/domain"
)

var (
	availabilityStart string
	availabilityEnd   string
	availabilityBusy  bool
)

var availabilityCmd = &cobra.Command{
	Use:   "availability [agent]",
	Short: "Show an agent's free business-hours windows",
	Long: `Show the free windows on an agent's calendar within a time range,
clipped to business hours.

Examples:
  accord availability alice --start 2026-08-24T00:00:00Z --end 2026-08-25T00:00:00Z
  accord availability bob --start 2026-08-24T09:00:00Z --end 2026-08-24T17:00:00Z --busy`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer()
		if err != nil {
			return err
		}

		start, err := time.Parse(time.RFC3339, availabilityStart)
		if err != nil {
			return fmt.Errorf("invalid --start: %w", err)
		}
		end, err := time.Parse(time.RFC3339, availabilityEnd)
		if err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
		window, err := domain.NewTimeRange(start, end)
		if err != nil {
			return err
		}

		free, busy, err := c.Coordinator.Availability(cmd.Context(), args[0], window)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		ranges, label := free, "Free"
		if availabilityBusy {
			ranges, label = busy, "Busy"
		}
		if len(ranges) == 0 {
			fmt.Fprintf(out, "%s: none\n", label)
			return nil
		}
		fmt.Fprintf(out, "%s windows for %s:\n", label, args[0])
		for _, r := range ranges {
			fmt.Fprintf(out, "  %s\n", r)
		}
		return nil
	},
}

func init() {
	availabilityCmd.Flags().StringVar(&availabilityStart, "start", "", "range start (RFC3339, required)")
	availabilityCmd.Flags().StringVar(&availabilityEnd, "end", "", "range end (RFC3339, required)")
	availabilityCmd.Flags().BoolVar(&availabilityBusy, "busy", false, "show busy windows instead of free ones")

	_ = availabilityCmd.MarkFlagRequired("start")
	_ = availabilityCmd.MarkFlagRequired("end")
}
