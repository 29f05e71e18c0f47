package cli

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/accord/internal/scheduling/application/services"
)

var negotiateProposalID string

var negotiateCmd = &cobra.Command{
	Use:   "negotiate [session-id] [accept|force|reject]",
	Short: "Resolve an open negotiation session",
	Long: `Resolve a negotiation session opened by "accord schedule".

accept applies a proposal: conflicting events move to their relocated
times and the requested meeting takes the cleared slot. force creates
the meeting without touching any existing event. reject closes the
session with no calendar change.

Examples:
  accord negotiate 1b4e28ba-2fa1-11d2-883f-0016d3cca427 accept
  accord negotiate 1b4e28ba-2fa1-11d2-883f-0016d3cca427 accept --proposal 6fa459ea-ee8a-3ca4-894e-db77e160355e
  accord negotiate 1b4e28ba-2fa1-11d2-883f-0016d3cca427 force`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer()
		if err != nil {
			return err
		}

		sessionID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session id: %w", err)
		}

		action := services.NegotiateAction(args[1])
		switch action {
		case services.ActionAccept, services.ActionForce, services.ActionReject:
		default:
			return fmt.Errorf("action must be accept, force, or reject")
		}

		var proposalID uuid.UUID
		if negotiateProposalID != "" {
			proposalID, err = uuid.Parse(negotiateProposalID)
			if err != nil {
				return fmt.Errorf("invalid proposal id: %w", err)
			}
		}

		result, err := c.Coordinator.Negotiate(cmd.Context(), services.NegotiateRequest{
			SessionID:  sessionID,
			Action:     action,
			ProposalID: proposalID,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session %s: %s\n", sessionID, result.Status)
		if result.Event != nil {
			fmt.Fprintf(out, "Scheduled %q (%s)\n", result.Event.Title, result.Event.ID)
			fmt.Fprintf(out, "  %s\n", formatWindow(result.Event.Start, result.Event.End))
		}
		printRescheduled(out, result.Rescheduled)
		return nil
	},
}

func init() {
	negotiateCmd.Flags().StringVar(&negotiateProposalID, "proposal", "", "proposal id to accept (default: lowest impact)")
}

func printRescheduled(out io.Writer, moved []services.RescheduledEvent) {
	for _, m := range moved {
		fmt.Fprintf(out, "Moved %q: %s -> %s\n", m.Title, m.From, m.To)
	}
}

func printSession(out io.Writer, session *services.SessionSummary) {
	fmt.Fprintf(out, "Conflicts found; negotiation session %s opened (expires %s)\n",
		session.ID, session.ExpiresAt.Format("2006-01-02 15:04 MST"))
	for i, proposal := range session.Proposals {
		fmt.Fprintf(out, "  Proposal %d (%s) impact %.2f, slot %s\n",
			i+1, proposal.ID, proposal.ImpactScore, proposal.Slot)
		for _, conflict := range proposal.Conflicts {
			if conflict.Relocated != nil {
				fmt.Fprintf(out, "    move %q: %s -> %s\n",
					conflict.Summary, conflict.Original, *conflict.Relocated)
			}
		}
	}
	for _, note := range session.Notes {
		fmt.Fprintf(out, "  Note: %s\n", note)
	}
	fmt.Fprintf(out, "Resolve with: accord negotiate %s accept|force|reject\n", session.ID)
}
