package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	calendarApp "github.com/felixgeelhaar/accord/internal/calendar/application"
)

var agentName string

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage the agent directory",
	Long:  `Register and list the calendar-owning agents known to the service.`,
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered agents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer()
		if err != nil {
			return err
		}

		agents, err := c.Directory.List(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(agents) == 0 {
			fmt.Fprintln(out, "No agents registered.")
			return nil
		}
		for _, agent := range agents {
			fmt.Fprintf(out, "%s\t%s\t%s\n",
				agent.ID, agent.Name, agent.RegisteredAt.Format("2006-01-02 15:04"))
		}
		return nil
	},
}

var agentAddCmd = &cobra.Command{
	Use:   "add [id]",
	Short: "Register an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := getContainer()
		if err != nil {
			return err
		}

		agent, err := calendarApp.NewAgent(args[0], agentName)
		if err != nil {
			return err
		}
		if err := c.Directory.Register(cmd.Context(), agent); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Registered agent: %s\n", agent.ID)
		return nil
	},
}

func init() {
	agentAddCmd.Flags().StringVar(&agentName, "name", "", "display name (defaults to id)")

	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentAddCmd)
}
