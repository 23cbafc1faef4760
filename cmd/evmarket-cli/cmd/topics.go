package cmd

import (
	"fmt"
	"os"

	"github.com/nfrund/evmarket/cmd/evmarket-cli/internal/topics"
	"github.com/nfrund/evmarket/internal/pubsub"
	"github.com/spf13/cobra"
)

var (
	topicsOutputFormat string
	topicsModuleFilter string
)

// topicsCmd represents the topics command
var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Explore the in-process bus topics",
	Long: `The topics command lists and inspects the typed events carried by the
in-process bus: hub connection lifecycle, presence changes and chat messages.

Examples:
  # List all topics
  evmarket-cli topics list

  # List topics for a specific module
  evmarket-cli topics list --module=chat

  # Get detailed information about a topic
  evmarket-cli topics get chat.message.created

  # Validate a topic name
  evmarket-cli topics validate chat.message.created`,
}

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered topics",
	RunE: func(cmd *cobra.Command, args []string) error {
		list := topics.Filter(pubsub.DefaultRegistry().List(), topicsModuleFilter)
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No topics found")
			return nil
		}
		return topics.Display(cmd.OutOrStdout(), topicsOutputFormat, list)
	},
}

var topicsGetCmd = &cobra.Command{
	Use:   "get <topic-name>",
	Short: "Get detailed information about a specific topic",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, ok := pubsub.DefaultRegistry().Get(args[0])
		if !ok {
			fmt.Fprintf(os.Stderr, "\nUse 'evmarket-cli topics list' to see all available topics.\n")
			return fmt.Errorf("topic %q not found", args[0])
		}
		return topics.DisplayDetail(cmd.OutOrStdout(), topicsOutputFormat, info)
	},
}

var topicsValidateCmd = &cobra.Command{
	Use:   "validate <topic-name>",
	Short: "Validate a topic name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := pubsub.ValidateTopicName(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Topic name %q is valid\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(topicsCmd)
	topicsCmd.AddCommand(topicsListCmd, topicsGetCmd, topicsValidateCmd)

	topicsCmd.PersistentFlags().StringVarP(&topicsOutputFormat, "format", "f", "table", "Output format (table, json)")
	topicsListCmd.Flags().StringVarP(&topicsModuleFilter, "module", "m", "", "Filter topics by module name")
}
