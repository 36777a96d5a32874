package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newSearchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "search [query]",
		Short:   "Search YouTube channels",
		Example: `  vispark search "golang conference" --max 5`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient(v)
			if err != nil {
				return err
			}
			maxResults, _ := cmd.Flags().GetInt64("max")

			channels, err := c.SearchChannels(cmd.Context(), strings.Join(args, " "), maxResults)
			if err != nil {
				return err
			}
			if len(channels) == 0 {
				fmt.Fprintln(cmd.ErrOrStderr(), "no channels found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CHANNEL ID\tTITLE")
			for _, ch := range channels {
				fmt.Fprintf(w, "%s\t%s\n", ch.ChannelID, ch.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64("max", 10, "Maximum number of channels (1-50)")
	return cmd
}
