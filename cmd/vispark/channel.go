package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vispark/vispark-api/internal/validation"
)

func newChannelCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "channel [channel ID or @handle]",
		Short: "Show a channel and its latest uploads",
		Example: `  vispark channel UCuAXFkgsw1L7xaCfnd5JJOw
  vispark channel @GoogleDevelopers --videos 5`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !validation.IsValidChannelRef(args[0]) {
				return fmt.Errorf("%q is not a channel ID or @handle", args[0])
			}
			c, err := newClient(v)
			if err != nil {
				return err
			}
			videos, _ := cmd.Flags().GetInt64("videos")

			details, err := c.ChannelDetails(cmd.Context(), args[0], videos)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ch := details.Channel
			fmt.Fprintf(out, "%s (%s)\n", ch.Title, ch.ChannelID)
			fmt.Fprintf(out, "%d subscribers, %d videos\n\n", ch.SubscriberCount, ch.VideoCount)

			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VIDEO ID\tPUBLISHED\tDURATION\tTITLE")
			for _, vid := range details.Videos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", vid.VideoID, vid.PublishedAt, vid.Duration, vid.Title)
			}
			return w.Flush()
		},
	}
	cmd.Flags().Int64("videos", 10, "Number of recent uploads to list (1-50)")
	return cmd
}
