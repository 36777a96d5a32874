package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/vispark/vispark-api/internal/client"
	"github.com/vispark/vispark-api/internal/pipeline"
	"github.com/vispark/vispark-api/internal/validation"
)

func newSummarizeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summarize [YouTube URL or ID]",
		Short: "Stream a bullet summary of a video",
		Example: `  vispark summarize "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
  vispark summarize dQw4w9WgXcQ --language de --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoID, err := validation.ExtractVideoID(args[0])
			if err != nil {
				return err
			}
			c, err := newClient(v)
			if err != nil {
				return err
			}

			var recorder pipeline.Recorder
			if v.GetBool("save") {
				recorder = saveRecorder(c, cmd.ErrOrStderr())
			}

			p := newPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr())
			proc := pipeline.New(c, c, recorder,
				pipeline.WithLanguage(v.GetString("language")),
				pipeline.WithObserver(p.observe),
			)

			res, err := proc.Run(cmd.Context(), videoID)
			if err != nil {
				return err
			}
			p.finish(res)
			return nil
		},
	}

	cmd.Flags().StringP("language", "l", "en", "Transcript and summary language")
	cmd.Flags().Bool("save", false, "Save the summary to your vispark history")
	_ = v.BindPFlag("language", cmd.Flags().Lookup("language"))
	_ = v.BindPFlag("save", cmd.Flags().Lookup("save"))
	return cmd
}

func saveRecorder(c *client.Client, status io.Writer) pipeline.Recorder {
	return pipeline.RecorderFunc(func(ctx context.Context, res *pipeline.Result) error {
		row, err := c.SaveVispark(ctx, res.VideoID, res.Summaries)
		if err != nil {
			return err
		}
		fmt.Fprintf(status, "saved as %s\n", row.ID)
		return nil
	})
}

// printer writes summary text as it streams in and phase changes to the
// status writer.
type printer struct {
	out     io.Writer
	status  io.Writer
	printed int
	last    pipeline.Status
}

func newPrinter(out, status io.Writer) *printer {
	return &printer{out: out, status: status, last: pipeline.StatusIdle}
}

func (p *printer) observe(s pipeline.Snapshot) {
	if s.Status != p.last {
		p.last = s.Status
		switch s.Status {
		case pipeline.StatusGathering:
			fmt.Fprintln(p.status, "fetching transcript...")
		case pipeline.StatusSummarizing:
			fmt.Fprintln(p.status, "summarizing...")
		}
	}
	if len(s.SummaryText) > p.printed {
		fmt.Fprint(p.out, s.SummaryText[p.printed:])
		p.printed = len(s.SummaryText)
	}
}

// finish prints the parsed bullets when nothing was streamed.
func (p *printer) finish(res *pipeline.Result) {
	if p.printed == 0 {
		fmt.Fprintln(p.out, pipeline.FormatBullets(res.Summaries))
		return
	}
	if !strings.HasSuffix(res.Summary, "\n") {
		fmt.Fprintln(p.out)
	}
}
