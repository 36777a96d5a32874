package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/vispark/vispark-api/internal/client"
	"github.com/vispark/vispark-api/pkg/logger"
)

// newRootCmd builds the command tree. Each call gets its own viper instance
// so flags, env and defaults never leak between invocations.
func newRootCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("VISPARK")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	root := &cobra.Command{
		Use:   "vispark",
		Short: "Summarize YouTube videos with the vispark API",
		Long: `vispark fetches a video's transcript, streams a bullet summary of it
and optionally saves the result to your vispark history.

Credentials are read from flags or VISPARK_API_URL, VISPARK_TOKEN and
VISPARK_ANON_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("api-url", "http://localhost:8080", "Base URL of the vispark API")
	pf.String("token", "", "User access token")
	pf.String("anon-key", "", "Project anon key sent in the apikey header")
	pf.Duration("timeout", 2*time.Minute, "Request timeout")
	pf.BoolP("verbose", "v", false, "Enable verbose output for debugging")
	_ = v.BindPFlags(pf)

	root.AddCommand(
		newSummarizeCmd(v),
		newSearchCmd(v),
		newChannelCmd(v),
	)
	return root
}

func newClient(v *viper.Viper) (*client.Client, error) {
	log := zap.NewNop()
	if v.GetBool("verbose") {
		l, err := logger.New("debug", "")
		if err != nil {
			return nil, err
		}
		log = l
	}
	return client.New(
		v.GetString("api-url"),
		v.GetString("token"),
		v.GetDuration("timeout"),
		client.WithAPIKey(v.GetString("anon-key")),
		client.WithLogger(log),
	), nil
}
