package main

import (
	"github.com/Sternrassler/postfeed/pkg/logging"
	"github.com/spf13/cobra"
)

func newRootCommand(getenv func(string) string) *cobra.Command {
	opts := defaultOptions(getenv)
	var logLevel string

	cmd := &cobra.Command{
		Use:           "postfeed",
		Short:         "Browse a paginated post feed",
		Long:          "postfeed loads posts page by page as you scroll, memoizing a derived value per post.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				opts.Logging.Level = logging.LogLevel(logLevel)
			}
			opts.Logging.Output = cmd.ErrOrStderr()
			logging.Setup(opts.Logging)
			return nil
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.BaseURL, "base-url", opts.BaseURL, "feed service base URL (POSTFEED_BASE_URL)")
	flags.IntVar(&opts.PageSize, "page-size", opts.PageSize, "records per page (POSTFEED_PAGE_SIZE)")
	flags.StringVar(&opts.UserAgent, "user-agent", opts.UserAgent, "User-Agent header (POSTFEED_USER_AGENT)")
	flags.StringVar(&opts.RedisURL, "redis", opts.RedisURL, "Redis address for the shared page cache, empty to disable (REDIS_URL)")
	flags.BoolVar(&opts.StopOnEmptyPage, "stop-on-empty", opts.StopOnEmptyPage, "stop loading after an empty page (POSTFEED_STOP_ON_EMPTY)")
	flags.StringVar(&opts.Format, "format", opts.Format, "output format (json|text)")
	flags.StringVar(&logLevel, "log-level", string(opts.Logging.Level), "log level (LOG_LEVEL)")
	flags.BoolVar(&opts.Logging.Pretty, "log-pretty", opts.Logging.Pretty, "human-readable logs (LOG_PRETTY)")

	cmd.AddCommand(newListCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newServeCommand(opts, getenv))

	return cmd
}
