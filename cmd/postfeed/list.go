package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/Sternrassler/postfeed/pkg/feed"
	"github.com/Sternrassler/postfeed/pkg/pagination"
	"github.com/spf13/cobra"
)

type listOptions struct {
	Count     int
	Viewport  float64
	RowHeight float64
}

func newListCommand(root *options) *cobra.Command {
	opts := &listOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Scroll through the feed and print rows as they come into view",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Count < 1 {
				return fmt.Errorf("count must be >= 1 (got %d)", opts.Count)
			}
			if opts.Viewport <= 0 || opts.RowHeight <= 0 {
				return fmt.Errorf("viewport and row height must be > 0")
			}

			errOut := cmd.ErrOrStderr()
			listener := pagination.ListenerFuncs{
				Failed: func(err error) { fmt.Fprintf(errOut, "load failed: %v\n", err) },
			}

			sess, cleanup, err := root.openSession(cmd.Context(), listener)
			if err != nil {
				return err
			}
			defer cleanup()

			return scrollFeed(cmd, sess, opts, newRowPrinter(cmd.OutOrStdout(), root.Format))
		},
	}

	cmd.Flags().IntVarP(&opts.Count, "count", "n", 40, "number of rows to print")
	cmd.Flags().Float64Var(&opts.Viewport, "viewport", 800, "viewport height")
	cmd.Flags().Float64Var(&opts.RowHeight, "row-height", 80, "height of one row")

	return cmd
}

// scrollFeed simulates a user scrolling half a viewport at a time. Each new
// scroll position is reported to the session, which decides whether to load
// the next page. Scrolling stops once count rows were printed or the bottom
// of the content is reached and no further records arrive.
func scrollFeed(cmd *cobra.Command, sess *feed.Session, opts *listOptions, print func(feed.Row) error) error {
	ctx := cmd.Context()

	sess.Initialize(ctx)
	sess.Wait()

	scroll := 0.0
	printed := 0
	for printed < opts.Count {
		total := sess.RecordCount()
		content := float64(total) * opts.RowHeight
		visible := int(math.Ceil((scroll + opts.Viewport) / opts.RowHeight))

		for printed < total && printed < visible && printed < opts.Count {
			row, err := sess.Row(printed)
			if err != nil {
				return err
			}
			if err := print(row); err != nil {
				return err
			}
			printed++
		}
		if printed >= opts.Count {
			break
		}

		maxScroll := math.Max(0, content-opts.Viewport)
		if scroll >= maxScroll {
			sess.OnScrollPositionChanged(ctx, scroll, content, opts.Viewport)
			sess.Wait()
			if sess.RecordCount() == total {
				break
			}
			continue
		}

		scroll = math.Min(scroll+opts.Viewport/2, maxScroll)
		if sess.OnScrollPositionChanged(ctx, scroll, content, opts.Viewport) {
			sess.Wait()
		}
	}

	if printed < opts.Count {
		fmt.Fprintf(cmd.ErrOrStderr(), "end of feed after %d rows\n", printed)
	}
	return nil
}

func newRowPrinter(w io.Writer, format string) func(feed.Row) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		return func(row feed.Row) error {
			return enc.Encode(row)
		}
	}
	return func(row feed.Row) error {
		_, err := fmt.Fprintf(w, "%4s  %-70s  %s\n", row.ID, row.Title, row.Derived)
		return err
	}
}
