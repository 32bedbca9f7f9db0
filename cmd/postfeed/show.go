package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/Sternrassler/postfeed/pkg/pagination"
	"github.com/spf13/cobra"
)

func newShowCommand(root *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show INDEX",
		Short: "Show the full detail of the record at a list position (0-based)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid index %q: %w", args[0], err)
			}

			sess, cleanup, err := root.openSession(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer cleanup()

			// Load pages until the index is covered or the feed stops growing.
			for index >= sess.RecordCount() {
				before := sess.RecordCount()
				if err := sess.LoadNextPage(cmd.Context()); err != nil {
					if errors.Is(err, pagination.ErrExhausted) {
						break
					}
					return err
				}
				if sess.RecordCount() == before {
					break
				}
			}

			detail, err := sess.Detail(index)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if root.Format == "json" {
				return json.NewEncoder(out).Encode(detail)
			}
			fmt.Fprintf(out, "%s\n\n#%s  %s\n\n%s\n", detail.Header, detail.ID, detail.Title, detail.Body)
			return nil
		},
	}
}
