// Package pagination drives incremental loading of a paginated record feed.
//
// A Controller owns the ordered record collection, the page cursor and the
// in-flight guard. The presentation layer signals that the user is near the
// end of the loaded content; the controller fetches the next page unless a
// fetch is already running, appends the result and notifies a Listener.
//
// Example usage:
//
//	ctrl := pagination.NewController(feedClient, pagination.Options{
//		PageSize: 20,
//		Listener: pagination.ListenerFuncs{
//			Updated: func() { redraw() },
//			Failed:  func(err error) { showError(err) },
//		},
//	}, logger)
//	defer ctrl.Close()
//
//	ctrl.RequestNextPage(ctx)
//	ctrl.MaybeLoadMore(ctx, scrollY, contentHeight, viewportHeight)
//
// Guarantees:
//   - At most one page fetch is in flight; redundant requests are no-ops
//   - Pages are fetched strictly in order: the cursor advances only after a
//     page has been appended
//   - A failed page leaves the cursor in place so the next request retries it
//   - Records are appended in arrival order and never reordered or deduplicated
//   - After Close, a fetch that settles changes nothing and notifies no one
package pagination
