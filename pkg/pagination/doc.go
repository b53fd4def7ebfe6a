// Package pagination accumulates a paged listing for "load more" style
// consumers.
//
// A Coordinator watches a source that always holds the current page as
// delivered by the server ({total, list}) and appends every page it sees to
// an accumulated list. Advancing is driven by the caller-owned Cursor: the
// coordinator bumps the page number and invokes the supplied fetch, which is
// expected to re-issue the query with Cursor.Page().
//
// Example usage with a request executor:
//
//	cursor := &pagination.Cursor{}
//	exec := request.New(transport, request.Descriptor[pagination.Page[Item]]{
//		URL: observable.Static("/items"),
//		Params: observable.Func[request.Params](func() request.Params {
//			return request.Params{"page": cursor.Page()}
//		}),
//	})
//	coord := pagination.New(exec.DataSource(), cursor, exec.Fetch)
//	defer coord.Close()
//
//	<-exec.Attach(ctx)
//	for !coord.NoMore() {
//		before := len(coord.List())
//		if !coord.LoadMore(ctx) || len(coord.List()) == before {
//			break // the page failed or came back empty
//		}
//	}
//
// LoadMore reports whether it ran the fetch, not whether the fetch added
// anything. A rejected or empty page leaves the list as it was, so loops
// must check for growth to avoid re-requesting forever.
//
// NoMore is true once the accumulated list holds at least total items and
// total is non-zero. LoadMore refuses to run while a previous LoadMore is
// still waiting on its fetch, so the cursor never advances twice for one
// page.
package pagination
