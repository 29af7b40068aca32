// Package table implements the data table controller: the state and
// data-fetching core behind paginated, filterable, sortable list views.
//
// A Controller owns the filter and search state, the sort state, a
// TTL-bounded cache of pages fetched through LoadMore, a selection set and
// the polling loop. Every operation that talks to the server goes through a
// remote.Fetcher; user-facing outcomes are reported through a notify.Notifier
// and every state change is published to an optional OnChange callback as an
// immutable Snapshot.
//
// Typical use:
//
//	ctrl, err := table.New(table.Config{Route: "admin.products"}, client,
//		table.WithLogger(logger),
//		table.WithOnChange(func(s table.Snapshot) { render(s) }),
//	)
//	if err != nil {
//		return err
//	}
//	defer ctrl.Close()
//	if err := ctrl.Start(ctx); err != nil {
//		log.Warn().Err(err).Msg("initial load failed")
//	}
//	_ = ctrl.SetFilter(ctx, "search", "pizza", false) // debounced
//	_ = ctrl.SetSort(ctx, "name")                     // immediate
//	_, _ = ctrl.LoadMore(ctx)
//
// View fetches (filter, search, sort and reload) are numbered; a response
// that is not the latest issued is discarded, so an old search term that
// answers late never overwrites newer results.
package table
