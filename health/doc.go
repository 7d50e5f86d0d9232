// Package health reports whether a storefront session can do useful work.
//
// A Checker reports one component's Status. Two are provided:
//
//   - SessionChecker: unhealthy when logged out, degraded while a credential
//     renewal is in flight.
//   - APIChecker: issues GET /ping against the backend.
//
// An Aggregator runs a set of checkers in parallel under one timeout and
// folds their results into a Report:
//
//	agg := health.NewAggregator()
//	agg.Register("session", health.NewSessionChecker(holder, coordinator))
//	agg.Register("api", health.NewAPIChecker(issuer, health.APICheckerConfig{}))
//
//	report := agg.Report(ctx)
//	if report.Status != health.StatusHealthy {
//	    ...
//	}
package health
