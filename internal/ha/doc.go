// Package ha fences sites that have been reported offline.
//
// # Overview
//
// A SiteOffline alert names an accelerator, the site that went dark and the
// site that noticed. The Engine turns each alert into a Decision:
//
//   - Decide is pure. It looks at the endpoint group and answers NoOp,
//     Blocked or Applied without touching the network.
//   - Handle resolves the live topology, calls Decide and, for Applied,
//     rewrites the endpoint group and then takes the site's cross-site
//     backup offline.
//
// # Safety
//
// A group with a single member is never emptied. A reporter that is not
// HEALTHY in the group is not trusted, since it may be the partitioned side.
// Endpoints without a site tag are never removed.
//
// # Consistency
//
// The two side effects are not transactional. If the replication command
// fails after the membership update, the traffic change stays in place and
// the alert's next delivery converges both, because both calls are
// idempotent.
//
// # Usage
//
//	engine := ha.NewEngine(topology.NewResolver(acc, tags), repl, logger, nil)
//	engine.Subscribe(func(d ha.Decision) { m.IncDecision(d.Outcome.String()) })
//	decisions := engine.HandleAll(ctx, payload.SiteOffline())
package ha
