// Package health reports whether a toolscope instance can serve.
//
// A Checker reports a Status: Healthy, Degraded or Unhealthy. The Aggregator
// runs registered checkers concurrently under one deadline and folds their
// results into an overall status.
//
// Two checkers ship with the package:
//
//   - PermissionsChecker reports Degraded when the permission table is empty
//     or has no guest entry, since every caller then falls back to the
//     built-in "list" permission.
//   - UpstreamChecker probes the upstream MCP server in reverse-proxy mode.
//
// # HTTP Endpoints
//
//	r := chi.NewRouter()
//	health.Mount(r, agg)
//
// mounts /healthz (liveness), /readyz (readiness) and /health (detailed JSON).
package health
