/*
Package observability turns engine lifecycle hooks into metrics and audit logs.

Metrics registers Prometheus collectors on its own registry and exposes them
through Handler, so several engines (or tests) never clash on the default
registerer. LoggingHooks writes one structured record per node transition and
model round trip. Both return domain.LifecycleHooks and can be combined with
LifecycleHooks.Merge.
*/
package observability
