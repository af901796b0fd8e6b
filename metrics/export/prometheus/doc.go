// Package prometheus renders goToken metrics in Prometheus text exposition
// format.
//
// [NewPrometheusExporter] wraps a [goToken.Engine] and exposes an
// [http.Handler]. Counters are named gotoken_*_total; the single histogram is
// gotoken_renew_latency_seconds. When the engine's store answers pings the
// output also carries gotoken_store_up.
//
// # What this package must NOT do
//
//   - Register metrics in a global registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
