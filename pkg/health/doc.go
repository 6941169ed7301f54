// Package health serves the liveness and readiness probes.
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//		"db":    db.Healthcheck(pool),
//		"redis": redis.Healthcheck(client),
//	}))
//
// Readiness runs all checks concurrently under one timeout and answers 503
// when any fails. Add ?format=json or "Accept: application/json" for the
// per-check report.
package health
