// Package health runs readiness checks for a cache deployment and serves
// them as HTTP endpoints.
//
// A check is any func(context.Context) error, which is the shape of
// redis.Healthcheck, db.Healthcheck and Manager.Healthcheck:
//
//	checks := health.Checks{
//	    "cache": manager.Healthcheck(),
//	    "redis": redis.Healthcheck(client),
//	}
//	mux.Handle("/health/live", health.LivenessHandler())
//	mux.Handle("/health/ready", health.ReadinessHandler(checks, health.WithLogger(log)))
//
// Checks run concurrently under one timeout. Handlers answer plain text by
// default; send Accept: application/json or ?format=json for a JSON report:
//
//	{
//	  "status": "unhealthy",
//	  "checks": {
//	    "cache": {"status": "healthy", "latency_ms": 0},
//	    "redis": {"status": "unhealthy", "error": "redis: healthcheck failed", "latency_ms": 2}
//	  }
//	}
package health
