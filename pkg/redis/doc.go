// Package redis opens go-redis clients for the Redis snapshot backend.
//
// [Open] validates the URL, applies pool and timeout options and pings
// with retries before handing the client out. [Healthcheck] and
// [Shutdown] return closures for health endpoints and shutdown hooks.
//
//	client, err := redis.Open(ctx, "redis://localhost:6379/0",
//	    redis.WithRetry(5, time.Second),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package redis
