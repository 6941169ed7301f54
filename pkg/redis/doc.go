// Package redis opens the go-redis client canopy keeps sessions in.
//
//	client, err := redis.Open(ctx, cfg.Redis)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Open pings before returning and retries failed attempts. Healthcheck and
// Shutdown plug into the App's readiness checks and shutdown hooks.
package redis
