// Package redis connects entitlekit to Redis with go-redis/v9.
//
// The client returned by Connect backs events.RedisSink, which fans
// subscription events out to per-tenant pub/sub channels:
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	sink := events.NewRedisSink(client, events.WithChannelPrefix(cfg.EventsChannelPrefix))
//
// Redis is optional: Config.Enabled reports false when REDIS_URL is unset and
// the daemon then keeps events in process.
package redis
