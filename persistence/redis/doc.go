// Package redis provides a Redis-based implementation of the chainstamp
// persistence interfaces.
//
// The StampStore persists the connector's stamp history and the
// last-stamped-digest slot that degraded mode verifies against, so both
// survive process restarts.
//
// # Basic Usage
//
//	import (
//	    "github.com/redis/go-redis/v9"
//	    "github.com/timelock-labs/chainstamp"
//	    redisstore "github.com/timelock-labs/chainstamp/persistence/redis"
//	)
//
//	client := redis.NewClient(&redis.Options{
//	    Addr: "localhost:6379",
//	})
//
//	store := redisstore.NewStampStore(client)
//
//	c, err := chainstamp.NewClient(cfg,
//	    chainstamp.WithStampStore(store),
//	)
//
// Use key prefixes to isolate data for different applications or
// environments:
//
//	prodStore := redisstore.NewStampStore(client, redisstore.WithStampStoreKeyPrefix("prod"))
//	testStore := redisstore.NewStampStore(client, redisstore.WithStampStoreKeyPrefix("test"))
package redis
