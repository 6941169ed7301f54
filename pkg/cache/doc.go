// Package cache keeps short-lived values close to the code that reads them.
//
// Memory is process-local; Redis shares entries across instances. Both
// implement Cache, and GetOrSet adds load-through with one load per key
// in flight:
//
//	perms := cache.NewMemory[[]string](cache.WithTTL(time.Minute))
//	keys, err := cache.GetOrSet(ctx, perms, "user:42", 0, func(ctx context.Context) ([]string, error) {
//		return store.LoadPermissions(ctx, 42)
//	})
//
// The users store caches permission sets this way and deletes the entry
// whenever a user's permissions change.
package cache
