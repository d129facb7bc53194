package core

import "context"

// CollectionCursor iterates over every cache of every registered
// backend that implements CollectionEnumerator (§4.5). State is
// {backend index, inner cursor}; dropping the outer cursor without
// calling Close leaks the inner backend cursor, so callers must always
// Close it, including on early exit.
type CollectionCursor struct {
	ctxRef      *Context
	backends    []Backend
	index       int
	inner       CacheCursor
	innerActive bool
}

// NewCollectionCursor creates a cursor over the backends registered at
// creation time. N (the number of backends visited) is fixed to that
// snapshot even if more backends are registered afterward.
func (c *Context) NewCollectionCursor() *CollectionCursor {
	return &CollectionCursor{
		ctxRef:   c,
		backends: c.registry.List(),
	}
}

// Next advances the cursor and returns the next cache across the
// registered backends. It returns an end-of-caches error once every
// backend has been exhausted.
func (cur *CollectionCursor) Next(ctx context.Context) (CacheInfo, error) {
	for cur.index < len(cur.backends) {
		backend := cur.backends[cur.index]
		enumerator, ok := backend.(CollectionEnumerator)
		if !ok {
			cur.index++
			continue
		}

		if !cur.innerActive {
			info, inner, err := enumerator.GetCacheFirst(ctx)
			if err != nil {
				cur.index++
				continue
			}
			cur.inner = inner
			cur.innerActive = true
			return info, nil
		}

		info, next, err := enumerator.GetCacheNext(ctx, cur.inner)
		if err != nil {
			_ = enumerator.EndCacheGet(ctx, cur.inner)
			cur.inner = nil
			cur.innerActive = false
			cur.index++
			if IsEndOfCaches(err) {
				continue
			}
			return CacheInfo{}, wrapBackendError("get_cache_next", err)
		}
		cur.inner = next
		return info, nil
	}
	return CacheInfo{}, errEndOfCaches()
}

// Close ends whatever inner backend cursor is currently open. Safe to
// call multiple times and after Next has returned end-of-caches.
func (cur *CollectionCursor) Close(ctx context.Context) error {
	if !cur.innerActive {
		return nil
	}
	cur.innerActive = false
	if cur.index >= len(cur.backends) {
		return nil
	}
	enumerator, ok := cur.backends[cur.index].(CollectionEnumerator)
	if !ok {
		return nil
	}
	inner := cur.inner
	cur.inner = nil
	if err := enumerator.EndCacheGet(ctx, inner); err != nil {
		return wrapBackendError("end_cache_get", err)
	}
	return nil
}

// CacheMatch iterates the collection looking for a cache whose owner
// principal equals client. It opens and closes every cache it
// considers and returns not-found if none match.
func (c *Context) CacheMatch(ctx context.Context, client Principal) (*Handle, error) {
	cursor := c.NewCollectionCursor()
	defer cursor.Close(ctx)

	for {
		info, err := cursor.Next(ctx)
		if err != nil {
			if IsEndOfCaches(err) {
				return nil, errNotFound("no cache matches principal")
			}
			return nil, err
		}
		handle, err := c.Resolve(ctx, info.Backend+":"+info.Name)
		if err != nil {
			continue
		}
		owner, err := handle.GetPrincipal(ctx)
		if err != nil {
			_ = handle.Close(ctx)
			continue
		}
		if owner.Equal(client) {
			return handle, nil
		}
		_ = handle.Close(ctx)
	}
}
