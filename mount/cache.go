package mount

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/vfsfabric/corevfs/vfserr"
)

// TrackerClient is the subset of the Mount Tracker's bus interface the
// cache needs on a miss. It is satisfied by tracker.Client; kept as an
// interface here so this package never imports the tracker package
// (the tracker is the cache's RPC peer, not its dependency).
type TrackerClient interface {
	LookupMount(ctx context.Context, spec *Spec, path string) (*Info, error)
	LookupMountByFusePath(ctx context.Context, path string) (*Info, string, error)
}

// Cache is the process-wide Mount Info Cache (component B): a map from
// (spec, path) to Info, with a secondary fuse-mountpoint index and a
// tertiary endpoint-id reverse index for bulk invalidation.
type Cache struct {
	tracker TrackerClient

	mu        sync.Mutex
	byKey     map[cacheKey]*Info
	byFuse    map[string]*Info // keyed by FuseMountpoint
	byEndpoint map[string]map[*Info]struct{}

	group singleflight.Group
}

type cacheKey struct {
	hash uint64
	path string
}

// NewCache returns an empty Cache that resolves misses through tracker.
func NewCache(tracker TrackerClient) *Cache {
	return &Cache{
		tracker:    tracker,
		byKey:      make(map[cacheKey]*Info),
		byFuse:     make(map[string]*Info),
		byEndpoint: make(map[string]map[*Info]struct{}),
	}
}

func keyFor(spec *Spec, path string) cacheKey {
	return cacheKey{hash: spec.Hash(), path: CanonicalizePath(path)}
}

// install records info under every index. Must be called with mu held.
func (c *Cache) install(key cacheKey, info *Info) {
	c.byKey[key] = info
	if info.FuseMountpoint != "" {
		c.byFuse[info.FuseMountpoint] = info
	}
	eid := info.EndpointID()
	set := c.byEndpoint[eid]
	if set == nil {
		set = make(map[*Info]struct{})
		c.byEndpoint[eid] = set
	}
	set[info] = struct{}{}
}

// LookupSync resolves (spec, path), consulting the cache first and
// falling back to a LookupMount RPC on miss. Concurrent lookups for the
// same key are deduplicated with singleflight: only one RPC is issued
// per (spec, path) and every racing caller adopts the winner's result,
// matching this system
func (c *Cache) LookupSync(ctx context.Context, spec *Spec, path string) (*Info, error) {
	key := keyFor(spec, path)

	c.mu.Lock()
	if info, ok := c.byKey[key]; ok {
		c.mu.Unlock()
		return info, nil
	}
	c.mu.Unlock()

	sfKey := sfKeyString(key)
	v, err, _ := c.group.Do(sfKey, func() (any, error) {
		info, err := c.tracker.LookupMount(ctx, spec, path)
		if err != nil {
			if vfserr.IsRetry(err) {
				return nil, err
			}
			return nil, err
		}
		c.mu.Lock()
		c.install(key, info)
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Info), nil
}

// lookupResult carries the outcome of an async lookup to its
// completion callback.
type lookupResult struct {
	Info *Info
	Err  error
}

// LookupAsync is the non-blocking mirror of LookupSync: the same
// resolution and dedup path, with the result delivered to done on a
// separate goroutine rather than blocking the caller.
func (c *Cache) LookupAsync(ctx context.Context, spec *Spec, path string, done func(*Info, error)) {
	go func() {
		info, err := c.LookupSync(ctx, spec, path)
		done(info, err)
	}()
}

// LookupByFusePath finds the longest FUSE mountpoint that is a
// component-prefix of path and returns the owning Info plus the
// remainder of path past that mountpoint. On a cache miss it falls
// back to a LookupMountByFusePath RPC.
func (c *Cache) LookupByFusePath(ctx context.Context, path string) (*Info, string, error) {
	c.mu.Lock()
	best, remainder, ok := c.bestFuseMatch(path)
	c.mu.Unlock()
	if ok {
		return best, remainder, nil
	}

	info, rem, err := c.tracker.LookupMountByFusePath(ctx, path)
	if err != nil {
		return nil, "", err
	}
	c.mu.Lock()
	c.install(keyFor(info.Spec, info.Spec.MountPrefix), info)
	c.mu.Unlock()
	return info, rem, nil
}

// bestFuseMatch must be called with mu held.
func (c *Cache) bestFuseMatch(path string) (*Info, string, bool) {
	path = CanonicalizePath(path)
	var best *Info
	var bestPrefix string
	for prefix, info := range c.byFuse {
		if !pathHasComponentPrefix(path, prefix) {
			continue
		}
		if best == nil || len(prefix) > len(bestPrefix) {
			best, bestPrefix = info, prefix
		}
	}
	if best == nil {
		return nil, "", false
	}
	remainder := path[len(bestPrefix):]
	for len(remainder) > 0 && remainder[0] == '/' {
		remainder = remainder[1:]
	}
	return best, remainder, true
}

// Invalidate removes every Info owned by endpointID, as happens when
// the Peer Connection Manager observes that endpoint's connection
// disconnect (this system "Disconnect handling").
func (c *Cache) Invalidate(endpointID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.byEndpoint[endpointID]
	if !ok {
		return
	}
	for info := range set {
		for key, v := range c.byKey {
			if v == info {
				delete(c.byKey, key)
			}
		}
		if info.FuseMountpoint != "" {
			delete(c.byFuse, info.FuseMountpoint)
		}
	}
	delete(c.byEndpoint, endpointID)
}

// Entries reports the number of distinct (spec, path) keys cached, for
// tests.
func (c *Cache) Entries() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byKey)
}

func sfKeyString(k cacheKey) string {
	buf := make([]byte, 8, 8+len(k.path))
	for i := 0; i < 8; i++ {
		buf[i] = byte(k.hash >> (8 * i))
	}
	return string(append(buf, k.path...))
}
