package slobs

import (
	"slices"
	"sort"
	"sync"
)

// SceneCache is the local mirror of SLOBS scenes, keyed by scene name,
// plus the name of the active scene.
//
// Names are not checked for uniqueness: a later scene with the same name
// replaces the earlier one. The active scene is tracked independently and
// may name a scene that is not cached.
//
// Safe for concurrent use. Returned scenes are copies.
type SceneCache struct {
	mu     sync.RWMutex
	scenes map[string]Scene
	active string
}

// NewSceneCache returns an empty cache.
func NewSceneCache() *SceneCache {
	return &SceneCache{scenes: make(map[string]Scene)}
}

// Put inserts or replaces a scene by name.
func (c *SceneCache) Put(scene Scene) {
	c.mu.Lock()
	c.scenes[scene.Name] = cloneScene(scene)
	c.mu.Unlock()
}

// PutAll inserts or replaces every scene in order. Scenes not in the list
// are kept.
func (c *SceneCache) PutAll(scenes []Scene) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range scenes {
		c.scenes[s.Name] = cloneScene(s)
	}
}

// Remove deletes a scene by name and reports whether it was present.
func (c *SceneCache) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.scenes[name]; !ok {
		return false
	}
	delete(c.scenes, name)
	return true
}

// Get looks up a scene by name.
func (c *SceneCache) Get(name string) (Scene, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.scenes[name]
	if !ok {
		return Scene{}, false
	}
	return cloneScene(s), true
}

// Active returns the active scene name, or "" before it is known.
func (c *SceneCache) Active() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// SetActive moves the active-scene cursor and returns the previous value.
func (c *SceneCache) SetActive(name string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.active
	c.active = name
	return prev
}

// Names returns the cached scene names in sorted order.
func (c *SceneCache) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.scenes))
	for name := range c.scenes {
		names = append(names, name)
	}
	c.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Snapshot returns all cached scenes sorted by name.
func (c *SceneCache) Snapshot() []Scene {
	c.mu.RLock()
	out := make([]Scene, 0, len(c.scenes))
	for _, s := range c.scenes {
		out = append(out, cloneScene(s))
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of cached scenes.
func (c *SceneCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scenes)
}

func cloneScene(s Scene) Scene {
	s.Nodes = slices.Clone(s.Nodes)
	return s
}
