// Package cache provides a small generic LRU cache.
//
//	c := cache.New[string, image.Image](8)
//	img := c.GetOrCreate(key, decode)
//
// Cache is safe for concurrent use and must not be copied after creation.
package cache
