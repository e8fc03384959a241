package common

import (
	"sync"
	"time"
)

// signatureTTL bounds how long a thought signature stays replayable. Client
// sessions replay tool history well within this window.
const signatureTTL = time.Hour

// SignatureCache remembers the thought signature a Gemini-backed upstream
// attached to each tool call. Clients do not always replay the signature in
// their history, and a thinking upstream rejects a resumed turn without it,
// so request translators restore signatures from here by tool call id.
type SignatureCache struct {
	mu        sync.RWMutex
	ttl       time.Duration
	nextSweep time.Time
	entries   map[string]signatureEntry

	now func() time.Time
}

type signatureEntry struct {
	signature string
	deadline  time.Time
}

// Signatures is the process-wide cache shared by the translator pairs.
var Signatures = NewSignatureCache(signatureTTL)

// NewSignatureCache returns a cache whose entries expire after ttl.
func NewSignatureCache(ttl time.Duration) *SignatureCache {
	return &SignatureCache{
		ttl:     ttl,
		entries: make(map[string]signatureEntry),
		now:     time.Now,
	}
}

// Put records the signature for a tool call id. Empty ids and signatures are
// ignored. Expired entries are swept opportunistically so the cache needs no
// background goroutine.
func (c *SignatureCache) Put(id, signature string) {
	if id == "" || signature == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.After(c.nextSweep) {
		c.sweep(now)
		c.nextSweep = now.Add(c.ttl / 2)
	}
	c.entries[id] = signatureEntry{signature: signature, deadline: now.Add(c.ttl)}
}

// Lookup returns the stored signature for a tool call id, or "" when the id
// is unknown or its entry expired.
func (c *SignatureCache) Lookup(id string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[id]
	if !ok || c.now().After(entry.deadline) {
		return ""
	}
	return entry.signature
}

// sweep drops expired entries. Callers hold the write lock.
func (c *SignatureCache) sweep(now time.Time) {
	for id, entry := range c.entries {
		if now.After(entry.deadline) {
			delete(c.entries, id)
		}
	}
}
