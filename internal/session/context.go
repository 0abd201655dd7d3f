// Package session holds the session currently being bridged, shared by
// the bridge, the recorder worker, logging and the monitor.
package session

import (
	"sync"
	"sync/atomic"

	"github.com/OCAP2/physbridge/pkg/core"
)

// Context holds the current session and its step counter.
type Context struct {
	mu      sync.RWMutex
	session *core.Session
	step    atomic.Int64
}

// NewContext creates a Context with a placeholder session.
func NewContext() *Context {
	return &Context{session: &core.Session{Name: "No session started"}}
}

func (c *Context) Session() *core.Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Set replaces the session and resets the step counter.
func (c *Context) Set(s *core.Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session = s
	c.step.Store(0)
}

// Step is the number of simulate requests sent so far.
func (c *Context) Step() int { return int(c.step.Load()) }

// Advance counts one simulate request and returns the new step.
func (c *Context) Advance() int { return int(c.step.Add(1)) }
