package service

import "sync/atomic"

// Counters are the process-wide send tallies, zeroed at start. The
// dispatcher and direct sends write them; status queries read them.
type Counters struct {
	sent   atomic.Int64
	failed atomic.Int64
	slow   atomic.Int64
}

func (c *Counters) IncSent()   { c.sent.Add(1) }
func (c *Counters) IncFailed() { c.failed.Add(1) }
func (c *Counters) IncSlow()   { c.slow.Add(1) }

func (c *Counters) Sent() int64   { return c.sent.Load() }
func (c *Counters) Failed() int64 { return c.failed.Load() }
func (c *Counters) Slow() int64   { return c.slow.Load() }
