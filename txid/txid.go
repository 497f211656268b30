package txid

import (
	"fmt"
	"sync/atomic"
	"time"
)

// DateTimeLayout is the gateway's fixed-width timestamp, milliseconds included
const DateTimeLayout = "20060102150405.000"

// MaxLead bounds how far an issued timestamp may run ahead of the clock
const MaxLead = time.Second

type Identity struct {
	TransactionId       string
	TransactionDateTime string
}

// Generator issues transaction identifiers of the form <prefix><yyyyMMddHHmmssSSS>.
// Identifiers are strictly increasing within a process: a call landing in an
// already used millisecond is moved to the next one. Once that pushes the
// timestamp MaxLead ahead of the clock, callers wait for the clock to catch up,
// which caps the rate at 1000 identifiers per second.
type Generator struct {
	prefix   string
	location *time.Location
	now      func() time.Time
	sleep    func(time.Duration)
	last     atomic.Int64
}

func NewGenerator(prefix string, location *time.Location) *Generator {
	if location == nil {
		location = time.Local
	}
	return &Generator{
		prefix:   prefix,
		location: location,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

// SetClock replaces the time source
func (g *Generator) SetClock(now func() time.Time) {
	g.now = now
}

func (g *Generator) Next() Identity {
	dateTime := FormatDateTime(g.tick())
	return Identity{
		TransactionId:       g.prefix + dateTime,
		TransactionDateTime: dateTime,
	}
}

// NewTransactionId is a shorthand for Next().TransactionId
func (g *Generator) NewTransactionId() string {
	return g.Next().TransactionId
}

func (g *Generator) tick() time.Time {
	maxLead := MaxLead.Milliseconds()
	for {
		ms := g.now().UnixMilli()
		last := g.last.Load()
		next := ms
		if next <= last {
			next = last + 1
		}
		if lead := next - ms; lead > maxLead {
			g.sleep(time.Duration(lead-maxLead) * time.Millisecond)
			continue
		}
		if g.last.CompareAndSwap(last, next) {
			return time.UnixMilli(next).In(g.location)
		}
	}
}

func FormatDateTime(t time.Time) string {
	s := t.Format(DateTimeLayout)
	// drop the separator the layout needs for fractional seconds
	return s[:14] + s[15:]
}

func (i Identity) String() string {
	return fmt.Sprintf("%s@%s", i.TransactionId, i.TransactionDateTime)
}
