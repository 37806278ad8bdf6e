package observability

import (
	"sync/atomic"
)

// BrokerMetrics counts relay broker activity.
type BrokerMetrics struct {
	Submitted  atomic.Int64
	Polled     atomic.Int64
	EmptyPolls atomic.Int64
	Broadcast  atomic.Int64
	Dropped    atomic.Int64
	Rejected   atomic.Int64
}

func NewBrokerMetrics() *BrokerMetrics {
	return &BrokerMetrics{}
}

func (m *BrokerMetrics) IncSubmitted() {
	m.Submitted.Add(1)
}

func (m *BrokerMetrics) IncPolled() {
	m.Polled.Add(1)
}

func (m *BrokerMetrics) IncEmptyPolls() {
	m.EmptyPolls.Add(1)
}

func (m *BrokerMetrics) IncBroadcast() {
	m.Broadcast.Add(1)
}

func (m *BrokerMetrics) IncDropped() {
	m.Dropped.Add(1)
}

func (m *BrokerMetrics) IncRejected() {
	m.Rejected.Add(1)
}

// Snapshot is a point-in-time copy suitable for JSON.
type Snapshot struct {
	Submitted  int64 `json:"submitted"`
	Polled     int64 `json:"polled"`
	EmptyPolls int64 `json:"empty_polls"`
	Broadcast  int64 `json:"broadcast"`
	Dropped    int64 `json:"dropped"`
	Rejected   int64 `json:"rejected"`
}

func (m *BrokerMetrics) Snapshot() Snapshot {
	return Snapshot{
		Submitted:  m.Submitted.Load(),
		Polled:     m.Polled.Load(),
		EmptyPolls: m.EmptyPolls.Load(),
		Broadcast:  m.Broadcast.Load(),
		Dropped:    m.Dropped.Load(),
		Rejected:   m.Rejected.Load(),
	}
}
