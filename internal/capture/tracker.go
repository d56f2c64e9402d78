package capture

import (
	"sort"
	"sync"
)

// DefaultTopN is the number of addresses reported when a caller asks for n <= 0.
const DefaultTopN = 10

var protocolNames = map[string]string{
	"1":   "ICMP",
	"6":   "TCP",
	"17":  "UDP",
	"128": "Other",
}

// ProtocolLabel maps a protocol id to its display label.
// ProtocolLabel 将协议号映射为显示名称。
func ProtocolLabel(id string) string {
	if name, ok := protocolNames[id]; ok {
		return name
	}
	return "Protocol " + id
}

// Count is one frequency table entry.
type Count struct {
	Key   string `json:"key"`
	Count uint64 `json:"count"`
}

// FrequencyTable counts keys and remembers the order in which they were first seen.
type FrequencyTable struct {
	index   map[string]int
	entries []Count
}

func newFrequencyTable() FrequencyTable {
	return FrequencyTable{index: make(map[string]int)}
}

func (t *FrequencyTable) inc(key string) {
	if i, ok := t.index[key]; ok {
		t.entries[i].Count++
		return
	}
	t.index[key] = len(t.entries)
	t.entries = append(t.entries, Count{Key: key, Count: 1})
}

func (t *FrequencyTable) get(key string) uint64 {
	if i, ok := t.index[key]; ok {
		return t.entries[i].Count
	}
	return 0
}

// top returns the n highest counts; equal counts keep first-seen order.
func (t *FrequencyTable) top(n int) []Count {
	out := make([]Count, len(t.entries))
	copy(out, t.entries)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	if n < len(out) {
		out = out[:n]
	}
	return out
}

// Tracker keeps the per-session source address and protocol counts.
// Only the session tail loop writes; the lock lets status readers take snapshots.
// Tracker 保存会话内源地址与协议计数。
type Tracker struct {
	mu        sync.RWMutex
	addresses FrequencyTable
	protocols FrequencyTable
	total     uint64
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		addresses: newFrequencyTable(),
		protocols: newFrequencyTable(),
	}
}

// Reset clears both tables.
// Reset 清空两个计数表。
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.addresses = newFrequencyTable()
	t.protocols = newFrequencyTable()
	t.total = 0
	t.mu.Unlock()
}

// AddRecord counts the record's source address and protocol.
// AddRecord 统计记录的源地址和协议。
func (t *Tracker) AddRecord(r Record) {
	t.mu.Lock()
	t.addresses.inc(r.SrcIP)
	t.protocols.inc(r.Protocol)
	t.total++
	t.mu.Unlock()
}

// Total returns the number of records added since the last reset.
func (t *Tracker) Total() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

// AddressCount returns the count for one source address.
func (t *Tracker) AddressCount(addr string) uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.addresses.get(addr)
}

// TopAddresses returns the n most frequent source addresses, highest first.
// Ties are broken by first appearance. n <= 0 means DefaultTopN.
// TopAddresses 返回出现次数最多的 n 个源地址。
func (t *Tracker) TopAddresses(n int) []Count {
	if n <= 0 {
		n = DefaultTopN
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.addresses.top(n)
}

// TopAddressMap is TopAddresses keyed by address, the shape sent to viewers.
func (t *Tracker) TopAddressMap(n int) map[string]uint64 {
	top := t.TopAddresses(n)
	out := make(map[string]uint64, len(top))
	for _, c := range top {
		out[c.Key] = c.Count
	}
	return out
}

// ProtocolSummary returns counts keyed by protocol label.
// ProtocolSummary 返回按协议名称汇总的计数。
func (t *Tracker) ProtocolSummary() map[string]uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]uint64, len(t.protocols.entries))
	for _, c := range t.protocols.entries {
		out[ProtocolLabel(c.Key)] += c.Count
	}
	return out
}
