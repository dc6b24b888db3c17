package feed

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/JuruSysadmin/JuruConnect-sub001/internal/bus"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/event"
	"github.com/JuruSysadmin/JuruConnect-sub001/internal/telemetry"
)

// DefaultCapacity is the retention bound of the live feed.
const DefaultCapacity = 15

// KindSale marks a feed entry created from a sale event.
const KindSale = "sale"

// Entry is one discrete event shown in the live feed. Immutable once
// created.
type Entry struct {
	ID         string
	ActorName  string
	StoreName  string
	Amount     decimal.Decimal
	Goal       decimal.Decimal
	OccurredAt time.Time
	Kind       string
}

// FromSale builds the feed entry for a canonical sale event.
func FromSale(sale event.Sale) Entry {
	return Entry{
		ID:         sale.ID,
		ActorName:  sale.SellerName,
		StoreName:  sale.StoreName,
		Amount:     sale.Amount,
		Goal:       sale.Goal,
		OccurredAt: sale.OccurredAt,
		Kind:       KindSale,
	}
}

// LiveFeed is the bounded, ranked collection of recent entries. State is
// ephemeral: it is rebuilt from the live event stream, never from storage.
type LiveFeed struct {
	mu       sync.Mutex
	entries  []Entry
	capacity int
	broker   *bus.Broker
	logger   zerolog.Logger
}

// New constructs a live feed with the given retention bound.
func New(capacity int, broker *bus.Broker, logger zerolog.Logger) *LiveFeed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &LiveFeed{
		capacity: capacity,
		broker:   broker,
		logger:   logger.With().Str("component", "live_feed").Logger(),
	}
}

// Push ranks a new entry into the feed and broadcasts it. The working set is
// re-sorted on every push, so correctness does not depend on the insertion
// order.
func (f *LiveFeed) Push(entry Entry) {
	f.mu.Lock()
	f.entries = append([]Entry{entry}, f.entries...)
	sort.SliceStable(f.entries, func(i, j int) bool {
		cmp := f.entries[i].Amount.Cmp(f.entries[j].Amount)
		if cmp != 0 {
			return cmp > 0
		}
		return f.entries[i].OccurredAt.After(f.entries[j].OccurredAt)
	})
	if len(f.entries) > f.capacity {
		f.entries = f.entries[:f.capacity]
	}
	size := len(f.entries)
	f.mu.Unlock()

	telemetry.FeedEntries.Set(float64(size))

	if f.broker != nil {
		f.broker.Publish(event.TopicSaleAdded, entry)
	}
}

// Entries returns a copy of the current ranking.
func (f *LiveFeed) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Entry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Len reports the current entry count.
func (f *LiveFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}
