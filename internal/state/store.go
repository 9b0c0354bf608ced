package state

import (
	"sync"
	"time"

	"costlens/logger"
	"costlens/models"
)

// ConnectionStatus is the client's view of the analytics connection.
// Exactly one value holds at any time.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnected    ConnectionStatus = "connected"
	StatusErrored      ConnectionStatus = "errored"
)

// StatusView is the connection slice of state rendered by the dashboard.
type StatusView struct {
	Status       ConnectionStatus `json:"status"`
	ErrorCode    string           `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	ChangedAt    time.Time        `json:"changed_at"`
}

// OrderbookView is the order book slice of state. HasData distinguishes
// "never received" from an empty book; stale data stays visible after a
// disconnect.
type OrderbookView struct {
	HasData    bool                     `json:"has_data"`
	Snapshot   models.OrderbookSnapshot `json:"snapshot"`
	BidLevels  int                      `json:"bid_levels"`
	AskLevels  int                      `json:"ask_levels"`
	ReceivedAt time.Time                `json:"received_at"`
}

// AnalyticsView is the analytics slice of state.
type AnalyticsView struct {
	HasData    bool                   `json:"has_data"`
	Result     models.AnalyticsResult `json:"result"`
	ReceivedAt time.Time              `json:"received_at"`
}

// Store holds the latest value of every server-pushed stream. Writes come
// from the reconciler's dispatcher loop only; reads come from the
// dashboard handlers. The RWMutex guarantees torn-free snapshots.
type Store struct {
	mu sync.RWMutex

	status    ConnectionStatus
	statusAt  time.Time
	errCode   string
	errMsg    string

	orderbook    models.OrderbookSnapshot
	hasOrderbook bool
	orderbookAt  time.Time

	analytics    models.AnalyticsResult
	hasAnalytics bool
	analyticsAt  time.Time

	log *logger.Log
}

func NewStore() *Store {
	return &Store{
		status: StatusDisconnected,
		log:    logger.GetLogger(),
	}
}

// SetStatus records a connection status transition. The most recent
// connection-affecting event always wins, whether it came from the
// transport or from a server-asserted connection_status override.
func (s *Store) SetStatus(status ConnectionStatus) {
	s.mu.Lock()
	s.status = status
	s.statusAt = time.Now()
	s.mu.Unlock()
}

// SetError surfaces a transient error banner without implying anything
// about the connection state.
func (s *Store) SetError(code, message string) {
	s.mu.Lock()
	s.errCode = code
	s.errMsg = message
	s.mu.Unlock()
}

// ClearError removes the banner, typically on a successful (re)connect.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.errCode = ""
	s.errMsg = ""
	s.mu.Unlock()
}

// SetOrderbook replaces the order book wholesale. No diffing or merging
// happens client-side; the server always sends complete snapshots.
func (s *Store) SetOrderbook(book models.OrderbookSnapshot) {
	s.mu.Lock()
	s.orderbook = book
	s.hasOrderbook = true
	s.orderbookAt = time.Now()
	s.mu.Unlock()
}

// SetAnalytics replaces the analytics result wholesale.
func (s *Store) SetAnalytics(result models.AnalyticsResult) {
	s.mu.Lock()
	s.analytics = result
	s.hasAnalytics = true
	s.analyticsAt = time.Now()
	s.mu.Unlock()
}

func (s *Store) Status() StatusView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusView{
		Status:       s.status,
		ErrorCode:    s.errCode,
		ErrorMessage: s.errMsg,
		ChangedAt:    s.statusAt,
	}
}

func (s *Store) Orderbook() OrderbookView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return OrderbookView{
		HasData:    s.hasOrderbook,
		Snapshot:   s.orderbook,
		BidLevels:  len(s.orderbook.Bids),
		AskLevels:  len(s.orderbook.Asks),
		ReceivedAt: s.orderbookAt,
	}
}

func (s *Store) Analytics() AnalyticsView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return AnalyticsView{
		HasData:    s.hasAnalytics,
		Result:     s.analytics,
		ReceivedAt: s.analyticsAt,
	}
}
