package tradestore

import (
	"database/sql"
	"fmt"
	"math"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"binance-signal-monitor/internal/logging"
	"binance-signal-monitor/internal/simulator"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id              TEXT PRIMARY KEY,
	symbol          TEXT NOT NULL,
	side            TEXT NOT NULL,
	interval        TEXT NOT NULL,
	entry_time      TEXT NOT NULL,
	exit_time       TEXT NOT NULL,
	duration_sec    REAL NOT NULL,
	entry_price     REAL NOT NULL,
	exit_price      REAL NOT NULL,
	stop_loss       REAL NOT NULL,
	take_profit     REAL NOT NULL,
	tm_value_entry  REAL NOT NULL,
	quantity        REAL NOT NULL,
	position_value  REAL NOT NULL,
	gross_pnl       REAL NOT NULL,
	real_pnl        REAL NOT NULL,
	pnl_percent     REAL NOT NULL,
	commissions     REAL NOT NULL,
	close_reason    TEXT NOT NULL,
	is_winner       INTEGER NOT NULL,
	tm_color_entry  TEXT NOT NULL,
	momentum_entry  TEXT NOT NULL,
	price_change_pct REAL NOT NULL,
	risk_reward     REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_interval ON trades(interval);
CREATE INDEX IF NOT EXISTS idx_trades_entry_time ON trades(entry_time);
`

// Store persists closed trades to a SQLite file
type Store struct {
	db  *sql.DB
	log *logging.Logger

	mu         sync.Mutex
	appends    int
	lastAppend time.Time
}

// Open creates or opens the trade database and applies the schema
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open trade db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-64000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply pragma: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Store{db: db, log: logging.WithComponent("tradestore")}, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	return s.db.Close()
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

// AppendTrade writes one closed trade in a single transaction
func (s *Store) AppendTrade(trade *simulator.ClosedTrade) error {
	riskReward := 0.0
	if risk := math.Abs(trade.EntryPrice - trade.StopLoss); risk > 0 {
		riskReward = math.Abs(trade.TakeProfit-trade.EntryPrice) / risk
	}

	priceChangePct := 0.0
	if trade.EntryPrice > 0 {
		priceChangePct = (trade.ExitPrice - trade.EntryPrice) / trade.EntryPrice * 100
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO trades (
			id, symbol, side, interval, entry_time, exit_time, duration_sec,
			entry_price, exit_price, stop_loss, take_profit, tm_value_entry,
			quantity, position_value, gross_pnl, real_pnl, pnl_percent,
			commissions, close_reason, is_winner, tm_color_entry,
			momentum_entry, price_change_pct, risk_reward
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		trade.ID,
		trade.Symbol,
		string(trade.Side),
		trade.Interval,
		trade.EntryTime.UTC().Format(time.RFC3339),
		trade.ExitTime.UTC().Format(time.RFC3339),
		trade.Duration().Seconds(),
		round(trade.EntryPrice, 3),
		round(trade.ExitPrice, 3),
		round(trade.StopLoss, 3),
		round(trade.TakeProfit, 3),
		round(trade.TMValueAtEntry, 3),
		round(trade.Quantity, 6),
		round(trade.EntryPrice*trade.Quantity, 3),
		round(trade.GrossPnL, 3),
		round(trade.RealPnL, 3),
		round(trade.PnLPercent, 3),
		round(trade.TotalCommissions, 3),
		string(trade.CloseReason),
		boolToInt(trade.IsWinner),
		string(trade.TMColorAtEntry),
		string(trade.MomentumAtEntry),
		round(priceChangePct, 3),
		round(riskReward, 3),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit trade: %w", err)
	}

	s.mu.Lock()
	s.appends++
	s.lastAppend = time.Now().UTC()
	s.mu.Unlock()
	return nil
}

// SessionStats counts the writes made through this Store instance,
// independent of what the database already held
type SessionStats struct {
	Appends      int       `json:"appends"`
	LastAppendAt time.Time `json:"last_append_at,omitempty"`
}

// SessionStats reports this process's append activity
func (s *Store) SessionStats() SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionStats{Appends: s.appends, LastAppendAt: s.lastAppend}
}

// TradeRecord is a stored trade as read back from the database
type TradeRecord struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"`
	Interval       string  `json:"interval"`
	EntryTime      string  `json:"entry_time"`
	ExitTime       string  `json:"exit_time"`
	DurationSec    float64 `json:"duration_sec"`
	EntryPrice     float64 `json:"entry_price"`
	ExitPrice      float64 `json:"exit_price"`
	StopLoss       float64 `json:"stop_loss"`
	TakeProfit     float64 `json:"take_profit"`
	TMValueEntry   float64 `json:"tm_value_entry"`
	Quantity       float64 `json:"quantity"`
	PositionValue  float64 `json:"position_value"`
	GrossPnL       float64 `json:"gross_pnl"`
	RealPnL        float64 `json:"real_pnl"`
	PnLPercent     float64 `json:"pnl_percent"`
	Commissions    float64 `json:"commissions"`
	CloseReason    string  `json:"close_reason"`
	IsWinner       bool    `json:"is_winner"`
	TMColorEntry   string  `json:"tm_color_entry"`
	MomentumEntry  string  `json:"momentum_entry"`
	PriceChangePct float64 `json:"price_change_pct"`
	RiskReward     float64 `json:"risk_reward"`
}

const selectColumns = `
	id, symbol, side, interval, entry_time, exit_time, duration_sec,
	entry_price, exit_price, stop_loss, take_profit, tm_value_entry,
	quantity, position_value, gross_pnl, real_pnl, pnl_percent,
	commissions, close_reason, is_winner, tm_color_entry,
	momentum_entry, price_change_pct, risk_reward`

func scanTrade(rows *sql.Rows) (*TradeRecord, error) {
	var t TradeRecord
	var winner int
	err := rows.Scan(
		&t.ID, &t.Symbol, &t.Side, &t.Interval, &t.EntryTime, &t.ExitTime,
		&t.DurationSec, &t.EntryPrice, &t.ExitPrice, &t.StopLoss,
		&t.TakeProfit, &t.TMValueEntry, &t.Quantity, &t.PositionValue,
		&t.GrossPnL, &t.RealPnL, &t.PnLPercent, &t.Commissions,
		&t.CloseReason, &winner, &t.TMColorEntry, &t.MomentumEntry,
		&t.PriceChangePct, &t.RiskReward,
	)
	if err != nil {
		return nil, err
	}
	t.IsWinner = winner != 0
	return &t, nil
}

func (s *Store) queryTrades(query string, args ...interface{}) ([]*TradeRecord, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []*TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Trades returns all stored trades, most recent entry first
func (s *Store) Trades() ([]*TradeRecord, error) {
	return s.queryTrades("SELECT" + selectColumns + " FROM trades ORDER BY entry_time DESC")
}

// TradesForInterval returns trades for one interval; limit <= 0 means all
func (s *Store) TradesForInterval(interval string, limit int) ([]*TradeRecord, error) {
	if limit > 0 {
		return s.queryTrades(
			"SELECT"+selectColumns+" FROM trades WHERE interval = ? ORDER BY entry_time DESC LIMIT ?",
			interval, limit)
	}
	return s.queryTrades(
		"SELECT"+selectColumns+" FROM trades WHERE interval = ? ORDER BY entry_time DESC",
		interval)
}

// Intervals returns the distinct intervals present in the store
func (s *Store) Intervals() ([]string, error) {
	rows, err := s.db.Query("SELECT DISTINCT interval FROM trades ORDER BY interval")
	if err != nil {
		return nil, fmt.Errorf("query intervals: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// SymbolBreakdown summarises trades of one symbol within a summary
type SymbolBreakdown struct {
	Symbol   string  `json:"symbol"`
	Trades   int     `json:"trades"`
	Winners  int     `json:"winners"`
	TotalPnL float64 `json:"total_pnl"`
}

// Summary aggregates stored trades for one interval (or all)
type Summary struct {
	Interval       string            `json:"interval"`
	Trades         int               `json:"trades"`
	Winners        int               `json:"winners"`
	WinRate        float64           `json:"win_rate"`
	TotalPnL       float64           `json:"total_pnl"`
	BestPnL        float64           `json:"best_pnl"`
	WorstPnL       float64           `json:"worst_pnl"`
	AvgDurationSec float64           `json:"avg_duration_sec"`
	Commissions    float64           `json:"commissions"`
	BySymbol       []SymbolBreakdown `json:"by_symbol"`
}

// SummaryForInterval aggregates one interval; "" aggregates everything
func (s *Store) SummaryForInterval(interval string) (*Summary, error) {
	where := ""
	var args []interface{}
	if interval != "" {
		where = " WHERE interval = ?"
		args = append(args, interval)
	}

	row := s.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(is_winner), 0),
		       COALESCE(SUM(real_pnl), 0),
		       COALESCE(MAX(real_pnl), 0),
		       COALESCE(MIN(real_pnl), 0),
		       COALESCE(AVG(duration_sec), 0),
		       COALESCE(SUM(commissions), 0)
		FROM trades`+where, args...)

	sum := &Summary{Interval: interval}
	err := row.Scan(&sum.Trades, &sum.Winners, &sum.TotalPnL,
		&sum.BestPnL, &sum.WorstPnL, &sum.AvgDurationSec, &sum.Commissions)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	if sum.Trades > 0 {
		sum.WinRate = float64(sum.Winners) / float64(sum.Trades) * 100
	}

	rows, err := s.db.Query(`
		SELECT symbol, COUNT(*), COALESCE(SUM(is_winner), 0), COALESCE(SUM(real_pnl), 0)
		FROM trades`+where+`
		GROUP BY symbol ORDER BY SUM(real_pnl) DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("symbol breakdown: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b SymbolBreakdown
		if err := rows.Scan(&b.Symbol, &b.Trades, &b.Winners, &b.TotalPnL); err != nil {
			return nil, err
		}
		sum.BySymbol = append(sum.BySymbol, b)
	}
	return sum, rows.Err()
}

// SummaryByInterval returns one summary per distinct interval
func (s *Store) SummaryByInterval() ([]*Summary, error) {
	intervals, err := s.Intervals()
	if err != nil {
		return nil, err
	}

	out := make([]*Summary, 0, len(intervals))
	for _, iv := range intervals {
		sum, err := s.SummaryForInterval(iv)
		if err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ simulator.TradeSink = (*Store)(nil)
