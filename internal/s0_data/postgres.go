package s0_data

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ZhengGong-hub/equity-longshort-backtester/internal/contracts"
	"github.com/ZhengGong-hub/equity-longshort-backtester/pkg/logger"
)

// PostgresProvider loads daily bars from data.daily_prices and sectors from data.stocks
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PostgresProvider struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// NewPostgresProvider creates a new Postgres provider
func NewPostgresProvider(pool *pgxpool.Pool, log *logger.Logger) *PostgresProvider {
	return &PostgresProvider{pool: pool, logger: log}
}

// Name implements Provider
func (p *PostgresProvider) Name() string {
	return "postgres"
}

// Load implements Provider
func (p *PostgresProvider) Load(ctx context.Context, req Request) (*MarketData, error) {
	if req.Returns == ReturnsSupplied {
		return nil, fmt.Errorf("%w: postgres bars do not carry a return panel", contracts.ErrInvalidConfiguration)
	}

	bars, err := p.queryBars(ctx, req)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("no prices between %s and %s", dateOrOpen(req.Start), dateOrOpen(req.End))
	}

	sectors, err := p.querySectors(ctx)
	if err != nil {
		return nil, err
	}
	for i := range bars {
		bars[i].Sector = sectors[bars[i].Symbol]
	}

	md := FromBars(bars, req)

	p.logger.WithFields(map[string]interface{}{
		"rows":        len(bars),
		"dates":       md.Prices.Rows(),
		"instruments": md.Prices.Cols(),
	}).Info("Loaded Postgres market data")

	return md, nil
}

func (p *PostgresProvider) queryBars(ctx context.Context, req Request) ([]BarRecord, error) {
	query := `
		SELECT stock_code, trade_date, COALESCE(open_price, 'NaN'::float8), close_price
		FROM data.daily_prices
		WHERE ($1::date IS NULL OR trade_date >= $1)
		  AND ($2::date IS NULL OR trade_date <= $2)
		  AND (cardinality($3::text[]) = 0 OR stock_code = ANY($3))
		ORDER BY trade_date ASC, stock_code ASC
	`

	codes := req.Instruments
	if len(codes) > 0 && req.Benchmark != "" {
		codes = append(append([]string(nil), codes...), req.Benchmark)
	}
	if codes == nil {
		codes = []string{}
	}

	rows, err := p.pool.Query(ctx, query, nullDate(req.Start), nullDate(req.End), codes)
	if err != nil {
		return nil, fmt.Errorf("query prices: %w", err)
	}
	defer rows.Close()

	var bars []BarRecord
	for rows.Next() {
		var (
			code            string
			date            time.Time
			openPx, closePx float64
		)
		if err := rows.Scan(&code, &date, &openPx, &closePx); err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		bars = append(bars, BarRecord{
			Symbol:    code,
			Timestamp: date.UnixMilli(),
			Open:      openPx,
			Close:     closePx,
		})
	}
	return bars, rows.Err()
}

func (p *PostgresProvider) querySectors(ctx context.Context) (map[string]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT stock_code, sector FROM data.stocks WHERE sector <> ''`)
	if err != nil {
		return nil, fmt.Errorf("query sectors: %w", err)
	}
	defer rows.Close()

	sectors := make(map[string]string)
	for rows.Next() {
		var code, sector string
		if err := rows.Scan(&code, &sector); err != nil {
			return nil, fmt.Errorf("scan sector: %w", err)
		}
		sectors[code] = sector
	}
	return sectors, rows.Err()
}

// SaveBars upserts daily bars in one batch
func (p *PostgresProvider) SaveBars(ctx context.Context, bars []BarRecord) error {
	if len(bars) == 0 {
		return nil
	}

	query := `
		INSERT INTO data.daily_prices (stock_code, trade_date, open_price, close_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (stock_code, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			close_price = EXCLUDED.close_price
	`

	batch := &pgx.Batch{}
	for _, b := range bars {
		var openPx *float64
		if !math.IsNaN(b.Open) {
			v := b.Open
			openPx = &v
		}
		batch.Queue(query, b.Symbol, barDate(b.Timestamp), openPx, b.Close)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range bars {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert price: %w", err)
		}
	}
	return nil
}

// SaveSectors upserts stock sector labels
func (p *PostgresProvider) SaveSectors(ctx context.Context, sectors map[string]string) error {
	query := `
		INSERT INTO data.stocks (stock_code, sector)
		VALUES ($1, $2)
		ON CONFLICT (stock_code) DO UPDATE SET sector = EXCLUDED.sector
	`

	batch := &pgx.Batch{}
	for code, sector := range sectors {
		batch.Queue(query, code, sector)
	}

	results := p.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range sectors {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert sector: %w", err)
		}
	}
	return nil
}

// BarsFromPanel flattens wide closes (and optional opens) into bar records
func BarsFromPanel(closes, opens *contracts.Matrix) []BarRecord {
	bars := make([]BarRecord, 0, closes.Rows()*closes.Cols())
	for i, d := range closes.Dates {
		oi := -1
		if opens != nil {
			oi = opens.RowIndex(d)
		}
		for j, code := range closes.Columns {
			c := closes.At(i, j)
			if math.IsNaN(c) {
				continue
			}
			o := math.NaN()
			if oi >= 0 {
				if oj := opens.ColumnIndex(code); oj >= 0 {
					o = opens.At(oi, oj)
				}
			}
			bars = append(bars, BarRecord{Symbol: code, Timestamp: d.UnixMilli(), Open: o, Close: c})
		}
	}
	return bars
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func dateOrOpen(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(dateLayout)
}
