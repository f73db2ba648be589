package handler

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"caisse-system/internal/database/models"
	"caisse-system/internal/events"
)

const (
	REPORTS_CACHE_PREFIX  = "reports:"
	DASHBOARD_CACHE_KEY   = REPORTS_CACHE_PREFIX + "dashboard:"
	CACHE_TTL_SHORT       = 5 * time.Minute
	uncategorized         = "Sans catégorie"
	defaultCriticalLimit  = 10
	paymentStatusLookback = 30
)

type Period string

const (
	PeriodToday Period = "today"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

func (p Period) Valid() bool {
	switch p {
	case PeriodToday, PeriodWeek, PeriodMonth:
		return true
	}
	return false
}

type ProductSales struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type ClientSales struct {
	ClientID  int64           `json:"client_id"`
	Name      string          `json:"name"`
	Purchases int             `json:"purchases"`
	Revenue   decimal.Decimal `json:"revenue"`
}

type CriticalProduct struct {
	ProductID    int64           `json:"product_id"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	CurrentStock int             `json:"current_stock"`
	StockMin     int             `json:"stock_min"`
	Deficit      int             `json:"deficit"`
	SalePrice    decimal.Decimal `json:"sale_price"`
}

type CategoryRevenue struct {
	Category string          `json:"category"`
	Revenue  decimal.Decimal `json:"revenue"`
	Items    int             `json:"items"`
}

type DailyRevenue struct {
	Date    string          `json:"date"`
	Revenue decimal.Decimal `json:"revenue"`
	Sales   int             `json:"sales"`
}

type StatusBreakdown struct {
	Status models.SaleStatus `json:"status"`
	Count  int               `json:"count"`
	Amount decimal.Decimal   `json:"amount"`
}

type DashboardSummary struct {
	RevenueToday  decimal.Decimal   `json:"revenue_today"`
	RevenueWeek   decimal.Decimal   `json:"revenue_week"`
	RevenueMonth  decimal.Decimal   `json:"revenue_month"`
	SalesToday    int               `json:"sales_today"`
	SalesMonth    int               `json:"sales_month"`
	TopProducts   []ProductSales    `json:"top_products"`
	TopClients    []ClientSales     `json:"top_clients"`
	CriticalStock []CriticalProduct `json:"critical_stock"`
	ByCategory    []CategoryRevenue `json:"by_category"`
	Evolution     []DailyRevenue    `json:"evolution"`
	PaymentStatus []StatusBreakdown `json:"payment_status"`
}

// ReportsHandler aggregates read-only statistics. Every query degrades to an
// empty result on storage failure. Sums are done in decimal in Go so results
// match across database engines.
type ReportsHandler struct {
	db    *gorm.DB
	redis *redis.Client
	log   *zap.Logger
	now   func() time.Time
}

// NewReportsHandler builds the handler; redisClient may be nil to disable caching.
func NewReportsHandler(db *gorm.DB, redisClient *redis.Client, log *zap.Logger) *ReportsHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &ReportsHandler{db: db, redis: redisClient, log: log, now: time.Now}
}

func (h *ReportsHandler) WithClock(now func() time.Time) *ReportsHandler {
	h.now = now
	return h
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// periodRange returns [from, to) in UTC. Weeks start on Monday.
func (h *ReportsHandler) periodRange(p Period) (time.Time, time.Time) {
	now := h.now()
	day := startOfDay(now)
	switch p {
	case PeriodWeek:
		offset := (int(day.Weekday()) + 6) % 7
		from := day.AddDate(0, 0, -offset)
		return from.UTC(), from.AddDate(0, 0, 7).UTC()
	case PeriodMonth:
		from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return from.UTC(), from.AddDate(0, 1, 0).UTC()
	default:
		return day.UTC(), day.AddDate(0, 0, 1).UTC()
	}
}

func (h *ReportsHandler) salesBetween(ctx context.Context, from, to time.Time) []models.Sale {
	var sales []models.Sale
	err := h.db.WithContext(ctx).
		Preload("Client").
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC, id ASC").
		Find(&sales).Error
	if err != nil {
		h.log.Warn("load sales for report failed", zap.Error(err))
		return nil
	}
	return sales
}

func (h *ReportsHandler) linesBetween(ctx context.Context, from, to time.Time) []models.SaleLineItem {
	var lines []models.SaleLineItem
	err := h.db.WithContext(ctx).
		Preload("Product.Category").
		Joins("JOIN sales ON sales.id = sale_line_items.sale_id").
		Where("sales.created_at >= ? AND sales.created_at < ?", from, to).
		Find(&lines).Error
	if err != nil {
		h.log.Warn("load sale lines for report failed", zap.Error(err))
		return nil
	}
	return lines
}

func categoryName(p *models.Product) string {
	if p == nil || p.Category == nil {
		return uncategorized
	}
	return p.Category.Name
}

func (h *ReportsHandler) RevenueByPeriod(ctx context.Context, p Period) decimal.Decimal {
	total := decimal.Zero
	from, to := h.periodRange(p)
	for _, s := range h.salesBetween(ctx, from, to) {
		total = total.Add(s.TotalAmount)
	}
	return total
}

func (h *ReportsHandler) SalesCount(ctx context.Context, p Period) int {
	from, to := h.periodRange(p)
	return len(h.salesBetween(ctx, from, to))
}

// TopProducts ranks this month's products by quantity sold.
func (h *ReportsHandler) TopProducts(ctx context.Context, limit int) []ProductSales {
	from, to := h.periodRange(PeriodMonth)

	byID := map[int64]*ProductSales{}
	for _, l := range h.linesBetween(ctx, from, to) {
		ps, ok := byID[l.ProductID]
		if !ok {
			ps = &ProductSales{ProductID: l.ProductID, Category: categoryName(l.Product), Revenue: decimal.Zero}
			if l.Product != nil {
				ps.Name = l.Product.Name
			}
			byID[l.ProductID] = ps
		}
		ps.Quantity += l.Quantity
		ps.Revenue = ps.Revenue.Add(l.LineTotal)
	}

	out := make([]ProductSales, 0, len(byID))
	for _, ps := range byID {
		out = append(out, *ps)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Quantity != out[j].Quantity {
			return out[i].Quantity > out[j].Quantity
		}
		return out[i].ProductID < out[j].ProductID
	})
	return truncate(out, limit)
}

// TopClients ranks this month's clients by revenue.
func (h *ReportsHandler) TopClients(ctx context.Context, limit int) []ClientSales {
	from, to := h.periodRange(PeriodMonth)

	byID := map[int64]*ClientSales{}
	for _, s := range h.salesBetween(ctx, from, to) {
		cs, ok := byID[s.ClientID]
		if !ok {
			cs = &ClientSales{ClientID: s.ClientID, Revenue: decimal.Zero}
			if s.Client != nil {
				cs.Name = s.Client.LastName + " " + s.Client.FirstName
			}
			byID[s.ClientID] = cs
		}
		cs.Purchases++
		cs.Revenue = cs.Revenue.Add(s.TotalAmount)
	}

	out := make([]ClientSales, 0, len(byID))
	for _, cs := range byID {
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].ClientID < out[j].ClientID
	})
	return truncate(out, limit)
}

// CriticalStock lists low products by how far they are below their minimum.
func (h *ReportsHandler) CriticalStock(ctx context.Context, limit int) []CriticalProduct {
	if limit <= 0 {
		limit = defaultCriticalLimit
	}

	var products []models.Product
	err := h.db.WithContext(ctx).
		Preload("Category").
		Where("current_stock <= stock_min").
		Find(&products).Error
	if err != nil {
		h.log.Warn("load critical stock failed", zap.Error(err))
		return []CriticalProduct{}
	}

	out := make([]CriticalProduct, 0, len(products))
	for i := range products {
		p := &products[i]
		out = append(out, CriticalProduct{
			ProductID:    p.ID,
			Name:         p.Name,
			Category:     categoryName(p),
			CurrentStock: p.CurrentStock,
			StockMin:     p.StockMin,
			Deficit:      p.StockMin - p.CurrentStock,
			SalePrice:    p.SalePrice,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Deficit != out[j].Deficit {
			return out[i].Deficit > out[j].Deficit
		}
		return out[i].ProductID < out[j].ProductID
	})
	return truncate(out, limit)
}

func (h *ReportsHandler) RevenueByCategory(ctx context.Context, p Period) []CategoryRevenue {
	from, to := h.periodRange(p)

	byName := map[string]*CategoryRevenue{}
	for _, l := range h.linesBetween(ctx, from, to) {
		name := categoryName(l.Product)
		cr, ok := byName[name]
		if !ok {
			cr = &CategoryRevenue{Category: name, Revenue: decimal.Zero}
			byName[name] = cr
		}
		cr.Items++
		cr.Revenue = cr.Revenue.Add(l.LineTotal)
	}

	out := make([]CategoryRevenue, 0, len(byName))
	for _, cr := range byName {
		out = append(out, *cr)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Revenue.Cmp(out[j].Revenue); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// RevenueEvolution returns one entry per day with sales over the last days,
// oldest first. Days are taken in the clock's location.
func (h *ReportsHandler) RevenueEvolution(ctx context.Context, days int) []DailyRevenue {
	if days <= 0 {
		days = 30
	}
	now := h.now()
	from := startOfDay(now).AddDate(0, 0, -(days - 1))
	to := startOfDay(now).AddDate(0, 0, 1)

	var out []DailyRevenue
	index := map[string]int{}
	for _, s := range h.salesBetween(ctx, from.UTC(), to.UTC()) {
		day := s.CreatedAt.In(now.Location()).Format("2006-01-02")
		i, ok := index[day]
		if !ok {
			i = len(out)
			index[day] = i
			out = append(out, DailyRevenue{Date: day, Revenue: decimal.Zero})
		}
		out[i].Sales++
		out[i].Revenue = out[i].Revenue.Add(s.TotalAmount)
	}
	if out == nil {
		return []DailyRevenue{}
	}
	return out
}

// PaymentStatus breaks down the last 30 days of sales by status.
func (h *ReportsHandler) PaymentStatus(ctx context.Context) []StatusBreakdown {
	now := h.now()
	from := startOfDay(now).AddDate(0, 0, -paymentStatusLookback)
	to := startOfDay(now).AddDate(0, 0, 1)

	byStatus := map[models.SaleStatus]*StatusBreakdown{}
	for _, s := range h.salesBetween(ctx, from.UTC(), to.UTC()) {
		sb, ok := byStatus[s.Status]
		if !ok {
			sb = &StatusBreakdown{Status: s.Status, Amount: decimal.Zero}
			byStatus[s.Status] = sb
		}
		sb.Count++
		sb.Amount = sb.Amount.Add(s.TotalAmount)
	}

	out := make([]StatusBreakdown, 0, len(byStatus))
	for _, sb := range byStatus {
		out = append(out, *sb)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out
}

func (h *ReportsHandler) dashboardKey() string {
	return DASHBOARD_CACHE_KEY + h.now().Format("2006-01-02")
}

// DashboardSummary composes every report. The result is cached in Redis for a
// few minutes when a client is configured.
func (h *ReportsHandler) DashboardSummary(ctx context.Context) DashboardSummary {
	key := h.dashboardKey()
	if h.redis != nil {
		val, err := h.redis.Get(ctx, key).Result()
		if err == nil {
			var cached DashboardSummary
			if err := json.Unmarshal([]byte(val), &cached); err == nil {
				return cached
			}
		} else if !errors.Is(err, redis.Nil) {
			h.log.Warn("dashboard cache read failed", zap.Error(err))
		}
	}

	summary := DashboardSummary{
		RevenueToday:  h.RevenueByPeriod(ctx, PeriodToday),
		RevenueWeek:   h.RevenueByPeriod(ctx, PeriodWeek),
		RevenueMonth:  h.RevenueByPeriod(ctx, PeriodMonth),
		SalesToday:    h.SalesCount(ctx, PeriodToday),
		SalesMonth:    h.SalesCount(ctx, PeriodMonth),
		TopProducts:   h.TopProducts(ctx, 5),
		TopClients:    h.TopClients(ctx, 5),
		CriticalStock: h.CriticalStock(ctx, defaultCriticalLimit),
		ByCategory:    h.RevenueByCategory(ctx, PeriodMonth),
		Evolution:     h.RevenueEvolution(ctx, 30),
		PaymentStatus: h.PaymentStatus(ctx),
	}

	if h.redis != nil {
		if jsonData, err := json.Marshal(summary); err == nil {
			if err := h.redis.Set(ctx, key, jsonData, CACHE_TTL_SHORT).Err(); err != nil {
				h.log.Warn("dashboard cache write failed", zap.Error(err))
			}
		}
	}
	return summary
}

// InvalidateDashboard drops the cached summary so the next read recomputes it.
func (h *ReportsHandler) InvalidateDashboard(ctx context.Context) {
	if h.redis == nil {
		return
	}
	if err := h.redis.Del(ctx, h.dashboardKey()).Err(); err != nil {
		h.log.Warn("dashboard cache invalidation failed", zap.Error(err))
	}
}

// Publish lets the handler sit behind an events.Fanout: any ledger change
// drops the cached dashboard.
func (h *ReportsHandler) Publish(ctx context.Context, event events.Event) error {
	switch event.Type {
	case events.SaleCreated, events.SaleCancelled, events.SaleDeleted,
		events.PaymentRecorded, events.StockAdjusted:
		h.InvalidateDashboard(ctx)
	}
	return nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
