package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/laundry-billing/internal/domain/order"
	"github.com/xenking/laundry-billing/internal/domain/pricing"
	"github.com/xenking/laundry-billing/internal/domain/tariff"
)

type bulkJSON struct {
	Weight  decimal.Decimal `json:"weight"`
	Service string          `json:"service"`
}

type customItemJSON struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Unit     string          `json:"unit"`
	Rate     decimal.Decimal `json:"rate"`
}

type itemJSON struct {
	ItemID   string          `json:"item_id,omitempty"`
	Custom   *customItemJSON `json:"custom,omitempty"`
	Quantity int             `json:"quantity"`
	Weight   decimal.Decimal `json:"weight"`
	Service  string          `json:"service,omitempty"`
}

type quoteRequest struct {
	Bulk  bulkJSON   `json:"bulk"`
	Items []itemJSON `json:"items"`
}

func (q quoteRequest) toDomain() order.QuoteRequest {
	items := make([]order.ItemInput, len(q.Items))
	for i, it := range q.Items {
		in := order.ItemInput{
			ItemID:   it.ItemID,
			Quantity: it.Quantity,
			Weight:   it.Weight,
			Service:  it.Service,
		}
		if it.Custom != nil {
			in.Manual = &order.ManualInput{
				Name:     it.Custom.Name,
				Category: it.Custom.Category,
				Unit:     it.Custom.Unit,
				Rate:     it.Custom.Rate,
			}
		}
		items[i] = in
	}
	return order.QuoteRequest{
		BulkWeight:  q.Bulk.Weight,
		BulkService: q.Bulk.Service,
		Items:       items,
	}
}

type customerJSON struct {
	ID      string `json:"id,omitempty"`
	Phone   string `json:"phone"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

type paymentJSON struct {
	Status     string          `json:"status"`
	Method     string          `json:"method,omitempty"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
}

type submitRequest struct {
	quoteRequest

	Customer     customerJSON    `json:"customer"`
	DeliveryMode string          `json:"delivery_mode"`
	DueDate      string          `json:"due_date"`
	DueTime      string          `json:"due_time"`
	Discount     decimal.Decimal `json:"discount"`
	Payment      paymentJSON     `json:"payment"`
	PieceCount   *int            `json:"piece_count,omitempty"`
	Notes        string          `json:"notes,omitempty"`
}

func (s submitRequest) toDomain() order.SubmitRequest {
	return order.SubmitRequest{
		QuoteRequest:  s.quoteRequest.toDomain(),
		Phone:         s.Customer.Phone,
		Name:          s.Customer.Name,
		Address:       s.Customer.Address,
		DeliveryMode:  s.DeliveryMode,
		DueDate:       s.DueDate,
		DueTime:       s.DueTime,
		Discount:      s.Discount,
		PaymentStatus: s.Payment.Status,
		PaymentMethod: s.Payment.Method,
		AmountPaid:    s.Payment.AmountPaid,
		PieceCount:    s.PieceCount,
		Notes:         s.Notes,
	}
}

type handoverRequest struct {
	PaymentMethod string `json:"payment_method,omitempty"`
}

type lineJSON struct {
	ItemID       *string `json:"item_id"`
	Name         string  `json:"item_name"`
	Service      string  `json:"service_type"`
	Quantity     int     `json:"quantity"`
	Weight       float64 `json:"weight"`
	UnitPrice    float64 `json:"unit_price"`
	TotalPrice   float64 `json:"total_price"`
	IsBaseCharge bool    `json:"is_base_charge"`
}

func toLines(lines []pricing.LineItem) []lineJSON {
	out := make([]lineJSON, len(lines))
	for i, l := range lines {
		out[i] = lineJSON{
			ItemID:       l.ItemID,
			Name:         l.Name,
			Service:      string(l.Service),
			Quantity:     l.Quantity,
			Weight:       l.Weight.InexactFloat64(),
			UnitPrice:    l.UnitPrice.InexactFloat64(),
			TotalPrice:   l.TotalPrice.InexactFloat64(),
			IsBaseCharge: l.IsBaseCharge,
		}
	}
	return out
}

type quoteResponse struct {
	Lines      []lineJSON `json:"lines"`
	Subtotal   float64    `json:"subtotal"`
	PieceCount int        `json:"suggested_piece_count"`
}

type submitResponse struct {
	ID                  string    `json:"id"`
	ReadableBillID      string    `json:"readable_bill_id"`
	Subtotal            float64   `json:"subtotal"`
	Discount            float64   `json:"discount"`
	FinalAmount         float64   `json:"final_amount"`
	AmountPaid          float64   `json:"amount_paid"`
	PaymentStatus       string    `json:"payment_status"`
	PieceCount          int       `json:"piece_count"`
	SuggestedPieceCount int       `json:"suggested_piece_count"`
	DueAt               time.Time `json:"due_at"`
	CreatedAt           time.Time `json:"created_at"`
}

type orderResponse struct {
	ID             string       `json:"id"`
	ReadableBillID string       `json:"readable_bill_id"`
	Customer       customerJSON `json:"customer"`
	DeliveryMode   string       `json:"delivery_mode"`
	DueAt          time.Time    `json:"due_at"`
	Subtotal       float64      `json:"subtotal"`
	Discount       float64      `json:"discount"`
	FinalAmount    float64      `json:"final_amount"`
	AmountPaid     float64      `json:"amount_paid"`
	PaymentStatus  string       `json:"payment_status"`
	PaymentMethod  *string      `json:"payment_method"`
	Status         string       `json:"status"`
	PieceCount     int          `json:"piece_count"`
	BulkWeight     float64      `json:"bulk_weight"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	CompletedAt    *time.Time   `json:"completed_at"`
	Lines          []lineJSON   `json:"lines"`
}

func toOrderResponse(o *order.Order) orderResponse {
	var method *string
	if o.PaymentMethod != nil {
		m := string(*o.PaymentMethod)
		method = &m
	}
	return orderResponse{
		ID:             o.ID,
		ReadableBillID: o.ReadableBillID,
		Customer:       toCustomer(o.Customer),
		DeliveryMode:   string(o.DeliveryMode),
		DueAt:          o.DueAt,
		Subtotal:       o.Subtotal.InexactFloat64(),
		Discount:       o.Discount.InexactFloat64(),
		FinalAmount:    o.Final.InexactFloat64(),
		AmountPaid:     o.AmountPaid.InexactFloat64(),
		PaymentStatus:  string(o.PaymentStatus),
		PaymentMethod:  method,
		Status:         string(o.Status),
		PieceCount:     o.PieceCount,
		BulkWeight:     o.BulkWeight.InexactFloat64(),
		Notes:          o.Notes,
		CreatedAt:      o.CreatedAt,
		CompletedAt:    o.CompletedAt,
		Lines:          toLines(o.Lines),
	}
}

func toCustomer(c order.Customer) customerJSON {
	return customerJSON{ID: c.ID, Phone: c.Phone, Name: c.Name, Address: c.Address}
}

type summaryJSON struct {
	ID             string    `json:"id"`
	ReadableBillID string    `json:"readable_bill_id"`
	CustomerName   string    `json:"customer_name"`
	CustomerPhone  string    `json:"customer_phone"`
	FinalAmount    float64   `json:"final_amount"`
	PaymentStatus  string    `json:"payment_status"`
	Status         string    `json:"status"`
	DueAt          time.Time `json:"due_at"`
	CreatedAt      time.Time `json:"created_at"`
}

type recentResponse struct {
	Orders []summaryJSON `json:"orders"`
}

type statsResponse struct {
	Day         string  `json:"day"`
	Created     int     `json:"created"`
	TotalWeight float64 `json:"total_weight_kg"`
	Cleared     int     `json:"cleared"`
	DueToday    int     `json:"due_today"`
}

type settingsJSON struct {
	WashFoldPerKg  float64 `json:"wash_fold_per_kg"`
	WashIronPerKg  float64 `json:"wash_iron_per_kg"`
	IronPerPiece   float64 `json:"iron_per_piece"`
	SmallPerPiece  float64 `json:"small_per_piece"`
	HeavyFlat      float64 `json:"heavy_flat"`
	HeavyPerKg     float64 `json:"heavy_per_kg"`
	HeavyThreshold float64 `json:"heavy_threshold_kg"`
}

type rateJSON struct {
	ItemID  string  `json:"item_id"`
	Service string  `json:"service"`
	Rate    float64 `json:"rate"`
}

type metaResponse struct {
	BranchID     string               `json:"branch_id"`
	Settings     settingsJSON         `json:"settings"`
	SpecialRates []rateJSON           `json:"special_rates"`
	Items        []tariff.CatalogItem `json:"items"`
}

func toMeta(s tariff.Snapshot) metaResponse {
	rates := s.Rates.List()
	out := make([]rateJSON, len(rates))
	for i, r := range rates {
		out[i] = rateJSON{ItemID: r.ItemID, Service: string(r.Service), Rate: r.Rate.InexactFloat64()}
	}
	items := s.Items
	if items == nil {
		items = []tariff.CatalogItem{}
	}
	return metaResponse{
		BranchID: s.BranchID,
		Settings: settingsJSON{
			WashFoldPerKg:  s.Settings.WashFoldPerKg.InexactFloat64(),
			WashIronPerKg:  s.Settings.WashIronPerKg.InexactFloat64(),
			IronPerPiece:   s.Settings.IronPerPiece.InexactFloat64(),
			SmallPerPiece:  s.Settings.SmallPerPiece.InexactFloat64(),
			HeavyFlat:      s.Settings.HeavyFlat.InexactFloat64(),
			HeavyPerKg:     s.Settings.HeavyPerKg.InexactFloat64(),
			HeavyThreshold: s.Settings.HeavyThreshold.InexactFloat64(),
		},
		SpecialRates: out,
		Items:        items,
	}
}
