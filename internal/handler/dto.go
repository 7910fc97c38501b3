package handler

import (
	"time"

	"github.com/xenking/bookstore/internal/domain/cart"
	"github.com/xenking/bookstore/internal/domain/catalog"
	"github.com/xenking/bookstore/internal/domain/checkout"
	"github.com/xenking/bookstore/internal/domain/order"
)

// Monetary amounts are rendered as fixed two-decimal strings.

type bookResponse struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Image       string `json:"image"`
	OnSale      bool   `json:"is_sale"`
	SalePrice   string `json:"sale_price"`
}

func toBookResponse(b catalog.Book) bookResponse {
	return bookResponse{
		ID:          b.ID,
		Name:        b.Name,
		Price:       b.Price.StringFixed(2),
		Category:    b.Category,
		Description: b.Description,
		Image:       b.Image,
		OnSale:      b.OnSale,
		SalePrice:   b.SalePrice.StringFixed(2),
	}
}

func toBookResponses(books []catalog.Book) []bookResponse {
	out := make([]bookResponse, len(books))
	for i, b := range books {
		out[i] = toBookResponse(b)
	}
	return out
}

type categoryResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Books int    `json:"books"`
}

func toCategoryResponses(categories []catalog.Category) []categoryResponse {
	out := make([]categoryResponse, len(categories))
	for i, c := range categories {
		out[i] = categoryResponse{ID: c.ID, Name: c.Name, Books: c.Books}
	}
	return out
}

type cartLineResponse struct {
	Book      bookResponse `json:"book"`
	Quantity  int          `json:"quantity"`
	UnitPrice string       `json:"unit_price"`
	LineTotal string       `json:"line_total"`
}

type cartResponse struct {
	Lines []cartLineResponse `json:"lines"`
	Total string             `json:"total"`
	Size  int                `json:"size"`
}

func toCartResponse(p cart.Priced, size int) cartResponse {
	lines := make([]cartLineResponse, len(p.Lines))
	for i, l := range p.Lines {
		lines[i] = cartLineResponse{
			Book:      toBookResponse(l.Book),
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.StringFixed(2),
			LineTotal: l.LineTotal.StringFixed(2),
		}
	}
	return cartResponse{Lines: lines, Total: p.Total.StringFixed(2), Size: size}
}

type addItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"product_qty"`
}

type updateItemRequest struct {
	Quantity int `json:"product_qty"`
}

type sizeResponse struct {
	Qty int `json:"qty"`
}

type deleteResponse struct {
	Product int64 `json:"product"`
}

type shippingRequest struct {
	FullName string `json:"shipping_full_name"`
	Email    string `json:"shipping_email"`
	Address1 string `json:"shipping_address1"`
	Address2 string `json:"shipping_address2"`
	City     string `json:"shipping_city"`
	State    string `json:"shipping_state"`
	Zipcode  string `json:"shipping_zipcode"`
	Country  string `json:"shipping_country"`
}

func (s shippingRequest) toDomain() checkout.Shipping {
	return checkout.Shipping(s)
}

type billingRequest struct {
	CardName   string `json:"card_name"`
	CardNumber string `json:"card_number"`
	CardExpiry string `json:"card_exp_date"`
	CardCVV    string `json:"card_cvv_number"`
	Address1   string `json:"card_address1"`
	Address2   string `json:"card_address2"`
	City       string `json:"card_city"`
	State      string `json:"card_state"`
	Zipcode    string `json:"card_zipcode"`
	Country    string `json:"card_country"`
}

func (b billingRequest) toDomain() checkout.Billing {
	return checkout.Billing(b)
}

type orderItemResponse struct {
	ID       int64  `json:"id"`
	BookID   int64  `json:"book_id"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	UserID          *int64              `json:"user_id"`
	FullName        string              `json:"full_name"`
	Email           string              `json:"email"`
	ShippingAddress string              `json:"shipping_address"`
	AmountPaid      string              `json:"amount_paid"`
	DateOrdered     time.Time           `json:"date_ordered"`
	Shipped         bool                `json:"shipped"`
	Items           []orderItemResponse `json:"items"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ID:       it.ID,
			BookID:   it.BookID,
			Quantity: it.Quantity,
			Price:    it.Price.StringFixed(2),
		}
	}
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		FullName:        o.FullName,
		Email:           o.Email,
		ShippingAddress: o.ShippingAddress,
		AmountPaid:      o.AmountPaid.StringFixed(2),
		DateOrdered:     o.DateOrdered,
		Shipped:         o.Shipped,
		Items:           items,
	}
}
