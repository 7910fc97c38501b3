package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/bookstore/internal/domain/catalog"
)

// PricedLine is a cart line joined with its catalog entry.
type PricedLine struct {
	Book      catalog.Book
	Quantity  int
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

// Priced is the result of pricing a cart.
type Priced struct {
	// Lines are ordered by book id.
	Lines []PricedLine
	// Total is the sum of all line totals, rounded to cents.
	Total decimal.Decimal
	// Stale lists cart ids that did not resolve in the catalog. They
	// contribute nothing to the total.
	Stale []int64
}

// Price joins lines with books and computes per-line and overall totals.
// Each copy is charged the sale price when the book is on sale and the
// regular price otherwise.
func Price(lines Lines, books []catalog.Book) Priced {
	byID := make(map[int64]catalog.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	res := Priced{Total: decimal.Zero}
	for _, id := range lines.IDs() {
		b, ok := byID[id]
		if !ok {
			res.Stale = append(res.Stale, id)
			continue
		}
		qty := lines[id]
		unit := b.UnitPrice()
		line := unit.Mul(decimal.NewFromInt(int64(qty)))

		res.Lines = append(res.Lines, PricedLine{
			Book:      b,
			Quantity:  qty,
			UnitPrice: unit,
			LineTotal: line,
		})
		res.Total = res.Total.Add(line)
	}
	res.Total = res.Total.Round(2)
	return res
}

// Total returns the amount due for lines priced against books.
func Total(lines Lines, books []catalog.Book) decimal.Decimal {
	return Price(lines, books).Total
}
