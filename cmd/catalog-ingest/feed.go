package main

import (
	"bufio"
	"context"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"

	"github.com/xenking/bookstore/internal/domain/catalog"
)

const maxLineSize = 1 << 20

// parseBook decodes one feed line:
//
//	{"id":12,"name":"Dune","price":"19.99","category":"science fiction",
//	 "description":"...","image":"covers/dune.jpg","is_sale":false,"sale_price":"0"}
//
// Prices may be JSON strings or numbers. Unknown keys are ignored.
func parseBook(line []byte) (catalog.Book, error) {
	var b catalog.Book
	d := jx.DecodeBytes(line)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			b.ID, err = d.Int64()
		case "name":
			b.Name, err = d.Str()
		case "price":
			b.Price, err = decodeMoney(d)
		case "category":
			b.Category, err = d.Str()
		case "description":
			b.Description, err = d.Str()
		case "image":
			b.Image, err = d.Str()
		case "is_sale":
			b.OnSale, err = d.Bool()
		case "sale_price":
			b.SalePrice, err = decodeMoney(d)
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, key)
		}
		return nil
	})
	if err != nil {
		return catalog.Book{}, err
	}

	switch {
	case b.ID <= 0:
		return catalog.Book{}, errors.Errorf("id must be positive, got %d", b.ID)
	case b.Name == "":
		return catalog.Book{}, errors.New("name is required")
	case b.Category == "":
		return catalog.Book{}, errors.New("category is required")
	case b.Price.IsNegative(), b.SalePrice.IsNegative():
		return catalog.Book{}, errors.New("prices must not be negative")
	case b.OnSale && !b.SalePrice.IsPositive():
		return catalog.Book{}, errors.New("sale_price is required when is_sale is set")
	}
	return b, nil
}

func decodeMoney(d *jx.Decoder) (decimal.Decimal, error) {
	var text string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Decimal{}, err
		}
		text = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Decimal{}, err
		}
		text = n.String()
	default:
		return decimal.Decimal{}, errors.Errorf("unexpected %s", d.Next())
	}
	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return v.Round(2), nil
}

// streamFeed opens a gzip-compressed JSON-lines feed and calls fn for every
// non-blank line with its 1-based line number. A parse failure is passed to
// fn instead of aborting the stream; an error returned by fn stops it.
func streamFeed(ctx context.Context, path string, fn func(lineNo int, b catalog.Book, parseErr error) error) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		b, parseErr := parseBook(line)
		if err := fn(lineNo, b, parseErr); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrapf(err, "scan %s", path)
	}
	return nil
}
