package cart

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// mirrorVersion tags the structured mirror encoding. Mirrors without a
// version field are in the legacy flat form {"<book id>": <quantity>}.
const mirrorVersion = 2

// RawLine is a mirror entry before integer coercion.
type RawLine struct {
	ID       string
	Quantity string
}

// EncodeMirror serializes lines into the structured mirror form:
//
//	{"version":2,"items":[{"book_id":3,"quantity":1}]}
func EncodeMirror(lines Lines) string {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("version", func(e *jx.Encoder) { e.Int(mirrorVersion) })
		e.Field("items", func(e *jx.Encoder) {
			e.Arr(func(e *jx.Encoder) {
				for _, id := range lines.IDs() {
					e.Obj(func(e *jx.Encoder) {
						e.Field("book_id", func(e *jx.Encoder) { e.Int64(id) })
						e.Field("quantity", func(e *jx.Encoder) { e.Int(lines[id]) })
					})
				}
			})
		})
	})
	return e.String()
}

// DecodeMirror parses a durable mirror in either the structured or the
// legacy flat form. Blank text decodes to no lines.
func DecodeMirror(text string) ([]RawLine, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if !jx.Valid([]byte(text)) {
		return nil, errors.New("decode mirror: invalid json")
	}

	d := jx.DecodeStr(text)

	var (
		versioned bool
		items     []RawLine
		flat      []RawLine
	)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "version":
			v, err := d.Int()
			if err != nil {
				return errors.Wrap(err, "version")
			}
			if v != mirrorVersion {
				return errors.Errorf("unsupported mirror version %d", v)
			}
			versioned = true
			return nil
		case "items":
			return d.Arr(func(d *jx.Decoder) error {
				line, err := decodeItem(d)
				if err != nil {
					return err
				}
				items = append(items, line)
				return nil
			})
		default:
			qty, err := decodeScalar(d)
			if err != nil {
				return errors.Wrapf(err, "quantity of %q", key)
			}
			flat = append(flat, RawLine{ID: key, Quantity: qty})
			return nil
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode mirror")
	}

	switch {
	case versioned && len(flat) > 0:
		return nil, errors.New("decode mirror: structured mirror has unexpected keys")
	case versioned:
		return items, nil
	case items != nil:
		return nil, errors.New("decode mirror: items without version")
	default:
		return flat, nil
	}
}

func decodeItem(d *jx.Decoder) (RawLine, error) {
	var line RawLine
	err := d.Obj(func(d *jx.Decoder, key string) error {
		v, err := decodeScalar(d)
		if err != nil {
			return errors.Wrap(err, key)
		}
		switch key {
		case "book_id":
			line.ID = v
		case "quantity":
			line.Quantity = v
		}
		return nil
	})
	if err != nil {
		return RawLine{}, errors.Wrap(err, "item")
	}
	if line.ID == "" || line.Quantity == "" {
		return RawLine{}, errors.New("item: book_id and quantity are required")
	}
	return line, nil
}

// decodeScalar reads a number or a string and returns its text.
func decodeScalar(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	case jx.String:
		return d.Str()
	default:
		return "", errors.Errorf("unexpected %s", d.Next())
	}
}

// encodeLines writes the session form of the cart: a flat object keyed by
// book id.
func encodeLines(lines Lines) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		for _, id := range lines.IDs() {
			e.Field(strconv.FormatInt(id, 10), func(e *jx.Encoder) { e.Int(lines[id]) })
		}
	})
	return e.Bytes()
}

func decodeLines(data []byte) (Lines, error) {
	raw, err := DecodeMirror(string(data))
	if err != nil {
		return nil, err
	}
	lines := make(Lines, len(raw))
	for _, r := range raw {
		id, qty, err := parseRaw(r.ID, r.Quantity)
		if err != nil {
			return nil, err
		}
		lines[id] = qty
	}
	return lines, nil
}
