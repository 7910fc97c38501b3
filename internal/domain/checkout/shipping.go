package checkout

import (
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// Shipping is the delivery information collected before commit.
type Shipping struct {
	FullName string
	Email    string
	Address1 string
	Address2 string
	City     string
	State    string
	Zipcode  string
	Country  string
}

// InvalidShippingError indicates a required shipping field is blank.
type InvalidShippingError struct {
	Field string
}

func (e *InvalidShippingError) Error() string {
	return fmt.Sprintf("shipping %s is required", e.Field)
}

// Validate checks that every required field is present. Address line 2,
// state and postal code are optional.
func (s Shipping) Validate() error {
	for _, f := range []struct {
		name  string
		value string
	}{
		{"full name", s.FullName},
		{"email", s.Email},
		{"address line 1", s.Address1},
		{"city", s.City},
		{"country", s.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			return &InvalidShippingError{Field: f.name}
		}
	}
	return nil
}

// AddressText flattens the postal address into one line per field: address
// lines 1 and 2, city, state, postal code, country. Blank fields stay as
// empty lines.
func (s Shipping) AddressText() string {
	return strings.Join([]string{
		s.Address1,
		s.Address2,
		s.City,
		s.State,
		s.Zipcode,
		s.Country,
	}, "\n")
}

func (s Shipping) encode() []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		for _, f := range s.fields() {
			e.Field(f.key, func(e *jx.Encoder) { e.Str(*f.value) })
		}
	})
	return e.Bytes()
}

func decodeShipping(data []byte) (Shipping, error) {
	var s Shipping
	fields := make(map[string]*string)
	for _, f := range s.fields() {
		fields[f.key] = f.value
	}

	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		dst, ok := fields[key]
		if !ok {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrap(err, key)
		}
		*dst = v
		return nil
	})
	if err != nil {
		return Shipping{}, errors.Wrap(err, "decode shipping")
	}
	return s, nil
}

type shippingField struct {
	key   string
	value *string
}

func (s *Shipping) fields() []shippingField {
	return []shippingField{
		{"shipping_full_name", &s.FullName},
		{"shipping_email", &s.Email},
		{"shipping_address1", &s.Address1},
		{"shipping_address2", &s.Address2},
		{"shipping_city", &s.City},
		{"shipping_state", &s.State},
		{"shipping_zipcode", &s.Zipcode},
		{"shipping_country", &s.Country},
	}
}

// Billing is the payment form submitted with the commit request. It is
// accepted as-is: nothing is charged and nothing is stored.
type Billing struct {
	CardName   string
	CardNumber string
	CardExpiry string
	CardCVV    string
	Address1   string
	Address2   string
	City       string
	State      string
	Zipcode    string
	Country    string
}
