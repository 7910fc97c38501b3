package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/bookstore/internal/domain/checkout"
)

const (
	readMirrorSQL = `SELECT old_cart FROM profiles WHERE user_id = $1`

	// Profiles are created lazily on the first mirror write.
	writeMirrorSQL = `INSERT INTO profiles (user_id, old_cart, date_modified)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id) DO UPDATE
		SET old_cart = EXCLUDED.old_cart, date_modified = EXCLUDED.date_modified`

	// A profile row with every shipping column blank holds no details.
	readShippingSQL = `SELECT full_name, email, address1, address2, city, state, zipcode, country
		FROM profiles WHERE user_id = $1`

	writeShippingSQL = `INSERT INTO profiles
			(user_id, full_name, email, address1, address2, city, state, zipcode, country, date_modified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (user_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			address1 = EXCLUDED.address1,
			address2 = EXCLUDED.address2,
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			zipcode = EXCLUDED.zipcode,
			country = EXCLUDED.country,
			date_modified = EXCLUDED.date_modified`
)

var _ checkout.ProfileStore = (*ProfileRepository)(nil)

// ProfileRepository stores the durable cart mirror and the last shipping
// details on the user profile.
type ProfileRepository struct {
	pool *pgxpool.Pool
}

// NewProfileRepository returns a ProfileRepository that uses the given pool.
func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

// ReadMirror returns the saved cart text of the user, or "" when the user
// has no profile yet.
func (r *ProfileRepository) ReadMirror(ctx context.Context, userID int64) (string, error) {
	var text string
	err := conn(ctx, r.pool).QueryRow(ctx, readMirrorSQL, userID).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("reading cart mirror of user %d: %w", userID, err)
	}
	return text, nil
}

// WriteMirror replaces the saved cart text of the user.
func (r *ProfileRepository) WriteMirror(ctx context.Context, userID int64, text string) error {
	if _, err := conn(ctx, r.pool).Exec(ctx, writeMirrorSQL, userID, text); err != nil {
		return fmt.Errorf("writing cart mirror of user %d: %w", userID, err)
	}
	return nil
}

// ReadShipping returns the shipping details the user saved last. It reports
// false when the user has no profile or never saved any.
func (r *ProfileRepository) ReadShipping(ctx context.Context, userID int64) (checkout.Shipping, bool, error) {
	var s checkout.Shipping
	err := conn(ctx, r.pool).QueryRow(ctx, readShippingSQL, userID).Scan(
		&s.FullName, &s.Email, &s.Address1, &s.Address2,
		&s.City, &s.State, &s.Zipcode, &s.Country,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return checkout.Shipping{}, false, nil
		}
		return checkout.Shipping{}, false, fmt.Errorf("reading shipping of user %d: %w", userID, err)
	}
	if s == (checkout.Shipping{}) {
		return s, false, nil
	}
	return s, true, nil
}

// WriteShipping replaces the saved shipping details of the user.
func (r *ProfileRepository) WriteShipping(ctx context.Context, userID int64, s checkout.Shipping) error {
	_, err := conn(ctx, r.pool).Exec(ctx, writeShippingSQL, userID,
		s.FullName, s.Email, s.Address1, s.Address2, s.City, s.State, s.Zipcode, s.Country,
	)
	if err != nil {
		return fmt.Errorf("writing shipping of user %d: %w", userID, err)
	}
	return nil
}
