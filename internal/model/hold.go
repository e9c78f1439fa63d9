package model

import "time"

// Hold is a time-bounded reservation of menu items for one user.  All
// of its items belong to CanteenID and its unit prices are frozen at
// the moment the hold was placed.
//
// Fields:
//  ID         – holds.id
//  UserID     – owner; the only principal allowed to confirm or release.
//  CanteenID  – canteen all held items belong to.
//  TotalPrice – sum of unit_price × quantity at hold time, minor units.
//  TimeBand   – requested pickup window, nil for instant.
//  ExpiresAt  – instant after which the sweeper reclaims the stock.
type Hold struct {
	ID         int32     `db:"id"`
	UserID     int32     `db:"user_id"`
	CanteenID  int32     `db:"canteen_id"`
	TotalPrice int32     `db:"total_price"`
	TimeBand   *TimeBand `db:"time_band"`
	ExpiresAt  time.Time `db:"expires_at"`
}

// Expired reports whether the hold is past its expiry at now.
func (h Hold) Expired(now time.Time) bool { return now.After(h.ExpiresAt) }

// HoldItem is one distinct menu item inside a hold.
type HoldItem struct {
	HoldID          int32 `db:"hold_id"`
	ItemID          int32 `db:"item_id"`
	Quantity        int32 `db:"quantity"`
	UnitPriceFrozen int32 `db:"unit_price_frozen"`
}
