package model

import "time"

// User is a student account keyed by the external identity provider's
// subject.  The internal ID stays stable across token renewals because
// the row is upserted on external_id.
//
// Fields:
//  ID          – users.id, assigned on first sign-in.
//  ExternalID  – subject claim of the identity token (unique).
//  Email       – optional email claim.
//  DisplayName – optional name claim.
//  CreatedAt   – first sign-in time.
type User struct {
	ID          int32     `db:"id"`
	ExternalID  string    `db:"external_id"`
	Email       *string   `db:"email"`
	DisplayName *string   `db:"display_name"`
	CreatedAt   time.Time `db:"created_at"`
}
