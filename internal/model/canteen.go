package model

// Canteen is a food outlet on campus.  Each canteen has exactly one
// operator account whose credentials are stored on the same row.
type Canteen struct {
	ID               int32  `db:"id"`
	Name             string `db:"name"`
	Location         string `db:"location"`
	OperatorUsername string `db:"operator_username"`
	OperatorPassword string `db:"operator_password"` // bcrypt hash
}

// MenuItem is a sellable item of a canteen.  Stock is either
// UnlimitedStock or a non-negative count; IsAvailable is false whenever
// a finite stock reaches zero and may also be cleared by the operator.
type MenuItem struct {
	ID          int32  `db:"id"`
	CanteenID   int32  `db:"canteen_id"`
	Name        string `db:"name"`
	IsVeg       bool   `db:"is_veg"`
	UnitPrice   int32  `db:"unit_price"`
	Stock       int32  `db:"stock"`
	IsAvailable bool   `db:"is_available"`
}

// UnlimitedStock marks an item that is never decremented.
const UnlimitedStock int32 = -1

// Unlimited reports whether the item carries the unlimited sentinel.
func (m MenuItem) Unlimited() bool { return m.Stock == UnlimitedStock }
