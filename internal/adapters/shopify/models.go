package shopify

import "time"

// Customer is a partial commerce-platform customer document with fields we use
type Customer struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Phone       string    `json:"phone"`
	OrdersCount int       `json:"orders_count"`
	TotalSpent  string    `json:"total_spent"`
	Tags        string    `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Product is a partial product document; Tags is the comma separated free text
// the categorizer consumes
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	ProductType string    `json:"product_type"`
	Vendor      string    `json:"vendor"`
	Tags        string    `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// LineItem is one order line; CategoryTags is filled in by the aggregator
// when re-materializing orders for storage, never by the upstream
type LineItem struct {
	ID           int64    `json:"id"`
	ProductID    int64    `json:"product_id"`
	VariantID    int64    `json:"variant_id,omitempty"`
	Title        string   `json:"title"`
	Quantity     int      `json:"quantity"`
	Price        string   `json:"price"`
	CategoryTags []string `json:"category_tags,omitempty"`
}

// Order is a partial order document
// TotalPrice stays a decimal string end to end to avoid float rounding
type Order struct {
	ID              int64      `json:"id"`
	Name            string     `json:"name"`
	CustomerID      int64      `json:"customer_id,omitempty"`
	Customer        *Customer  `json:"customer,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	FinancialStatus string     `json:"financial_status"`
	TotalPrice      string     `json:"total_price"`
	Currency        string     `json:"currency"`
	LineItems       []LineItem `json:"line_items"`
}

// CustomerRef resolves the customer identifier from either the embedded
// snapshot or the flat id; zero means unresolvable
func (o Order) CustomerRef() int64 {
	if o.Customer != nil && o.Customer.ID != 0 {
		return o.Customer.ID
	}
	return o.CustomerID
}

// envelope shapes for the upstream collection endpoints

type customersEnvelope struct {
	Customers []Customer `json:"customers"`
}

type ordersEnvelope struct {
	Orders []Order `json:"orders"`
}

type productsEnvelope struct {
	Products []Product `json:"products"`
}

type countEnvelope struct {
	Count int `json:"count"`
}
