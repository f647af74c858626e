package models

type Sale struct {
	ID         int     `json:"id"`
	Date       string  `json:"date"`
	Amount     float64 `json:"amount"`
	Category   string  `json:"category"`
	CustomerID int     `json:"customerID"`
}

// SearchParams mirrors the /sales/search query string. Nil and empty
// fields are left out of the request.
type SearchParams struct {
	Category   string
	CustomerID *int
	Date       string
	StartDate  string
	EndDate    string
	MinAmount  *float64
	MaxAmount  *float64
	Limit      *int
	Offset     *int
}

type SearchResponse struct {
	Results []Sale `json:"results"`
	Total   int    `json:"total"`
	Limit   int    `json:"limit"`
	Offset  int    `json:"offset"`
	HasMore bool   `json:"has_more"`
}

func Int(v int) *int { return &v }

func Float(v float64) *float64 { return &v }
