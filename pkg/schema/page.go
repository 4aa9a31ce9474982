package schema

// Page is one page of matching records plus the totals needed to page through the rest.
type Page struct {
	Logs       []LogRecord `json:"logs"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"totalPages"`
}
