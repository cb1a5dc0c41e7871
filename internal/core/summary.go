package core

// CategoryTotal is the spend of every unlocked hisaab sharing a label.
type CategoryTotal struct {
	Label string `json:"_id"`
	Total Money  `json:"totalAmount"`
}

// RecordTotal is the spend of a single unlocked hisaab.
type RecordTotal struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Total Money  `json:"totalValue"`
}

// Dashboard is the per-user rollup served to the dashboard page.
type Dashboard struct {
	OwnerID            string          `json:"-"`
	ExpensesByCategory []CategoryTotal `json:"expensesByCategory"`
	HisaabTotals       []RecordTotal   `json:"hisaabTotals"`
	GrandTotal         Money           `json:"grandTotal"`
	HisaabCount        int             `json:"hisaabCount"`
}
