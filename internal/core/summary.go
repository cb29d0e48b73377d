package core

// MonthSummary is the dashboard overview for one calendar month: the sum of
// all amounts and the largest single amount. Both are zero when the month
// has no expenses.
type MonthSummary struct {
	Total Money
	Max   Money
}

// CategoryTotal is an amount aggregated by category label.
type CategoryTotal struct {
	Category string
	Total    Money
}

// MonthTotal is an amount aggregated by YYYY-MM label.
type MonthTotal struct {
	Month string
	Total Money
}
