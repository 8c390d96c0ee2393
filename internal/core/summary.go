package core

// Stats is a compact summary of a set of calculated accounts.
type Stats struct {
	Count                 int
	AverageMinimumBalance int64
	AverageMonthlyTotal   int64
	LowestMonthlyTotal    int64
}
