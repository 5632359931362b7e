package db

// SQL query fragments used across multiple functions
const (
	// sqlSinceClause filters joined snapshot rows by a datetime window
	sqlSinceClause = "AND s.timestamp >= datetime('now', ?)"

	// dbTimeLayout is the timestamp format stored in DATETIME columns,
	// always in UTC so it compares correctly against datetime('now').
	dbTimeLayout = "2006-01-02 15:04:05"
)
