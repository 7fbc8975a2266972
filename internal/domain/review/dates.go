package review

import "time"

const (
	compactLayout = "20060102"   // upstream aggregator queries
	storeLayout   = "2006-01-02" // persisted record key
)

// CompactToStore converts a YYYYMMDD trade date into the YYYY-MM-DD form
// the store keys on. Invalid input comes back unchanged.
func CompactToStore(date string) string {
	t, err := time.Parse(compactLayout, date)
	if err != nil {
		return date
	}
	return t.Format(storeLayout)
}

// StoreToCompact is the reverse conversion for upstream queries.
func StoreToCompact(date string) string {
	t, err := time.Parse(storeLayout, date)
	if err != nil {
		return date
	}
	return t.Format(compactLayout)
}

// PrevStoreDate returns the previous calendar day of a YYYYMMDD trade date
// in store form, used for the prior-day limit-up lookup.
func PrevStoreDate(date string) (string, bool) {
	t, err := time.Parse(compactLayout, date)
	if err != nil {
		return "", false
	}
	return t.AddDate(0, 0, -1).Format(storeLayout), true
}

// ValidCompactDate reports whether date parses as YYYYMMDD.
func ValidCompactDate(date string) bool {
	_, err := time.Parse(compactLayout, date)
	return err == nil
}
