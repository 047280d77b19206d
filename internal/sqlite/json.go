package sqlite

// recordJSON represents a record in records.jsonl.
type recordJSON struct {
	RecordID  string  `json:"record_id"`
	OwnerID   string  `json:"owner_id"`
	Label     string  `json:"label"`
	Date      string  `json:"date"`
	Group     *string `json:"group"`
	Details   *string `json:"details"`
	CreatedAt string  `json:"created_at"`
}
