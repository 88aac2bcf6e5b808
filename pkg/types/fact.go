package types

// Fact is a key/value pair extracted from free text, used for
// contradiction detection against previously stored facts.
type Fact struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// FactConflict records an incoming fact whose key already exists among the
// user's long-term facts with a differing value. Conflicts are transient:
// they are surfaced for a confirm/reject decision and never persisted.
type FactConflict struct {
	Key  string `json:"key"`
	Prev string `json:"prev"`
	Next string `json:"next"`
}
