package app

// ProductsSinceRequest is the input for a catalog delta pull.
type ProductsSinceRequest struct {
	StoreID string
	// Since is an ISO-8601 timestamp; zone-less values are read as UTC. Empty
	// means the full catalog.
	Since string
}
