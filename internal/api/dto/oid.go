package dto

// OIDInfo is one registry entry.
type OIDInfo struct {
	OID  string `json:"oid"`
	Name string `json:"name"`
}

// OIDListResponse lists the registry.
type OIDListResponse struct {
	OIDs []OIDInfo `json:"oids"`
}
