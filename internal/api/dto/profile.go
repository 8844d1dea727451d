package dto

// ProfileListResponse represents a list of profiles.
type ProfileListResponse struct {
	// Profiles is the list of profile summaries.
	Profiles []ProfileInfo `json:"profiles"`
}

// ProfileInfo represents issuance profile settings.
type ProfileInfo struct {
	// Name is the profile name.
	Name string `json:"name"`

	// Description is the profile description.
	Description string `json:"description,omitempty"`

	// Validity is the default validity period.
	Validity string `json:"validity"`

	// IsCA indicates if this is a CA profile.
	IsCA bool `json:"is_ca"`

	KeyUsage    []string `json:"key_usage,omitempty"`
	ExtKeyUsage []string `json:"ext_key_usage,omitempty"`

	// SANRequired is set when requests must carry a subjectAltName.
	SANRequired bool `json:"san_required,omitempty"`
}
