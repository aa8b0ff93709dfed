package entities

// Contributor is the authenticated caller as resolved by the transport layer.
// UserID is the internal account id; ExternalUserID is the corpus-side account
// (the name edits are attributed to).
type Contributor struct {
	UserID          string
	ExternalUserID  string
	AccessToken     string
	DisplayLanguage string
}

func (c Contributor) ResolvedDisplayLanguage(fallback string) string {
	if c.DisplayLanguage != "" {
		return c.DisplayLanguage
	}
	if fallback != "" {
		return fallback
	}
	return DefaultDisplayLanguage
}

const DefaultDisplayLanguage = "en"
