package entities

// Language is the internal language record; QID is its id in the external corpus.
type Language struct {
	LanguageID string
	QID        string
	Code       string
	Name       string
	Activities []LanguageActivity
}

// LanguageActivity enables one activity for a language. VariantCode is only
// meaningful for script contributions.
type LanguageActivity struct {
	LanguageID  string
	Activity    ActivityKind
	VariantCode string
}

func (l Language) Activity(kind ActivityKind) (LanguageActivity, bool) {
	for _, activity := range l.Activities {
		if activity.Activity == kind {
			return activity, true
		}
	}
	return LanguageActivity{}, false
}

// Preference is the user's sticky contribution selection.
type Preference struct {
	UserID          string
	LanguageID      string
	LanguageCode    string
	ActiveActivity  ActivityKind
	DisplayLanguage string
}
