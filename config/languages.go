package config

type Language struct {
	Code string
	Name string
}

// Languages are the codes offered in selectors. Other codes are accepted
// and passed to the service unchanged.
var Languages = []Language{
	{"ko", "한국어"},
	{"en", "English"},
	{"ja", "日本語"},
	{"zh", "中文"},
	{"es", "Español"},
}

func LanguageName(code string) string {
	for _, l := range Languages {
		if l.Code == code {
			return l.Name
		}
	}
	return code
}

// NextLanguage cycles through Languages. An unknown code starts over at the
// first entry.
func NextLanguage(code string) string {
	for i, l := range Languages {
		if l.Code == code {
			return Languages[(i+1)%len(Languages)].Code
		}
	}
	return Languages[0].Code
}
