package importer

import "strings"

// none marks a column the layout does not provide.
const none = -1

// Schema is a positional column layout for one export format.
type Schema struct {
	// MinColumns is the number of cells a row needs to be considered.
	MinColumns int
	// Title lists candidate title columns; the first non-empty one wins.
	Title []int
	// DefaultTitle is used when every Title column is empty.
	DefaultTitle string

	URL      int
	Username int
	Secret   int
	Notes    int

	// Decode is applied to every cell read, if set.
	Decode func(string) string
}

var schemas = map[Format]Schema{
	// name,url,username,password,note
	FormatGoogle: googleSchema,
	FormatChrome: googleSchema,

	// url,username,password,httpRealm,formActionOrigin,guid,...
	FormatFirefox: {
		MinColumns:   3,
		Title:        []int{0},
		DefaultTitle: "Firefox Password",
		URL:          0,
		Username:     1,
		Secret:       2,
		Notes:        none,
	},

	FormatLastPass: lastPassSchema,

	// folder,favorite,type,name,notes,fields,reprompt,login_uri,login_username,login_password,login_totp
	FormatBitwarden: {
		MinColumns:   10,
		Title:        []int{3},
		DefaultTitle: "Bitwarden Password",
		URL:          7,
		Username:     8,
		Secret:       9,
		Notes:        4,
	},

	// Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes
	Format1Password: {
		MinColumns:   4,
		Title:        []int{0, 1},
		DefaultTitle: "1Password Password",
		URL:          1,
		Username:     2,
		Secret:       3,
		Notes:        8,
	},
}

var googleSchema = Schema{
	MinColumns:   4,
	Title:        []int{0, 1},
	DefaultTitle: "Imported Password",
	URL:          1,
	Username:     2,
	Secret:       3,
	Notes:        4,
}

// candidate maps a trimmed row onto the schema. A non-empty reason means
// the row was skipped.
func (s Schema) candidate(row []string) (Candidate, string) {
	if len(row) < s.MinColumns {
		return Candidate{}, "too few columns"
	}
	cell := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		if s.Decode != nil {
			return s.Decode(row[i])
		}
		return row[i]
	}

	secret := cell(s.Secret)
	if secret == "" {
		return Candidate{}, "no password"
	}

	title := ""
	for _, i := range s.Title {
		if title = cell(i); title != "" {
			break
		}
	}
	if title == "" {
		title = s.DefaultTitle
	}

	return Candidate{
		Title:    title,
		Username: cell(s.Username),
		Secret:   secret,
		URL:      cell(s.URL),
		Notes:    cell(s.Notes),
	}, ""
}

// headerSchema locates columns by substring match on lowercased header
// names; the first matching column wins for each field.
func headerSchema(header []string) Schema {
	find := func(needles ...string) int {
		for i, h := range header {
			for _, n := range needles {
				if strings.Contains(h, n) {
					return i
				}
			}
		}
		return none
	}

	s := Schema{
		URL:          find("url", "website", "site"),
		Username:     find("username", "email", "login"),
		Secret:       find("password"),
		Notes:        find("note", "comment"),
		DefaultTitle: "Imported Password",
	}
	s.Title = []int{find("name", "title", "site"), s.URL}
	if s.Secret != none {
		s.MinColumns = s.Secret + 1
	}
	return s
}
