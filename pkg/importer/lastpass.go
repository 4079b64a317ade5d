package importer

import "strings"

// LastPass CSV export:
// url,username,password,totp,extra,name,grouping,fav
var lastPassSchema = Schema{
	MinColumns:   5,
	Title:        []int{5, 0},
	DefaultTitle: "LastPass Password",
	URL:          0,
	Username:     1,
	Secret:       2,
	Notes:        4,
	Decode:       DecodeHTMLEntities,
}

// DecodeHTMLEntities decodes common HTML entities found in LastPass exports.
func DecodeHTMLEntities(s string) string {
	s = strings.ReplaceAll(s, "&lt;", "<")
	s = strings.ReplaceAll(s, "&gt;", ">")
	s = strings.ReplaceAll(s, "&quot;", "\"")
	s = strings.ReplaceAll(s, "&#39;", "'")
	s = strings.ReplaceAll(s, "&apos;", "'")
	s = strings.ReplaceAll(s, "&amp;", "&")
	return s
}
