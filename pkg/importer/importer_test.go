package importer

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/forest6511/quantavault/pkg/vault"
)

func TestParse_Generic(t *testing.T) {
	csv := "name,url,username,password\nGmail,https://gmail.com,me@x.com,Secret123\n"

	got := Parse(csv, FormatGeneric)
	want := []Candidate{{Title: "Gmail", URL: "https://gmail.com", Username: "me@x.com", Secret: "Secret123"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Parse() = %+v, want %+v", got, want)
	}
}

func TestParse_GenericHeuristics(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want []Candidate
	}{
		{
			name: "safari layout",
			csv:  "Title,URL,Username,Password,Notes,OTPAuth\nBank,https://bank.example,alice,s3cret!,pin 1234,\n",
			want: []Candidate{{Title: "Bank", URL: "https://bank.example", Username: "alice", Secret: "s3cret!", Notes: "pin 1234"}},
		},
		{
			name: "title falls back to url",
			csv:  "website,email,password\nhttps://a.example,a@x.com,pw1\n",
			want: []Candidate{{Title: "https://a.example", URL: "https://a.example", Username: "a@x.com", Secret: "pw1"}},
		},
		{
			name: "default title",
			csv:  "login,password,comment\nbob,pw2,hello\n",
			want: []Candidate{{Title: "Imported Password", Username: "bob", Secret: "pw2", Notes: "hello"}},
		},
		{
			name: "no password column",
			csv:  "name,url\nx,https://x.example\n",
			want: []Candidate{},
		},
		{
			name: "short row",
			csv:  "name,url,username,password\nonly,two\n",
			want: []Candidate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.csv, FormatSafari)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_VendorLayouts(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		csv    string
		want   []Candidate
	}{
		{
			name:   "google",
			format: FormatGoogle,
			csv:    "name,url,username,password,note\nGitHub,https://github.com,octo,gh-pass,work account\n,https://nameless.example,n,pw,\n,,u,pw2\n",
			want: []Candidate{
				{Title: "GitHub", URL: "https://github.com", Username: "octo", Secret: "gh-pass", Notes: "work account"},
				{Title: "https://nameless.example", URL: "https://nameless.example", Username: "n", Secret: "pw"},
				{Title: "Imported Password", Username: "u", Secret: "pw2"},
			},
		},
		{
			name:   "chrome",
			format: FormatChrome,
			csv:    "name,url,username,password\nSite,https://s.example,me,pw\n",
			want:   []Candidate{{Title: "Site", URL: "https://s.example", Username: "me", Secret: "pw"}},
		},
		{
			name:   "firefox",
			format: FormatFirefox,
			csv:    "url,username,password,httpRealm,formActionOrigin,guid\nhttps://mozilla.org,fox,ff-pass,,https://mozilla.org,{abc}\n,anon,pw,,,\n",
			want: []Candidate{
				{Title: "https://mozilla.org", URL: "https://mozilla.org", Username: "fox", Secret: "ff-pass"},
				{Title: "Firefox Password", Username: "anon", Secret: "pw"},
			},
		},
		{
			name:   "lastpass",
			format: FormatLastPass,
			csv:    "url,username,password,totp,extra,name,grouping,fav\nhttps://lp.example,lp,a&amp;b,,note &lt;1&gt;,My &quot;Site&quot;,Work,0\nhttps://nameless.example,x,pw,,,,,0\n",
			want: []Candidate{
				{Title: `My "Site"`, URL: "https://lp.example", Username: "lp", Secret: "a&b", Notes: "note <1>"},
				{Title: "https://nameless.example", URL: "https://nameless.example", Username: "x", Secret: "pw"},
			},
		},
		{
			name:   "bitwarden",
			format: FormatBitwarden,
			csv: "folder,favorite,type,name,notes,fields,reprompt,login_uri,login_username,login_password,login_totp\n" +
				"Work,1,login,Jira,team board,,0,https://jira.example,dev,bw-pass,\n" +
				",,login,,,,0,https://x.example,u,pw,\n" +
				",,note,Secure note,text,,0,,,,\n",
			want: []Candidate{
				{Title: "Jira", URL: "https://jira.example", Username: "dev", Secret: "bw-pass", Notes: "team board"},
				{Title: "Bitwarden Password", URL: "https://x.example", Username: "u", Secret: "pw"},
			},
		},
		{
			name:   "1password",
			format: Format1Password,
			csv:    "Title,Website,Username,Password,OTPAuth,Favorite,Archived,Tags,Notes\nAWS,https://aws.amazon.com,root,op-pass,,false,false,cloud,mfa on\n",
			want:   []Candidate{{Title: "AWS", URL: "https://aws.amazon.com", Username: "root", Secret: "op-pass", Notes: "mfa on"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.csv, tt.format)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_SkipsEmptySecrets(t *testing.T) {
	csv := "name,url,username,password\nA,https://a,u,\nB,https://b,u,   \nC,https://c,u,pw\n"
	result := ParseDetailed([]byte(csv), FormatGoogle)

	if len(result.Candidates) != 1 || result.Candidates[0].Title != "C" {
		t.Errorf("Candidates = %+v, want only C", result.Candidates)
	}
	if len(result.Skipped) != 2 {
		t.Fatalf("Skipped = %+v, want 2 entries", result.Skipped)
	}
	if result.Skipped[0].Line != 2 || result.Skipped[1].Line != 3 {
		t.Errorf("skipped lines = %d,%d, want 2,3", result.Skipped[0].Line, result.Skipped[1].Line)
	}
	for _, c := range result.Candidates {
		if c.Secret == "" {
			t.Error("candidate with empty secret emitted")
		}
	}
}

func TestParse_Decoding(t *testing.T) {
	tests := []struct {
		name string
		csv  string
		want []Candidate
	}{
		{
			name: "quoted commas",
			csv:  "name,url,username,password,note\n\"Acme, Inc\",https://acme.example,me,\"p,w\",\"a, b\"\n",
			want: []Candidate{{Title: "Acme, Inc", URL: "https://acme.example", Username: "me", Secret: "p,w", Notes: "a, b"}},
		},
		{
			name: "embedded newline",
			csv:  "name,url,username,password,note\nSite,https://s.example,me,pw,\"line1\nline2\"\n",
			want: []Candidate{{Title: "Site", URL: "https://s.example", Username: "me", Secret: "pw", Notes: "line1\nline2"}},
		},
		{
			name: "bom and crlf",
			csv:  "\ufeffname,url,username,password\r\nSite,https://s.example,me,pw\r\n",
			want: []Candidate{{Title: "Site", URL: "https://s.example", Username: "me", Secret: "pw"}},
		},
		{
			name: "blank lines and padding",
			csv:  "name,url,username,password\n\n  Site , https://s.example , me , pw \n\n",
			want: []Candidate{{Title: "Site", URL: "https://s.example", Username: "me", Secret: "pw"}},
		},
		{
			name: "nfc normalization",
			csv:  "name,url,username,password\nCafe\u0301,https://c.example,me,pw\n",
			want: []Candidate{{Title: "Caf\u00e9", URL: "https://c.example", Username: "me", Secret: "pw"}},
		},
		{
			name: "header only",
			csv:  "name,url,username,password\n",
			want: []Candidate{},
		},
		{
			name: "empty input",
			csv:  "",
			want: []Candidate{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.csv, FormatGoogle)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParse_PreservesOrderWithoutDedup(t *testing.T) {
	csv := "name,url,username,password\nB,,u,pw\nA,,u,pw\nB,,u,pw\n"
	got := Parse(csv, FormatGeneric)

	titles := make([]string, 0, len(got))
	for _, c := range got {
		titles = append(titles, c.Title)
	}
	if want := []string{"B", "A", "B"}; !reflect.DeepEqual(titles, want) {
		t.Errorf("titles = %v, want %v", titles, want)
	}
}

func TestParse_UnknownFormatFallsBackToGeneric(t *testing.T) {
	csv := "name,url,username,password\nGmail,https://gmail.com,me@x.com,Secret123\n"
	if got := Parse(csv, Format("keepass")); len(got) != 1 || got[0].Title != "Gmail" {
		t.Errorf("Parse() = %+v, want the generic result", got)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{"google", FormatGoogle, false},
		{" Chrome ", FormatChrome, false},
		{"LASTPASS", FormatLastPass, false},
		{"bitwarden-json", FormatBitwardenJSON, false},
		{"safari", FormatSafari, false},
		{"generic", FormatGeneric, false},
		{"1password", Format1Password, false},
		{"keepass", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrUnknownFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnknownFormat", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormats(t *testing.T) {
	formats := Formats()
	if len(formats) != 9 {
		t.Errorf("Formats() = %v, want 9 entries", formats)
	}
	for _, f := range formats {
		if _, err := ParseFormat(f); err != nil {
			t.Errorf("ParseFormat(%q) rejected a listed format: %v", f, err)
		}
	}
}

func TestCandidateDraft(t *testing.T) {
	c := Candidate{Title: "T", Username: "u", Secret: "s", URL: "https://x", Notes: "n"}
	d := c.Draft("owner-1")
	want := vault.Draft{
		Owner: "owner-1", Title: "T", Username: "u", Secret: "s", URL: "https://x", Notes: "n",
		Category: vault.CategoryImported,
	}
	if d != want {
		t.Errorf("Draft() = %+v, want %+v", d, want)
	}

	drafts := Drafts([]Candidate{c, c}, "owner-2")
	if len(drafts) != 2 || drafts[1].Owner != "owner-2" {
		t.Errorf("Drafts() = %+v", drafts)
	}
}

func TestDecodeHTMLEntities(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain", "plain"},
		{"a &amp; b", "a & b"},
		{"&lt;tag&gt;", "<tag>"},
		{"&quot;q&quot; &#39;s&apos;", `"q" 's'`},
		{"&amp;lt;", "&lt;"},
	}
	for _, tt := range tests {
		if got := DecodeHTMLEntities(tt.input); got != tt.want {
			t.Errorf("DecodeHTMLEntities(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestIsEmptyOrWhitespace(t *testing.T) {
	for _, s := range []string{"", " ", "\t\n"} {
		if !IsEmptyOrWhitespace(s) {
			t.Errorf("IsEmptyOrWhitespace(%q) = false, want true", s)
		}
	}
	if IsEmptyOrWhitespace(" x ") {
		t.Error("IsEmptyOrWhitespace(\" x \") = true, want false")
	}
}

func TestParseDetailed_Format(t *testing.T) {
	result := ParseDetailed([]byte("name,url,username,password\n"), FormatFirefox)
	if result.Format != FormatFirefox {
		t.Errorf("Format = %s, want %s", result.Format, FormatFirefox)
	}
	if !strings.Contains(strings.Join(Formats(), ","), "firefox") {
		t.Error("firefox missing from Formats()")
	}
}
