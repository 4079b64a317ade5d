package vault

import "testing"

func TestFilter(t *testing.T) {
	creds := []Credential{
		{ID: "1", Title: "GitHub", Username: "octo", URL: "https://github.com", Category: CategoryWork, Favorite: true},
		{ID: "2", Title: "Bank", Username: "me@example.com", Category: CategoryFinance},
		{ID: "3", Title: "Mail", Username: "me@example.com", URL: "https://mail.example", Category: CategoryPersonal, Favorite: true},
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"zero value", Filter{}, []string{"1", "2", "3"}},
		{"category", Filter{Category: "WORK"}, []string{"1"}},
		{"favorites", Filter{FavoritesOnly: true}, []string{"1", "3"}},
		{"query title", Filter{Query: "git"}, []string{"1"}},
		{"query username", Filter{Query: "ME@EXAMPLE"}, []string{"2", "3"}},
		{"query url", Filter{Query: "mail.example"}, []string{"3"}},
		{"combined", Filter{FavoritesOnly: true, Query: "example"}, []string{"3"}},
		{"no match", Filter{Category: CategorySocial}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Apply(creds)
			if len(got) != len(tt.want) {
				t.Fatalf("Apply() returned %d credentials, want %d", len(got), len(tt.want))
			}
			for i, c := range got {
				if c.ID != tt.want[i] {
					t.Errorf("Apply()[%d] = %s, want %s", i, c.ID, tt.want[i])
				}
			}
		})
	}
}
