package mariadb

import "testing"

func TestWithParseTime(t *testing.T) {
	tests := []struct {
		name     string
		dsn      string
		expected string
	}{
		{
			"plain dsn",
			"user:pass@tcp(db:3306)/faceauth",
			"user:pass@tcp(db:3306)/faceauth?parseTime=true",
		},
		{
			"dsn with existing params",
			"user:pass@tcp(db:3306)/faceauth?charset=utf8mb4",
			"user:pass@tcp(db:3306)/faceauth?charset=utf8mb4&parseTime=true",
		},
		{
			"parseTime already set",
			"user:pass@tcp(db:3306)/faceauth?parseTime=true",
			"user:pass@tcp(db:3306)/faceauth?parseTime=true",
		},
		{
			"parseTime explicitly disabled is respected",
			"user:pass@tcp(db:3306)/faceauth?parseTime=false",
			"user:pass@tcp(db:3306)/faceauth?parseTime=false",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := withParseTime(tc.dsn); got != tc.expected {
				t.Errorf("withParseTime(%q) = %q; want %q", tc.dsn, got, tc.expected)
			}
		})
	}
}
