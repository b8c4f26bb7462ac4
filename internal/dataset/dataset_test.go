package dataset

import (
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"sales.csv", "sales.csv"},
		{"Q3 report (final).xlsx", "Q3_report__final_.xlsx"},
		{"data/2024/jan.csv", "data_2024_jan.csv"},
		{"übersicht.csv", "_bersicht.csv"},
		{"already_safe-1.2.csv", "already_safe-1.2.csv"},
		{"", "_"},
	}
	for _, tc := range cases {
		if got := SanitizeFilename(tc.in); got != tc.want {
			t.Fatalf("SanitizeFilename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestObjectKeyLayout(t *testing.T) {
	key := ObjectKey("user-1", "ds_abc", "my data.csv")
	if key != "user-1/ds_abc/my_data.csv" {
		t.Fatalf("unexpected key %q", key)
	}
	if !strings.HasPrefix(key, FolderPrefix("user-1", "ds_abc")) {
		t.Fatalf("key %q does not share folder prefix", key)
	}
}

func TestIDGeneratorsArePrefixedAndUnique(t *testing.T) {
	if !strings.HasPrefix(NewDatasetID(), "ds_") {
		t.Fatalf("dataset id missing prefix")
	}
	if !strings.HasPrefix(NewProjectID(), "proj_") {
		t.Fatalf("project id missing prefix")
	}
	if !strings.HasPrefix(NewCellID(), "cell_") {
		t.Fatalf("cell id missing prefix")
	}
	if NewDatasetID() == NewDatasetID() {
		t.Fatalf("dataset ids must be unique")
	}
}
