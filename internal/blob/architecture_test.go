package blob

import (
	"sort"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

// TestOnlyBlobPackageImportsAWS ensures the AWS SDK stays contained behind the
// blob.Store interface. Other packages must depend on the interface instead of
// talking to S3 directly.
func TestOnlyBlobPackageImportsAWS(t *testing.T) {
	const awsPrefix = "github.com/aws/aws-sdk-go-v2"
	const allowed = "datamentor/internal/blob"

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "datamentor/...")
	if err != nil {
		t.Fatalf("load packages: %v", err)
	}

	seen := make(map[string]struct{})
	for _, pkg := range pkgs {
		if pkg.PkgPath == allowed || strings.HasPrefix(pkg.PkgPath, allowed+".") {
			continue
		}
		for importPath := range pkg.Imports {
			if importPath == awsPrefix || strings.HasPrefix(importPath, awsPrefix+"/") {
				seen[pkg.PkgPath+": "+importPath] = struct{}{}
			}
		}
	}

	if len(seen) > 0 {
		violations := make([]string, 0, len(seen))
		for v := range seen {
			violations = append(violations, v)
		}
		sort.Strings(violations)
		for _, v := range violations {
			t.Errorf("forbidden AWS SDK import outside blob package: %s", v)
		}
		t.Fatalf("found %d forbidden AWS SDK imports", len(violations))
	}
}
