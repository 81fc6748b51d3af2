package blob

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
)

// TestInfraPackagesStayBehindFacades loads the whole module and checks that
// storage drivers are only reached through their facade packages: blob drivers
// through internal/blob and run-history drivers through internal/results.
func TestInfraPackagesStayBehindFacades(t *testing.T) {
	boundaries := []struct {
		infra   string
		facades []string
	}{
		{infra: "siosearch/internal/infra/blob", facades: []string{"siosearch/internal/blob"}},
		{infra: "siosearch/internal/infra/persistence", facades: []string{"siosearch/internal/results"}},
	}

	cfg := &packages.Config{Mode: packages.NeedName | packages.NeedImports, Tests: true}
	pkgs, err := packages.Load(cfg, "siosearch/...")
	require.NoError(t, err)

	var violations []string
	for _, pkg := range pkgs {
		for _, b := range boundaries {
			if underPrefix(pkg.PkgPath, b.infra) || underAny(pkg.PkgPath, b.facades) {
				continue
			}
			for importPath := range pkg.Imports {
				if underPrefix(importPath, b.infra) {
					violations = append(violations, pkg.PkgPath+": "+importPath)
				}
			}
		}
	}
	sort.Strings(violations)
	require.Empty(t, violations, "infra packages imported outside their facade")
}

func underAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if underPrefix(path, p) {
			return true
		}
	}
	return false
}

func underPrefix(path, prefix string) bool {
	// Test variants carry a " [pkg.test]" suffix.
	path, _, _ = strings.Cut(path, " ")
	return path == prefix || strings.HasPrefix(path, prefix+"/") || strings.HasPrefix(path, prefix+"_test")
}
