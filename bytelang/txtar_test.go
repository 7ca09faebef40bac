package bytelang

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

// extractTxtar writes each file in the archive under dir, creating parent
// directories as needed, and returns dir. Bundling several related content
// files (primitives + package + profile + environment) in one archive keeps
// a fixture readable as a single literal instead of four separate ones.
func extractTxtar(t *testing.T, archive string) string {
	t.Helper()
	dir := t.TempDir()
	a := txtar.Parse([]byte(archive))
	for _, f := range a.Files {
		path := filepath.Join(dir, f.Name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, f.Data, 0o644))
	}
	return dir
}

const minimalContentArchive = `
-- primitives.txt --
u8 1 unsigned
u32 4 unsigned

-- packages/core.blp --
nop
add u32 u32

-- profiles/demo.profile --
ptr_prog: 4
ptr_heap: 4
ptr_inst: 1

-- environments/demo.env --
profile: demo
packages: [core]
`

func TestContentRegistriesLoadFromBundledTxtarFixture(t *testing.T) {
	dir := extractTxtar(t, minimalContentArchive)

	primitives := NewPrimitiveRegistry()
	primitives.SetFile(filepath.Join(dir, "primitives.txt"))
	packages := NewPackageRegistry(primitives)
	packages.SetFolder(filepath.Join(dir, "packages"))
	profiles := NewProfileRegistry(primitives)
	profiles.SetFolder(filepath.Join(dir, "profiles"))
	environments := NewEnvironmentRegistry(profiles, packages)
	environments.SetFolder(filepath.Join(dir, "environments"))

	env, err := environments.Get("demo")
	require.NoError(t, err)
	require.Contains(t, env.Instructions, "nop")
	require.Contains(t, env.Instructions, "add")
}
