package bytelang

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testContent struct {
	dir          string
	primitives   *PrimitiveRegistry
	packages     *PackageRegistry
	profiles     *ProfileRegistry
	environments *EnvironmentRegistry
}

func newTestContent(t *testing.T) *testContent {
	t.Helper()
	dir := t.TempDir()
	for _, sub := range []string{"packages", "profiles", "environments"} {
		require.NoError(t, os.MkdirAll(filepath.Join(dir, sub), 0o755))
	}

	primitives := newTestPrimitives(t)
	packages := NewPackageRegistry(primitives)
	packages.SetFolder(filepath.Join(dir, "packages"))
	profiles := NewProfileRegistry(primitives)
	profiles.SetFolder(filepath.Join(dir, "profiles"))
	environments := NewEnvironmentRegistry(profiles, packages)
	environments.SetFolder(filepath.Join(dir, "environments"))

	return &testContent{dir: dir, primitives: primitives, packages: packages, profiles: profiles, environments: environments}
}

func (c *testContent) writePackage(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "packages", name+".blp"), []byte(content), 0o644))
}

func (c *testContent) writeProfile(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "profiles", name+".profile"), []byte(content), 0o644))
}

func (c *testContent) writeEnvironment(t *testing.T, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(c.dir, "environments", name+".env"), []byte(content), 0o644))
}

const basicProfile = "ptr_prog: 4\nptr_heap: 4\nptr_inst: 1\n"

func TestEnvironmentRegistryAssignsDenseOpcodeIndices(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "nop\nadd u32 u32\n")
	c.writePackage(t, "io", "writec u32\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core, io]\n")

	env, err := c.environments.Get("demo")
	require.NoError(t, err)
	require.Len(t, env.Instructions, 3)

	assert.Equal(t, 0, env.Instructions["nop"].Index)
	assert.Equal(t, 1, env.Instructions["add"].Index)
	assert.Equal(t, 2, env.Instructions["writec"].Index)
	assert.Equal(t, []string{"nop", "add", "writec"}, env.Order)
}

func TestEnvironmentRegistrySpecialisesPointerArguments(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "load u32*\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core]\n")

	env, err := c.environments.Get("demo")
	require.NoError(t, err)

	load := env.Instructions["load"]
	require.Len(t, load.Arguments, 1)
	assert.True(t, load.Arguments[0].IsPointer)
	assert.Equal(t, "u32", load.Arguments[0].Primitive.Name) // profile's heap pointer primitive
	assert.Equal(t, 1+4, load.Size)                          // ptr_inst + ptr_heap
}

func TestEnvironmentRegistryRejectsOverloadedInstructionNames(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "add u32\n")
	c.writePackage(t, "ext", "add u32 u32\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core, ext]\n")

	_, err := c.environments.Get("demo")
	assert.Error(t, err)
}

func TestEnvironmentRegistryCachesSpecialisationPerPackageProfilePair(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "nop\n")
	c.writeProfile(t, "a", basicProfile)
	c.writeProfile(t, "b", basicProfile)
	c.writeEnvironment(t, "env-a", "profile: a\npackages: [core]\n")
	c.writeEnvironment(t, "env-b", "profile: b\npackages: [core]\n")

	_, err := c.environments.Get("env-a")
	require.NoError(t, err)
	_, err = c.environments.Get("env-b")
	require.NoError(t, err)

	assert.Len(t, c.environments.specCache, 2)
}
