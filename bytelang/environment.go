package bytelang

import (
	"path/filepath"

	"golang.org/x/xerrors"
)

// EnvironmentInstruction is a PackageInstruction specialised to a profile:
// pointer arguments adopt the profile's heap-pointer primitive, and the
// instruction carries its dense opcode index plus precomputed wire size.
type EnvironmentInstruction struct {
	Name      string
	Package   string
	Index     int
	Arguments []Argument
	Size      int // profile.InstPtr.Size + Σ arg widths
}

// Environment is a profile bound to an ordered set of packages, with
// densely assigned opcode indices (SPEC_FULL.md §4.4).
type Environment struct {
	Name         string
	Profile      *Profile
	Instructions map[string]*EnvironmentInstruction
	// Order lists instruction names in opcode-index order, for
	// deterministic iteration (disassembly, debug dumps).
	Order []string
}

type specialiseKey struct {
	packageName string
	profileName string
}

// EnvironmentRegistry lazy-loads environment files (SPEC_FULL.md §6.5) by
// name from a configured folder: "<folder>/<name>.env". Package
// specialisation is cached per (package, profile) pair so composing the
// same package into several environments only transforms it once.
type EnvironmentRegistry struct {
	folder     string
	profiles   *ProfileRegistry
	packages   *PackageRegistry
	cache      map[string]*Environment
	specCache  map[specialiseKey][]EnvironmentInstruction
}

// NewEnvironmentRegistry returns a registry that resolves profiles and
// packages through the given registries.
func NewEnvironmentRegistry(profiles *ProfileRegistry, packages *PackageRegistry) *EnvironmentRegistry {
	return &EnvironmentRegistry{profiles: profiles, packages: packages}
}

// SetFolder points the registry at a directory of ".env" files and clears
// any cached environments loaded from a previous folder. Specialisation
// results are also cleared, since they're keyed by package+profile names
// which may now resolve to different files.
func (r *EnvironmentRegistry) SetFolder(folder string) {
	r.folder = folder
	r.cache = nil
	r.specCache = nil
}

// Get loads (or returns the cached) environment with the given name.
func (r *EnvironmentRegistry) Get(name string) (*Environment, error) {
	if r.cache == nil {
		r.cache = make(map[string]*Environment)
	}
	if e, ok := r.cache[name]; ok {
		return e, nil
	}

	e, err := r.load(name)
	if err != nil {
		return nil, err
	}
	r.cache[name] = e
	return e, nil
}

func (r *EnvironmentRegistry) load(name string) (*Environment, error) {
	path := filepath.Join(r.folder, name+".env")

	lines, err := scanContentLines(path)
	if err != nil {
		return nil, xerrors.Errorf("environment registry: reading %q: %w", path, err)
	}

	fields, err := parseKeyValueLines(lines)
	if err != nil {
		return nil, xerrors.Errorf("environment registry: %s: %w", path, err)
	}

	profileName, ok := fields["profile"]
	if !ok || profileName == "" {
		return nil, xerrors.Errorf("environment registry: %s: missing field %q", path, "profile")
	}

	packagesRaw, ok := fields["packages"]
	if !ok {
		return nil, xerrors.Errorf("environment registry: %s: missing field %q", path, "packages")
	}
	packageNames, ok := parseListValue(packagesRaw)
	if !ok {
		return nil, xerrors.Errorf("environment registry: %s: packages must be a %q list, got %q", path, "[a, b]", packagesRaw)
	}

	profile, err := r.profiles.Get(profileName)
	if err != nil {
		return nil, xerrors.Errorf("environment registry: %s: loading profile %q: %w", path, profileName, err)
	}

	env := &Environment{
		Name:         name,
		Profile:      profile,
		Instructions: make(map[string]*EnvironmentInstruction),
	}

	nextIndex := 0
	for _, pkgName := range packageNames {
		specialised, err := r.specialise(pkgName, profile)
		if err != nil {
			return nil, xerrors.Errorf("environment registry: %s: package %q: %w", path, pkgName, err)
		}

		for i := range specialised {
			instr := specialised[i]
			instr.Index = nextIndex
			nextIndex++

			if _, dup := env.Instructions[instr.Name]; dup {
				return nil, xerrors.Errorf("environment registry: %s: instruction %q already defined (no overloading across packages)", path, instr.Name)
			}

			stored := instr
			env.Instructions[instr.Name] = &stored
			env.Order = append(env.Order, instr.Name)
		}
	}

	return env, nil
}

// specialise transforms a package's declared instructions into
// profile-specialised EnvironmentInstructions, caching by (package,
// profile) name pair.
func (r *EnvironmentRegistry) specialise(pkgName string, profile *Profile) ([]EnvironmentInstruction, error) {
	key := specialiseKey{packageName: pkgName, profileName: profile.Name}
	if r.specCache == nil {
		r.specCache = make(map[specialiseKey][]EnvironmentInstruction)
	}
	if cached, ok := r.specCache[key]; ok {
		return cached, nil
	}

	pkg, err := r.packages.Get(pkgName)
	if err != nil {
		return nil, err
	}

	out := make([]EnvironmentInstruction, 0, len(pkg.Instructions))
	for _, decl := range pkg.Instructions {
		args := make([]Argument, len(decl.Arguments))
		size := profile.InstPtr.Size
		for i, a := range decl.Arguments {
			if a.IsPointer {
				args[i] = Argument{Primitive: profile.HeapPtr, IsPointer: true}
			} else {
				args[i] = a
			}
			size += args[i].Primitive.Size
		}

		out = append(out, EnvironmentInstruction{
			Name:      decl.Name,
			Package:   pkgName,
			Arguments: args,
			Size:      size,
		})
	}

	r.specCache[key] = out
	return out, nil
}
