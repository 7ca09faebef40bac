package bytelang

import (
	"path/filepath"
	"strings"

	"golang.org/x/xerrors"
)

const pointerSuffix = "*"

// Argument is one slot in an instruction's signature: a primitive type and
// whether the wire value is a heap address (IsPointer) rather than a plain
// value of that type.
type Argument struct {
	Primitive PrimitiveType
	IsPointer bool
}

func (a Argument) String() string {
	if a.IsPointer {
		return a.Primitive.Name + pointerSuffix
	}
	return a.Primitive.Name
}

// PackageInstruction is one named entry from a package file: a name and an
// ordered argument signature, as declared (not yet specialised to any
// profile).
type PackageInstruction struct {
	Package   string
	Name      string
	Arguments []Argument
}

// Package is an ordered, named list of instructions loaded from one package
// file. Ordering is preserved from the file since it feeds opcode
// assignment in the environment registry.
type Package struct {
	Name         string
	Path         string
	Instructions []PackageInstruction
}

// ByName looks up an instruction declared in this package.
func (p *Package) ByName(name string) (PackageInstruction, bool) {
	for _, instr := range p.Instructions {
		if instr.Name == name {
			return instr, true
		}
	}
	return PackageInstruction{}, false
}

// PackageRegistry lazy-loads package files (SPEC_FULL.md §6.2) by name from
// a configured folder, one package file per name: "<folder>/<name>.blp".
type PackageRegistry struct {
	folder     string
	primitives *PrimitiveRegistry
	cache      map[string]*Package
}

// NewPackageRegistry returns a registry that resolves argument primitives
// through primitives.
func NewPackageRegistry(primitives *PrimitiveRegistry) *PackageRegistry {
	return &PackageRegistry{primitives: primitives}
}

// SetFolder points the registry at a directory of ".blp" package files and
// clears any cached packages loaded from a previous folder.
func (r *PackageRegistry) SetFolder(folder string) {
	r.folder = folder
	r.cache = nil
}

// Get loads (or returns the cached) package with the given name.
func (r *PackageRegistry) Get(name string) (*Package, error) {
	if r.cache == nil {
		r.cache = make(map[string]*Package)
	}
	if pkg, ok := r.cache[name]; ok {
		return pkg, nil
	}

	pkg, err := r.load(name)
	if err != nil {
		return nil, err
	}
	r.cache[name] = pkg
	return pkg, nil
}

func (r *PackageRegistry) load(name string) (*Package, error) {
	path := filepath.Join(r.folder, name+".blp")

	lines, err := scanContentLines(path)
	if err != nil {
		return nil, xerrors.Errorf("package registry: reading %q: %w", path, err)
	}

	pkg := &Package{Name: name, Path: path}
	seen := make(map[string]struct{}, len(lines))

	for _, l := range lines {
		fields := splitFields(l.text)
		instrName, argLexemes := fields[0], fields[1:]

		if _, dup := seen[instrName]; dup {
			return nil, xerrors.Errorf("package registry: %s:%d: redefinition of instruction %q", path, l.line, instrName)
		}
		seen[instrName] = struct{}{}

		args := make([]Argument, len(argLexemes))
		for i, lexeme := range argLexemes {
			arg, err := r.parseArgument(lexeme)
			if err != nil {
				return nil, xerrors.Errorf("package registry: %s:%d: instruction %q, arg %d: %w", path, l.line, instrName, i, err)
			}
			args[i] = arg
		}

		pkg.Instructions = append(pkg.Instructions, PackageInstruction{
			Package:   name,
			Name:      instrName,
			Arguments: args,
		})
	}

	return pkg, nil
}

func (r *PackageRegistry) parseArgument(lexeme string) (Argument, error) {
	isPointer := strings.HasSuffix(lexeme, pointerSuffix)
	typeName := strings.TrimSuffix(lexeme, pointerSuffix)

	primitive, ok := r.primitives.Get(typeName)
	if !ok {
		return Argument{}, xerrors.Errorf("unknown primitive type %q", typeName)
	}

	return Argument{Primitive: primitive, IsPointer: isPointer}, nil
}
