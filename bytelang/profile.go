package bytelang

import (
	"path/filepath"
	"strconv"

	"golang.org/x/mod/semver"
	"golang.org/x/xerrors"
)

// compilerSchemaVersion is the content-schema version this build of the
// compiler understands. A profile may demand a minimum via
// min_schema_version; see checkSchemaCompatibility.
const compilerSchemaVersion = "v1.0.0"

// NoProgramLengthCap marks a Profile with no enforced program-size limit.
const NoProgramLengthCap = -1

// Profile is a VM's sizing configuration: the widths of its three pointer
// kinds and an optional program-size cap. Immutable after load.
type Profile struct {
	Name             string
	ProgPtr          PrimitiveType
	HeapPtr          PrimitiveType
	InstPtr          PrimitiveType
	MaxProgramLength int // NoProgramLengthCap when unset
	MinSchemaVersion string
}

// ProfileRegistry lazy-loads profile files (SPEC_FULL.md §6.3) by name from
// a configured folder: "<folder>/<name>.profile".
type ProfileRegistry struct {
	folder     string
	primitives *PrimitiveRegistry
	cache      map[string]*Profile
}

// NewProfileRegistry returns a registry that resolves pointer primitives
// through primitives.
func NewProfileRegistry(primitives *PrimitiveRegistry) *ProfileRegistry {
	return &ProfileRegistry{primitives: primitives}
}

// SetFolder points the registry at a directory of ".profile" files and
// clears any cached profiles loaded from a previous folder.
func (r *ProfileRegistry) SetFolder(folder string) {
	r.folder = folder
	r.cache = nil
}

// Get loads (or returns the cached) profile with the given name.
func (r *ProfileRegistry) Get(name string) (*Profile, error) {
	if r.cache == nil {
		r.cache = make(map[string]*Profile)
	}
	if p, ok := r.cache[name]; ok {
		return p, nil
	}

	p, err := r.load(name)
	if err != nil {
		return nil, err
	}
	r.cache[name] = p
	return p, nil
}

func (r *ProfileRegistry) load(name string) (*Profile, error) {
	path := filepath.Join(r.folder, name+".profile")

	lines, err := scanContentLines(path)
	if err != nil {
		return nil, xerrors.Errorf("profile registry: reading %q: %w", path, err)
	}

	fields, err := parseKeyValueLines(lines)
	if err != nil {
		return nil, xerrors.Errorf("profile registry: %s: %w", path, err)
	}

	progPtrSize, err := requireIntField(fields, "ptr_prog", path)
	if err != nil {
		return nil, err
	}
	heapPtrSize, err := requireIntField(fields, "ptr_heap", path)
	if err != nil {
		return nil, err
	}
	instPtrSize, err := requireIntField(fields, "ptr_inst", path)
	if err != nil {
		return nil, err
	}

	progPtr, ok := r.primitives.GetBySize(progPtrSize, Unsigned)
	if !ok {
		return nil, xerrors.Errorf("profile registry: %s: no unsigned primitive of size %d for ptr_prog", path, progPtrSize)
	}
	heapPtr, ok := r.primitives.GetBySize(heapPtrSize, Unsigned)
	if !ok {
		return nil, xerrors.Errorf("profile registry: %s: no unsigned primitive of size %d for ptr_heap", path, heapPtrSize)
	}
	instPtr, ok := r.primitives.GetBySize(instPtrSize, Unsigned)
	if !ok {
		return nil, xerrors.Errorf("profile registry: %s: no unsigned primitive of size %d for ptr_inst", path, instPtrSize)
	}

	profile := &Profile{
		Name:             name,
		ProgPtr:          progPtr,
		HeapPtr:          heapPtr,
		InstPtr:          instPtr,
		MaxProgramLength: NoProgramLengthCap,
	}

	if raw, ok := fields["prog_len"]; ok {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, xerrors.Errorf("profile registry: %s: invalid prog_len %q: %w", path, raw, err)
		}
		profile.MaxProgramLength = n
	}

	if raw, ok := fields["min_schema_version"]; ok {
		profile.MinSchemaVersion = raw
		if err := checkSchemaCompatibility(raw); err != nil {
			return nil, xerrors.Errorf("profile registry: %s: %w", path, err)
		}
	}

	return profile, nil
}

func requireIntField(fields map[string]string, key, path string) (int, error) {
	raw, ok := fields[key]
	if !ok {
		return 0, xerrors.Errorf("profile registry: %s: missing field %q", path, key)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, xerrors.Errorf("profile registry: %s: invalid %s %q: %w", path, key, raw, err)
	}
	return n, nil
}

// checkSchemaCompatibility rejects a profile whose declared minimum schema
// version is newer than this compiler's own content-schema version.
func checkSchemaCompatibility(minVersion string) error {
	if minVersion == "" {
		return nil
	}
	if !semver.IsValid(minVersion) {
		return xerrors.Errorf("invalid min_schema_version %q: not a semantic version", minVersion)
	}
	if semver.Compare(minVersion, compilerSchemaVersion) > 0 {
		return xerrors.Errorf("requires compiler schema %s, this build provides %s", minVersion, compilerSchemaVersion)
	}
	return nil
}
