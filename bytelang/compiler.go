package bytelang

import (
	"os"

	"golang.org/x/xerrors"
)

// CompileResult carries every intermediate artifact of a successful
// compile, not just the final bytes: callers that disassemble or debug a
// program can walk the statements and code instructions directly instead
// of re-parsing the output file.
type CompileResult struct {
	Statements []Statement
	Code       []CodeInstruction
	Program    *ProgramData
	Bytes      []byte
}

// Compiler is the façade SPEC_FULL.md §6.7 describes: configure the four
// content sources, then Compile as many source files as needed. Registries
// are reused (and their content caches kept warm) across calls.
type Compiler struct {
	primitives   *PrimitiveRegistry
	packages     *PackageRegistry
	profiles     *ProfileRegistry
	environments *EnvironmentRegistry

	sink *ErrorSink
}

// NewCompiler wires up a fresh, unconfigured set of registries. Callers
// must call the SetXxx methods before the first Compile.
func NewCompiler() *Compiler {
	primitives := NewPrimitiveRegistry()
	packages := NewPackageRegistry(primitives)
	profiles := NewProfileRegistry(primitives)
	environments := NewEnvironmentRegistry(profiles, packages)

	return &Compiler{
		primitives:   primitives,
		packages:     packages,
		profiles:     profiles,
		environments: environments,
		sink:         NewErrorSink("bytelang"),
	}
}

// SetPrimitivesFile points the compiler at the primitive type descriptor
// file (SPEC_FULL.md §6.4).
func (c *Compiler) SetPrimitivesFile(path string) {
	c.primitives.SetFile(path)
}

// SetPackagesFolder points the compiler at a directory of ".blp" package
// files (SPEC_FULL.md §6.2).
func (c *Compiler) SetPackagesFolder(path string) {
	c.packages.SetFolder(path)
}

// SetProfilesFolder points the compiler at a directory of ".profile" files
// (SPEC_FULL.md §6.3).
func (c *Compiler) SetProfilesFolder(path string) {
	c.profiles.SetFolder(path)
}

// SetEnvironmentsFolder points the compiler at a directory of ".env" files
// (SPEC_FULL.md §6.5).
func (c *Compiler) SetEnvironmentsFolder(path string) {
	c.environments.SetFolder(path)
}

// Compile reads the assembly source at sourcePath, lowers it against the
// configured content sources, and atomically writes the resulting bytecode
// to outputPath. On any diagnostic, no output file is written and the
// error wraps a summary of what failed; the full diagnostic log is always
// available afterwards via GetErrorsLog.
func (c *Compiler) Compile(sourcePath, outputPath string) (*CompileResult, error) {
	c.sink = NewErrorSink("bytelang")

	src, err := os.Open(sourcePath)
	if err != nil {
		c.sink.Report("opening source %q: %v", sourcePath, err)
		return nil, xerrors.Errorf("bytelang: opening source %q: %w", sourcePath, err)
	}

	parser := NewParser(c.sink.Child("parser"))
	statements := parser.Parse(src)
	src.Close()

	gen := NewCodeGenerator(c.environments, c.primitives, c.sink.Child("codegen"))
	code, program := gen.Run(statements)

	if !c.sink.Success() {
		return nil, xerrors.Errorf("bytelang: compilation of %q failed with %d diagnostic(s)", sourcePath, c.sink.Count())
	}

	emitter := NewEmitter(c.sink.Child("emitter"))
	bytecode, err := emitter.Emit(code, program)
	if err != nil {
		c.sink.Report("emitting %q: %v", outputPath, err)
		return nil, xerrors.Errorf("bytelang: emitting %q: %w", outputPath, err)
	}

	if err := WriteProgramFile(outputPath, bytecode); err != nil {
		c.sink.Report("writing %q: %v", outputPath, err)
		return nil, xerrors.Errorf("bytelang: writing %q: %w", outputPath, err)
	}

	return &CompileResult{
		Statements: statements,
		Code:       code,
		Program:    program,
		Bytes:      bytecode,
	}, nil
}

// GetErrorsLog renders every diagnostic recorded during the most recent
// Compile call, one per line, in the deterministic format described by
// SPEC_FULL.md §7. Empty when the last compile succeeded (or none ran).
func (c *Compiler) GetErrorsLog() string {
	return c.sink.Log()
}
