package bytelang

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseStatements(t *testing.T, src string) []Statement {
	t.Helper()
	sink := NewErrorSink("test")
	stmts := NewParser(sink).Parse(strings.NewReader(src))
	require.True(t, sink.Success(), sink.Log())
	return stmts
}

func TestCodeGeneratorEmptyProgramHasNoVariablesOrCode(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "nop\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core]\n")

	sink := NewErrorSink("test")
	gen := NewCodeGenerator(c.environments, c.primitives, sink)
	code, program := gen.Run(parseStatements(t, ".env demo\n"))

	require.True(t, sink.Success(), sink.Log())
	assert.Empty(t, code)
	assert.Empty(t, program.Variables)
	assert.Equal(t, 4, program.FirstInstructionAddress) // ptr_heap size
}

func TestCodeGeneratorVariableAllocation(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "nop\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core]\n")

	src := ".env demo\n.ptr counter u32 0\n.ptr flag u8 1\n"
	sink := NewErrorSink("test")
	gen := NewCodeGenerator(c.environments, c.primitives, sink)
	_, program := gen.Run(parseStatements(t, src))

	require.True(t, sink.Success(), sink.Log())
	require.Len(t, program.Variables, 2)

	counter := program.Variables[0]
	assert.Equal(t, 4, counter.Address) // right after the 4-byte prologue
	flag := program.Variables[1]
	assert.Equal(t, 4+4+4, flag.Address) // counter's tag+value (4+4) after its own address
	assert.Equal(t, 4+4+4+4+1, program.FirstInstructionAddress)
}

func TestCodeGeneratorLabelResolution(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "nop\njmp u32\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core]\n")

	src := ".env demo\nstart:\nnop\njmp start\n"
	sink := NewErrorSink("test")
	gen := NewCodeGenerator(c.environments, c.primitives, sink)
	code, program := gen.Run(parseStatements(t, src))

	require.True(t, sink.Success(), sink.Log())
	require.Len(t, code, 2)
	assert.Equal(t, program.FirstInstructionAddress, program.Labels["start"])
}

func TestCodeGeneratorRejectsDuplicateNames(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "nop\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core]\n")

	src := ".env demo\n.def x 1\n.def x 2\n"
	sink := NewErrorSink("test")
	gen := NewCodeGenerator(c.environments, c.primitives, sink)
	gen.Run(parseStatements(t, src))

	assert.False(t, sink.Success())
}

func TestCodeGeneratorRejectsSelfReferentialConstant(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "add u32\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core]\n")

	src := ".env demo\n.def x x\nadd x\n"
	sink := NewErrorSink("test")
	gen := NewCodeGenerator(c.environments, c.primitives, sink)
	code, _ := gen.Run(parseStatements(t, src))

	assert.False(t, sink.Success())
	assert.Empty(t, code)
}

func TestCodeGeneratorFailedStatementDoesNotAdvanceMarkOffset(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "add u32\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core]\n")

	// unresolved is never defined, so the add statement fails entirely and
	// must not reserve bytes in the output layout.
	src := ".env demo\nhere:\nadd unresolved\n"
	sink := NewErrorSink("test")
	gen := NewCodeGenerator(c.environments, c.primitives, sink)
	code, program := gen.Run(parseStatements(t, src))

	assert.False(t, sink.Success())
	assert.Empty(t, code)
	assert.Equal(t, program.FirstInstructionAddress, program.Labels["here"])
}

func TestCodeGeneratorPointerArgumentNonVariableIsDiagnosticNotFatal(t *testing.T) {
	c := newTestContent(t)
	c.writePackage(t, "core", "jmp u32*\n")
	c.writeProfile(t, "demo", basicProfile)
	c.writeEnvironment(t, "demo", "profile: demo\npackages: [core]\n")

	src := ".env demo\n.def target 100\njmp target\n"
	sink := NewErrorSink("test")
	gen := NewCodeGenerator(c.environments, c.primitives, sink)
	code, _ := gen.Run(parseStatements(t, src))

	// diagnostic recorded, but the instruction still lowers
	assert.False(t, sink.Success())
	require.Len(t, code, 1)
}

func TestCodeGeneratorRequiresEnvironmentBeforePtr(t *testing.T) {
	sink := NewErrorSink("test")
	c := newTestContent(t)
	gen := NewCodeGenerator(c.environments, c.primitives, sink)
	gen.Run(parseStatements(t, ".ptr x u32 0\n"))
	assert.False(t, sink.Success())
}
