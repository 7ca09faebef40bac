package bytelang

import "fmt"

// Variable is a named heap-resident value: the address it was allocated
// at, its declared primitive, and its packed initial value.
type Variable struct {
	Name      string
	Address   int
	Primitive PrimitiveType
	InitBytes []byte
}

// CodeInstruction is an EnvironmentInstruction paired with its already
// packed argument bytes, in slot order.
type CodeInstruction struct {
	Instruction *EnvironmentInstruction
	Args        [][]byte
}

// ProgramData is everything the bytecode emitter needs besides the code
// instruction sequence itself: the chosen environment, the symbol tables,
// and the address the first instruction begins at.
type ProgramData struct {
	Environment             *Environment
	Constants               map[string]UniversalArgument
	Variables               []Variable
	Labels                  map[string]int
	FirstInstructionAddress int
}

// CodeGenerator executes directives and lowers instruction statements into
// CodeInstructions, maintaining the heap cursor, constant table, variable
// table and label addresses described in SPEC_FULL.md §4.6.
type CodeGenerator struct {
	environments *EnvironmentRegistry
	primitives   *PrimitiveRegistry
	sink         *ErrorSink

	env          *Environment
	envSelected  bool

	markOffset     int
	variableOffset int

	constants     map[string]UniversalArgument
	variables     []Variable
	labels        map[string]int
	usedNames     map[string]string // name -> "constant" | "variable" | "label"
	variableNames map[string]bool

	code []CodeInstruction
}

// NewCodeGenerator returns a generator that resolves environments and
// primitives through the given registries and reports into sink.
func NewCodeGenerator(environments *EnvironmentRegistry, primitives *PrimitiveRegistry, sink *ErrorSink) *CodeGenerator {
	return &CodeGenerator{
		environments:  environments,
		primitives:    primitives,
		sink:          sink,
		constants:     make(map[string]UniversalArgument),
		labels:        make(map[string]int),
		usedNames:     make(map[string]string),
		variableNames: make(map[string]bool),
	}
}

// Run executes every statement in order, returning the resulting code
// instructions and ProgramData. A statement that records any diagnostic
// contributes nothing to either, with one exception: an instruction whose
// pointer argument does not name a declared variable is diagnosed but still
// lowered. Prior state (labels, variables, constants) is left as it was.
func (g *CodeGenerator) Run(statements []Statement) ([]CodeInstruction, *ProgramData) {
	for _, stmt := range statements {
		switch stmt.Kind {
		case DirectiveUse:
			g.handleDirective(stmt)
		case LabelDeclare:
			g.handleLabel(stmt)
		case InstructionCall:
			g.handleInstruction(stmt)
		}
	}

	return g.code, &ProgramData{
		Environment:             g.env,
		Constants:               g.constants,
		Variables:               g.variables,
		Labels:                  g.labels,
		FirstInstructionAddress: g.variableOffset,
	}
}

// checkNameAvailable reports (and returns false) if name is already a
// constant, variable, label, or — once an environment is selected — an
// instruction name.
func (g *CodeGenerator) checkNameAvailable(stmt Statement, name string) bool {
	if kind, exists := g.usedNames[name]; exists {
		g.sink.ReportAt(stmt.Line, stmt.Text, "name %q already declared as a %s", name, kind)
		return false
	}
	if g.env != nil {
		if _, exists := g.env.Instructions[name]; exists {
			g.sink.ReportAt(stmt.Line, stmt.Text, "name %q collides with an instruction in environment %q", name, g.env.Name)
			return false
		}
	}
	return true
}

func (g *CodeGenerator) checkArity(stmt Statement, want int) bool {
	if len(stmt.Args) != want {
		g.sink.ReportAt(stmt.Line, stmt.Text, "%q wants %d argument(s), got %d", stmt.Head, want, len(stmt.Args))
		return false
	}
	return true
}

// resolveValue chases an identifier through the constants table until a
// non-identifier value is reached, detecting cycles (including
// self-references) along the way.
func (g *CodeGenerator) resolveValue(arg UniversalArgument) (UniversalArgument, error) {
	seen := make(map[string]bool)
	cur := arg
	for cur.Kind == ArgIdentifier {
		if seen[cur.Identifier] {
			return UniversalArgument{}, fmt.Errorf("identifier cycle involving %q", cur.Identifier)
		}
		seen[cur.Identifier] = true

		next, ok := g.constants[cur.Identifier]
		if !ok {
			return UniversalArgument{}, fmt.Errorf("unresolved identifier %q", cur.Identifier)
		}
		cur = next
	}
	return cur, nil
}

func (g *CodeGenerator) handleDirective(stmt Statement) {
	switch stmt.Head {
	case "env":
		g.handleEnvDirective(stmt)
	case "def":
		g.handleDefDirective(stmt)
	case "ptr":
		g.handlePtrDirective(stmt)
	default:
		g.sink.ReportAt(stmt.Line, stmt.Text, "unknown directive %q", stmt.Head)
	}
}

func (g *CodeGenerator) handleEnvDirective(stmt Statement) {
	if !g.checkArity(stmt, 1) {
		return
	}
	if stmt.Args[0].Kind != ArgIdentifier {
		g.sink.ReportAt(stmt.Line, stmt.Text, ".env wants an identifier argument")
		return
	}
	if g.envSelected {
		g.sink.ReportAt(stmt.Line, stmt.Text, ".env may only appear once per source file")
		return
	}

	name := stmt.Args[0].Identifier
	env, err := g.environments.Get(name)
	if err != nil {
		g.sink.ReportAt(stmt.Line, stmt.Text, "loading environment %q: %v", name, err)
		return
	}

	g.env = env
	g.envSelected = true
	g.markOffset = env.Profile.HeapPtr.Size
	g.variableOffset = env.Profile.HeapPtr.Size
}

func (g *CodeGenerator) handleDefDirective(stmt Statement) {
	if !g.checkArity(stmt, 2) {
		return
	}
	if stmt.Args[0].Kind != ArgIdentifier {
		g.sink.ReportAt(stmt.Line, stmt.Text, ".def wants an identifier as its first argument")
		return
	}

	name := stmt.Args[0].Identifier
	if !g.checkNameAvailable(stmt, name) {
		return
	}

	g.constants[name] = stmt.Args[1]
	g.usedNames[name] = "constant"
}

func (g *CodeGenerator) handlePtrDirective(stmt Statement) {
	if !g.checkArity(stmt, 3) {
		return
	}
	if stmt.Args[0].Kind != ArgIdentifier || stmt.Args[1].Kind != ArgIdentifier {
		g.sink.ReportAt(stmt.Line, stmt.Text, ".ptr wants identifier name and type arguments")
		return
	}
	if !g.envSelected {
		g.sink.ReportAt(stmt.Line, stmt.Text, ".ptr requires an environment; .env has not been set yet")
		return
	}

	name := stmt.Args[0].Identifier
	typeName := stmt.Args[1].Identifier

	primitive, ok := g.primitives.Get(typeName)
	if !ok {
		g.sink.ReportAt(stmt.Line, stmt.Text, "unknown primitive type %q", typeName)
		return
	}
	if !g.checkNameAvailable(stmt, name) {
		return
	}

	initArg, err := g.resolveValue(stmt.Args[2])
	if err != nil {
		g.sink.ReportAt(stmt.Line, stmt.Text, "resolving initial value: %v", err)
		return
	}

	initBytes, err := primitive.Pack(initArg)
	if err != nil {
		g.sink.ReportAt(stmt.Line, stmt.Text, "packing initial value: %v", err)
		return
	}

	address := g.variableOffset
	g.variableOffset += primitive.Size + g.env.Profile.HeapPtr.Size
	// The variable region precedes the code region in the image, so the
	// next instruction (and any label naming it) moves along too.
	g.markOffset += primitive.Size + g.env.Profile.HeapPtr.Size

	g.variables = append(g.variables, Variable{
		Name:      name,
		Address:   address,
		Primitive: primitive,
		InitBytes: initBytes,
	})
	g.constants[name] = newIntegerArg(int64(address))
	g.usedNames[name] = "variable"
	g.variableNames[name] = true
}

func (g *CodeGenerator) handleLabel(stmt Statement) {
	if !g.envSelected {
		g.sink.ReportAt(stmt.Line, stmt.Text, "label %q requires an environment; .env has not been set yet", stmt.Head)
		return
	}
	if !g.checkNameAvailable(stmt, stmt.Head) {
		return
	}

	g.constants[stmt.Head] = newIntegerArg(int64(g.markOffset))
	g.usedNames[stmt.Head] = "label"
	g.labels[stmt.Head] = g.markOffset
}

func (g *CodeGenerator) handleInstruction(stmt Statement) {
	if !g.envSelected {
		g.sink.ReportAt(stmt.Line, stmt.Text, "instruction %q requires an environment; .env has not been set yet", stmt.Head)
		return
	}

	instr, ok := g.env.Instructions[stmt.Head]
	if !ok {
		g.sink.ReportAt(stmt.Line, stmt.Text, "unknown instruction %q in environment %q", stmt.Head, g.env.Name)
		return
	}
	if !g.checkArity(stmt, len(instr.Arguments)) {
		return
	}

	packed := make([][]byte, len(instr.Arguments))
	for i, slot := range instr.Arguments {
		resolved, err := g.resolveValue(stmt.Args[i])
		if err != nil {
			g.sink.ReportAt(stmt.Line, stmt.Text, "argument %d: %v", i, err)
			return
		}

		if slot.IsPointer && !g.isVariableReference(stmt.Args[i]) {
			g.sink.ReportAt(stmt.Line, stmt.Text, "argument %d: pointer argument does not refer to a declared variable", i)
			// Not fatal - still pack the raw value below, for forward
			// compatibility with jump targets that aren't heap variables.
		}

		b, err := slot.Primitive.Pack(resolved)
		if err != nil {
			g.sink.ReportAt(stmt.Line, stmt.Text, "argument %d: %v", i, err)
			return
		}
		packed[i] = b
	}

	g.markOffset += instr.Size
	g.code = append(g.code, CodeInstruction{Instruction: instr, Args: packed})
}

// isVariableReference reports whether arg directly names a declared
// variable (not an alias that eventually resolves to one).
func (g *CodeGenerator) isVariableReference(arg UniversalArgument) bool {
	return arg.Kind == ArgIdentifier && g.variableNames[arg.Identifier]
}
