package bytelang

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// Emitter lays out a compiled program's bytes: a heap prologue, the
// variable region, then the code region, per SPEC_FULL.md §4.7.
type Emitter struct {
	sink *ErrorSink
}

// NewEmitter returns an emitter holding sink. Emit records nothing into
// sink: it returns every failure as an error (no environment selected, a
// program over the profile's length cap, or a variable address that does
// not match the layout cursor, which indicates a codegen bug).
func NewEmitter(sink *ErrorSink) *Emitter {
	return &Emitter{sink: sink}
}

// Emit renders code and program into the final byte stream for
// program.Environment's profile.
func (e *Emitter) Emit(code []CodeInstruction, program *ProgramData) ([]byte, error) {
	if program.Environment == nil {
		return nil, xerrors.New("emitter: no environment selected (missing .env directive)")
	}
	profile := program.Environment.Profile

	out := make([]byte, 0, e.estimateSize(program, code, profile))

	prologue, err := profile.HeapPtr.Pack(newIntegerArg(int64(program.FirstInstructionAddress)))
	if err != nil {
		return nil, xerrors.Errorf("emitter: packing heap prologue: %w", err)
	}
	out = append(out, prologue...)

	for _, v := range program.Variables {
		if len(out) != v.Address {
			return nil, xerrors.Errorf("emitter: variable %q address %d does not match layout cursor %d", v.Name, v.Address, len(out))
		}

		// The type-tag slot is reserved, zero-padded space (SPEC_FULL.md
		// §4.7), not a record of the variable's width.
		out = append(out, make([]byte, profile.HeapPtr.Size)...)
		out = append(out, v.InitBytes...)
	}

	if len(out) != program.FirstInstructionAddress {
		return nil, xerrors.Errorf("emitter: variable region ends at %d, expected first instruction address %d", len(out), program.FirstInstructionAddress)
	}

	for _, ci := range code {
		idx, err := profile.InstPtr.Pack(newIntegerArg(int64(ci.Instruction.Index)))
		if err != nil {
			return nil, xerrors.Errorf("emitter: packing opcode index for %q: %w", ci.Instruction.Name, err)
		}
		out = append(out, idx...)
		for _, a := range ci.Args {
			out = append(out, a...)
		}
	}

	if profile.MaxProgramLength != NoProgramLengthCap && len(out) > profile.MaxProgramLength {
		return nil, xerrors.Errorf("emitter: program is %d bytes, exceeds profile %q cap of %d", len(out), profile.Name, profile.MaxProgramLength)
	}

	return out, nil
}

func (e *Emitter) estimateSize(program *ProgramData, code []CodeInstruction, profile *Profile) int {
	size := profile.HeapPtr.Size
	for _, v := range program.Variables {
		size += profile.HeapPtr.Size + v.Primitive.Size
	}
	for _, ci := range code {
		size += ci.Instruction.Size
	}
	return size
}

// WriteProgramFile writes data to path atomically: a sibling temp file is
// written, fsynced, then renamed over the destination. A reader can never
// observe a partially written program file.
func WriteProgramFile(path string, data []byte) error {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, ".bytelang-*.tmp")
	if err != nil {
		return xerrors.Errorf("writing %q: creating temp file: %w", path, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return xerrors.Errorf("writing %q: %w", path, err)
	}
	if err := syncFile(tmp); err != nil {
		tmp.Close()
		return xerrors.Errorf("writing %q: sync: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return xerrors.Errorf("writing %q: %w", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return xerrors.Errorf("writing %q: rename into place: %w", path, err)
	}
	return nil
}
