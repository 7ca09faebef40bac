// Command bytelang compiles an assembly source file into a bytecode
// program file against a configurable content set (primitives, packages,
// profiles, environments).
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/jamahaw/bytelang/bytelang"
	"github.com/xyproto/env/v2"
)

func main() {
	contentDir := env.Str("BYTELANG_CONTENT_DIR", ".")

	primitivesFile := flag.String("primitives", contentDir+"/primitives.txt", "primitive type descriptor file")
	packagesDir := flag.String("packages", contentDir+"/packages", "package (.blp) folder")
	profilesDir := flag.String("profiles", contentDir+"/profiles", "profile (.profile) folder")
	environmentsDir := flag.String("environments", contentDir+"/environments", "environment (.env) folder")
	output := flag.String("o", "", "output bytecode path (default: source path with .bc appended)")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: bytelang [flags] <source file>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	source := flag.Arg(0)

	outputPath := *output
	if outputPath == "" {
		outputPath = source + ".bc"
	}

	c := bytelang.NewCompiler()
	c.SetPrimitivesFile(*primitivesFile)
	c.SetPackagesFolder(*packagesDir)
	c.SetProfilesFolder(*profilesDir)
	c.SetEnvironmentsFolder(*environmentsDir)

	result, err := c.Compile(source, outputPath)
	if err != nil {
		fmt.Fprint(os.Stderr, c.GetErrorsLog())
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d bytes to %s (%d instructions, %d variables)\n",
		len(result.Bytes), outputPath, len(result.Code), len(result.Program.Variables))
}
