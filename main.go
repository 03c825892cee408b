// dyo links one or more DYO object files into an executable in-memory image,
// or dumps their record streams.
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
)

const versionString = "dyo 1.0.0"

func usage() {
	fmt.Fprintf(os.Stderr, "usage: dyo [-v] [-dump] file.dyo...\n")
	fmt.Fprintf(os.Stderr, "  -dump    print the record stream of each file\n")
	fmt.Fprintf(os.Stderr, "  -v       verbose diagnostics on stderr\n")
	fmt.Fprintf(os.Stderr, "  -version print version and exit\n")
	os.Exit(2)
}

func main() {
	dump := flag.Bool("dump", false, "dump record streams instead of linking")
	verbose := flag.Bool("v", false, "verbose diagnostics")
	version := flag.Bool("version", false, "print version and exit")
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Println(versionString)
		return
	}

	if *verbose {
		VerboseMode = true
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	if *dump {
		for _, name := range args {
			f, err := os.Open(name)
			if err != nil {
				fmt.Fprintf(os.Stderr, "dyo: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("%s:\n", name)
			err = DumpDyo(f, os.Stdout)
			f.Close()
			if err != nil {
				fmt.Fprintf(os.Stderr, "dyo: %s: %v\n", name, err)
				os.Exit(1)
			}
		}
		return
	}

	var files []io.ReadSeeker
	for _, name := range args {
		f, err := os.Open(name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "dyo: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		files = append(files, f)
	}

	img, err := LinkDyos(files)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dyo: link failed: %v\n", err)
		os.Exit(1)
	}
	defer img.Close()

	if img.Entry == 0 {
		fmt.Fprintf(os.Stderr, "dyo: no entry point in any input\n")
		os.Exit(1)
	}

	fmt.Printf("entry point at %#x\n", img.Entry)
	if VerboseMode {
		for name, addr := range img.Exports {
			fmt.Fprintf(os.Stderr, "export %s at %#x\n", name, addr)
		}
	}
}
