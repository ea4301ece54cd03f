/*
The mace command line REPL and script runner.
*/
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/glycerine/mace/mace"
)

func usage(myflags *flag.FlagSet) {
	fmt.Printf("mace command line help:\n")
	myflags.PrintDefaults()
	os.Exit(1)
}

func main() {
	cfg := mace.NewMaceConfig("mace")
	cfg.DefineFlags()
	err := cfg.Flags.Parse(os.Args[1:])
	if err == flag.ErrHelp {
		usage(cfg.Flags)
	}

	if err != nil {
		panic(err)
	}
	err = cfg.ValidateConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "mace command line error: '%v'\n", err)
		usage(cfg.Flags)
	}

	// the library does all the heavy lifting.
	mace.ReplMain(cfg)
}
