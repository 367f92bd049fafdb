package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/gentam/h7flash"
	"github.com/sirupsen/logrus"
)

var (
	simImage string
	partName string
	verbose  bool
)

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(1)
}

func fatalUsage(format string, a ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", a...)
	os.Exit(2)
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage:
	h7flash [-sim image.hex] [-part name] [-v] <command> [arguments]

Commands:
	info	 print sector map and bank state
	erase	 erase sectors or a bank
	write	 program flash memory
	read	 read flash memory

Global flags:
`)
	flag.PrintDefaults()
	os.Exit(2)
}

func main() {
	flag.StringVar(&simImage, "sim", "", "use the simulator backed by this Intel HEX image")
	flag.StringVar(&partName, "part", "stm32h743", "target part ("+strings.Join(partNames(), ", ")+")")
	flag.BoolVar(&verbose, "v", false, "log every flash operation")
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() == 0 {
		usage()
	}

	logrus.SetOutput(os.Stderr)
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	switch cmd := flag.Arg(0); cmd {
	case "info":
		infoCommand(flag.Args()[1:])
	case "erase":
		eraseCommand(flag.Args()[1:])
	case "write":
		writeCommand(flag.Args()[1:])
	case "read":
		readCommand(flag.Args()[1:])
	case "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %q\n", cmd)
		usage()
	}
}

func partNames() []string {
	names := make([]string, 0, len(h7flash.KnownParts))
	for n := range h7flash.KnownParts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func selectedPart() *h7flash.Part {
	p, ok := h7flash.KnownParts[strings.ToLower(partName)]
	if !ok {
		fatalUsage("unknown part %q", partName)
	}
	return p
}
