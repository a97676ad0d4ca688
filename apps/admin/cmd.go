package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/voicelab/auris/core/program"
	"github.com/voicelab/auris/storage/database"
)

var (
	migrateFunc = database.Migrate // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db       *sqlx.DB
	programs program.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate - apply pending database migrations")
	fmt.Println("  addprogram -file FILE - load a training program from a JSON file")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addProgramCmd := flag.NewFlagSet("addprogram", flag.ExitOnError)
	addProgramFile := addProgramCmd.String("file", "", "Path to the program definition JSON file.")

	switch args[1] {
	case "migrate":
		return migrateFunc(cli.db)
	case "addprogram":
		if err := addProgramCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addProgramFile == "" {
			addProgramCmd.Usage()
			return errHelp
		}
		return cli.addProgram(*addProgramFile)
	default:
		cli.printUsage()
		return errHelp
	}
}
