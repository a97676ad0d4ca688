package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/voicelab/auris/core/program"
)

var readFileFunc = os.ReadFile // mockable

// addProgram loads a program.Program definition from a JSON file and persists it.
func (cli *commandLine) addProgram(path string) error {
	data, err := readFileFunc(path)
	if err != nil {
		return err
	}

	var prog program.Program
	if err = json.Unmarshal(data, &prog); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	if err = checkProgram(prog); err != nil {
		return fmt.Errorf("invalid program in %s: %w", path, err)
	}

	if _, err = cli.programs.CreateProgram(context.Background(), prog); err != nil {
		return err
	}
	fmt.Printf("program %q loaded (%d sessions)\n", prog.Name, prog.NumberOfSessions)
	return nil
}

func checkProgram(prog program.Program) error {
	switch {
	case prog.Name == "":
		return fmt.Errorf("name is required")
	case prog.NumberOfSessions < 1:
		return fmt.Errorf("number_of_sessions must be at least 1")
	case len(prog.SessionThresholds) != prog.NumberOfSessions:
		return fmt.Errorf("session_thresholds must have one entry per session")
	case len(prog.Assessment) == 0:
		return fmt.Errorf("assessment reference items are required")
	case len(prog.Training) == 0:
		return fmt.Errorf("training reference items are required")
	}
	for _, item := range append(append([]program.ReferenceItem{}, prog.Assessment...), prog.Training...) {
		if item.Identifier == "" {
			return fmt.Errorf("reference items must have an identifier")
		}
		if len(item.Roughness) == 0 || len(item.Breathiness) == 0 {
			return fmt.Errorf("reference item %q must have values for both features", item.Identifier)
		}
	}
	return nil
}
