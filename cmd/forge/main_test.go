package main

import "testing"

func TestBuildRootCmdIncludesRunSubcommand(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["run"] {
		t.Fatalf("expected \"run\" subcommand to be registered")
	}
}

func TestRunRunCmd_RejectsUnknownOutputMode(t *testing.T) {
	runFlags.message = "hello"
	runFlags.output = "xml"
	defer func() { runFlags.output = "text" }()

	cmd := buildRunCmd()
	if err := runRunCmd(cmd, nil); err == nil {
		t.Fatalf("expected an error for an unsupported --output value")
	}
}

func TestRunRunCmd_RequiresMessage(t *testing.T) {
	runFlags.message = ""
	runFlags.output = "text"

	cmd := buildRunCmd()
	if err := runRunCmd(cmd, nil); err == nil {
		t.Fatalf("expected an error when --message is empty")
	}
}
