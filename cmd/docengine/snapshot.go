package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"
	"golang.org/x/term"

	"github.com/dshills/docengine/internal/engine/change"
	"github.com/dshills/docengine/internal/engine/snapshot"
	"github.com/dshills/docengine/internal/logging"
	"github.com/dshills/docengine/internal/server"
)

var snapshotOpts struct {
	base     string
	changes  string
	id       string
	logLevel string
	pretty   bool
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Fold a changeset onto a base document",
	Long: `Fold a changeset onto a base document and print the snapshot.

The changes file holds a JSON array of changes; each change is either a
change object or a bare array of operations. Operations that do not
apply are skipped and counted. Output is indented and colored when
stdout is a terminal.`,
	Example: `  docengine snapshot --base doc.json --changes changes.json
  docengine snapshot --changes changes.json --log-level debug`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func init() {
	f := snapshotCmd.Flags()
	f.StringVar(&snapshotOpts.base, "base", "", "base document JSON file (default empty document)")
	f.StringVar(&snapshotOpts.changes, "changes", "", "changeset JSON file")
	f.StringVar(&snapshotOpts.id, "id", "", "document id recorded in the snapshot")
	f.StringVar(&snapshotOpts.logLevel, "log-level", "warn", "log level (debug shows skipped operations)")
	f.BoolVar(&snapshotOpts.pretty, "pretty", false, "indent output even when not a terminal")
	_ = snapshotCmd.MarkFlagRequired("changes")
}

func runSnapshot(cmd *cobra.Command, _ []string) error {
	base := []byte(server.EmptyDocument)
	if snapshotOpts.base != "" {
		data, err := os.ReadFile(snapshotOpts.base)
		if err != nil {
			return err
		}
		base = data
	}

	data, err := os.ReadFile(snapshotOpts.changes)
	if err != nil {
		return err
	}
	var changes []*change.Change
	if err := json.Unmarshal(data, &changes); err != nil {
		return fmt.Errorf("decode %s: %w", snapshotOpts.changes, err)
	}

	logger := logging.New(logging.Config{Level: snapshotOpts.logLevel, Output: cmd.ErrOrStderr()})
	snap, err := snapshot.Compute(base, changes,
		snapshot.WithDocumentID(snapshotOpts.id),
		snapshot.WithLogger(logger.Logger))
	if err != nil {
		return err
	}

	out, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		out = pretty.Color(pretty.Pretty(out), nil)
	} else if snapshotOpts.pretty {
		out = pretty.Pretty(out)
	} else {
		out = append(out, '\n')
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}
