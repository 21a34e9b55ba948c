package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cloudboss/cloudboss/internal/cloud"
)

func newLsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls [remote-path]",
		Short: "List files and folders",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLs,
	}
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-path> [local-path]",
		Short: "Download a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE:  runGet,
	}
}

func newPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "put <local-path> [remote-path]",
		Short: "Upload a file",
		Long: `Upload one local file. Without a remote path the file goes to the root
folder under its own name; a remote path ending in "/" names the target
folder.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: runPut,
	}
}

func newMkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir <remote-path>",
		Short: "Create a folder (parent must exist)",
		Args:  cobra.ExactArgs(1),
		RunE:  runMkdir,
	}
}

// lsJSONItem is the JSON output schema for a single item in ls output.
type lsJSONItem struct {
	Name     string `json:"name"`
	IsFolder bool   `json:"is_folder"`
}

func runLs(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	remotePath := "/"
	if len(args) > 0 {
		remotePath = args[0]
	}

	s, err := NewSession(ctx, cc, sessionOptions{})
	if err != nil {
		return err
	}

	cc.Logger.Debug("ls", "path", remotePath)

	entries, err := s.Manager.List(ctx, remotePath)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printEntriesJSON(entries)
	}

	printEntriesTable(entries)

	return nil
}

func printEntriesJSON(entries []cloud.Entry) error {
	out := make([]lsJSONItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, lsJSONItem{Name: e.Name, IsFolder: e.IsDir()})
	}

	return printJSON(os.Stdout, out)
}

// printEntriesTable prints entries in the order given; Manager.List
// already sorts folders first.
func printEntriesTable(entries []cloud.Entry) {
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		name := e.Name
		if e.IsDir() {
			name += "/"
		}

		rows = append(rows, []string{name, e.Kind.String()})
	}

	printTable(os.Stdout, []string{"NAME", "TYPE"}, rows)
}

// transferOutput is the JSON schema for single-file transfers.
type transferOutput struct {
	Remote string `json:"remote"`
	Local  string `json:"local"`
	Bytes  int64  `json:"bytes,omitempty"`
}

func runGet(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	remotePath := args[0]

	localPath := ""
	if len(args) > 1 {
		localPath = args[1]
	}

	s, err := NewSession(ctx, cc, sessionOptions{})
	if err != nil {
		return err
	}

	cc.Logger.Debug("get", "remote_path", remotePath, "local_path", localPath)

	target, n, err := s.Manager.DownloadFile(ctx, remotePath, localPath)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, transferOutput{Remote: remotePath, Local: target, Bytes: n})
	}

	cc.Statusf("Downloaded %s (%s)\n", target, formatSize(n))

	return nil
}

func runPut(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	localPath := args[0]

	remotePath := ""
	if len(args) > 1 {
		remotePath = args[1]
	}

	s, err := NewSession(ctx, cc, sessionOptions{})
	if err != nil {
		return err
	}

	cc.Logger.Debug("put", "local_path", localPath, "remote_path", remotePath)

	target, err := s.Manager.UploadFile(ctx, localPath, remotePath)
	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, transferOutput{Remote: target, Local: localPath})
	}

	cc.Statusf("Uploaded %s -> %s\n", localPath, target)

	return nil
}

// mkdirOutput is the JSON schema for `mkdir --json`.
type mkdirOutput struct {
	Created string `json:"created"`
}

func runMkdir(cmd *cobra.Command, args []string) error {
	cc := cliContextFrom(cmd.Context())
	ctx := cmd.Context()

	s, err := NewSession(ctx, cc, sessionOptions{})
	if err != nil {
		return err
	}

	if err := s.Manager.CreateFolder(ctx, args[0]); err != nil {
		return err
	}

	if cc.Flags.JSON {
		return printJSON(os.Stdout, mkdirOutput{Created: args[0]})
	}

	cc.Statusf("Created %s\n", args[0])

	return nil
}
