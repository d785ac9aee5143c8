package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the active rule registry",
	Long:  "Prints the method names each rule matches and the command-to-tool table used by the tool-usage rule.",
	RunE:  runRules,
}

func init() {
	rulesCmd.Flags().StringVar(&flagRules, "rules", "", "YAML rule registry replacing the embedded one")
}

func runRules(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}

	if flagFormat == "json" {
		type toolEntry struct {
			Command     string `json:"command"`
			Tool        string `json:"tool"`
			Description string `json:"description,omitempty"`
		}
		var tools []toolEntry
		for _, command := range reg.Tools() {
			t, _ := reg.Tool(command)
			tools = append(tools, toolEntry{Command: command, Tool: t.Class, Description: t.Description})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"tools": tools})
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COMMAND\tTOOL\tDESCRIPTION")
	for _, command := range reg.Tools() {
		t, _ := reg.Tool(command)
		fmt.Fprintf(tw, "%s\t%s\t%s\n", command, t.Class, t.Description)
	}
	return tw.Flush()
}
