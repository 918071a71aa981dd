package main

import (
	"fmt"
	"strings"

	"github.com/metalagman/pllm/internal/keys"
	"github.com/spf13/cobra"
)

func keysCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List the key tokens the model may use",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprint(cmd.OutOrStdout(), keyHelp())
		},
	}
}

func keyHelp() string {
	var b strings.Builder
	b.WriteString("Named keys:\n")
	for _, name := range keys.Names() {
		fmt.Fprintf(&b, "  %s\n", name)
	}
	b.WriteString("\nModified keys:\n")
	for _, mod := range []keys.Modifier{keys.Ctrl, keys.Alt, keys.Shift} {
		fmt.Fprintf(&b, "  %s\n", keys.Modified(mod, 'x'))
	}
	b.WriteString("\nAny other single character is typed as is.\n")
	return b.String()
}
