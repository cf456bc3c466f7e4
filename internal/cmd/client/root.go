package client

import (
	"github.com/spf13/cobra"
)

// AddCommands registers the record, erase and query commands on root.
func AddCommands(root *cobra.Command) {
	root.AddCommand(NewRecordCommand(), NewEraseCommand(), NewQueryCommand())
}

// NewRoot constructs a root Cobra command holding only the client commands.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "datalog",
		Short: "datalog client commands",
	}
	AddCommands(root)
	return root
}
