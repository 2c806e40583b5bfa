package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/store"
)

var listCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List past conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		return listConversations(st, cmd.OutOrStdout())
	},
}

func init() {
	RootCmd.AddCommand(listCmd)
}

func listConversations(st store.Storage, out io.Writer) error {
	convs, err := st.ListConversations()
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Fprintln(out, "(no conversations yet)")
		return nil
	}
	for _, c := range convs {
		fmt.Fprintf(out, "%-20s %4d turns  started %s  last %s\n",
			c.ID, c.Turns,
			c.CreatedAt.Local().Format("2006-01-02 15:04"),
			c.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}
