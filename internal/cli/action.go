package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewActionCmd создаёт группу команд для action_log.
func NewActionCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "action",
		Short: "Inspect and append to the action log",
	}

	cmd.AddCommand(
		newActionListCmd(clientFn, outputFn),
		newActionShowCmd(clientFn, outputFn),
		newActionLogCmd(clientFn, outputFn),
	)

	return cmd
}

var actionHeaders = []string{"ID", "NAMESPACE", "ACTION", "RECORD", "EXECUTED", "CREATED"}

func actionRow(a ActionResponse) []string {
	return []string{
		strconv.FormatInt(a.ID, 10),
		strconv.FormatInt(a.NamespaceID, 10),
		a.Action,
		strconv.FormatInt(a.RecordID, 10),
		strconv.FormatBool(a.Executed),
		a.CreatedAt,
	}
}

func newActionListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var pending bool
	var afterID int64
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List action log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := clientFn().ListActions(ListActionsOpts{
				PendingOnly: pending,
				AfterID:     afterID,
				Limit:       limit,
			})
			if err != nil {
				return err
			}

			rows := make([][]string, len(actions))
			for i, a := range actions {
				rows[i] = actionRow(a)
			}

			outputFn().Print(actionHeaders, rows, actions)
			return nil
		},
	}

	cmd.Flags().BoolVar(&pending, "pending", false, "Only entries not executed yet")
	cmd.Flags().Int64Var(&afterID, "after-id", 0, "Only entries with id greater than this")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newActionShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show an action log entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid action id %q", args[0])
			}

			action, err := clientFn().GetAction(id)
			if err != nil {
				return err
			}

			outputFn().Print(actionHeaders, [][]string{actionRow(*action)}, action)
			return nil
		},
	}
}

func newActionLogCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var namespaceID, recordID int64

	cmd := &cobra.Command{
		Use:   "log ACTION",
		Short: "Append an action to the log",
		Long: "Append an action to the log. ACTION is one of: archive, unarchive, " +
			"mark_read, mark_unread, star, unstar, mark_spam, unmark_spam, mark_trash, " +
			"unmark_trash, send_draft, save_draft, delete_draft, send_directly.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			action, err := clientFn().LogAction(LogActionRequest{
				NamespaceID: namespaceID,
				Action:      args[0],
				RecordID:    recordID,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Action logged: %d", action.ID))
			out.Print(actionHeaders, [][]string{actionRow(*action)}, action)
			return nil
		},
	}

	cmd.Flags().Int64Var(&namespaceID, "namespace", 0, "Namespace ID (required)")
	cmd.Flags().Int64Var(&recordID, "record", 0, "Record ID (required)")
	_ = cmd.MarkFlagRequired("namespace")
	_ = cmd.MarkFlagRequired("record")

	return cmd
}
