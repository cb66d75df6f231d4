package cli

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// NewStatusCmd создаёт команду status.
func NewStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show dispatcher status",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := clientFn().Status()
			if err != nil {
				return err
			}

			inFlight := make([]string, len(status.InFlight))
			for i, id := range status.InFlight {
				inFlight[i] = strconv.FormatInt(id, 10)
			}

			outputFn().Print(
				[]string{"INSTANCE", "STATE", "LOCK", "POOL", "PENDING", "IN_FLIGHT"},
				[][]string{{
					status.InstanceID,
					status.State,
					strconv.FormatBool(status.LockHeld),
					strconv.Itoa(status.PoolRunning) + "/" + strconv.Itoa(status.PoolSize),
					strconv.FormatInt(status.Pending, 10),
					strings.Join(inFlight, ","),
				}},
				status,
			)
			return nil
		},
	}
}
