package cli

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/matrix"
	"github.com/felixgeelhaar/mnemo/internal/server"
)

var matrixCmd = &cobra.Command{
	Use:   "matrix",
	Short: "Answer in Matrix rooms",
	Long: `Connects to the homeserver in the matrix section of the config and answers
messages. Each room is its own conversation. Store the access token with
"mnemo config set matrix.api_key <token>" or set MATRIX_ACCESS_TOKEN.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		e, err := openEnv(newObserver(os.Stderr))
		if err != nil {
			return err
		}
		defer e.close()

		mc := e.cfg.Matrix
		if mc.Homeserver == "" {
			return errors.New("matrix.homeserver is not configured")
		}
		token, err := e.keys.Resolve("matrix")
		if err != nil {
			return err
		}
		if token == "" {
			return errors.New("no Matrix access token: run `mnemo config set matrix.api_key <token>`")
		}

		m, err := e.model()
		if err != nil {
			return err
		}
		reg := e.registry(m)
		server.Track(reg.Bus(), e.store, e.obs)

		client, err := matrix.New(matrix.Config{
			Homeserver:  mc.Homeserver,
			UserID:      mc.UserID,
			AccessToken: token,
			Rooms:       mc.Rooms,
		}, e.store, e.obs)
		if err != nil {
			return err
		}
		bridge := matrix.NewBridge(reg, client, mc.UserID, mc.Rooms, e.obs)
		e.obs.Log().Info().Str("homeserver", mc.Homeserver).Str("user", mc.UserID).Msg("starting Matrix bridge")
		return client.Run(ctx, bridge)
	},
}

func init() {
	RootCmd.AddCommand(matrixCmd)
}
