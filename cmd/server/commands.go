package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/umar/forum-livechat/internal/auth"
	"github.com/umar/forum-livechat/internal/config"
	"github.com/umar/forum-livechat/internal/models"
)

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:           "forumchat",
		Short:         "Ephemeral live chat rooms for the forum",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	root.SetGlobalNormalizationFunc(config.WordSepNormalizeFunc)
	config.AddFlags(root.PersistentFlags())

	root.AddCommand(newTokenCmd(v))
	return root
}

// newTokenCmd mints an identity token signed with the configured secret, for
// local testing without the forum's login service.
func newTokenCmd(v *viper.Viper) *cobra.Command {
	var who models.Identity
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an identity token for the given user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if who.ID == "" {
				return fmt.Errorf("--user-id is required")
			}
			cfg, err := config.Load(v, cmd.Flags())
			if err != nil {
				return err
			}
			token, err := auth.GenerateToken(who, cfg.JWTSecret, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&who.ID, "user-id", "", "user id to put in the token")
	cmd.Flags().StringVar(&who.Name, "name", "", "display name")
	cmd.Flags().StringVar(&who.Avatar, "avatar", "", "avatar URL")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
