package main

import (
	"encoding/json"
	"fmt"

	"voiceguard/internal/directory"
	"voiceguard/internal/schema"

	"github.com/spf13/cobra"
)

var (
	participantID    string
	participantName  string
	participantPhone string
)

var participantCmd = &cobra.Command{
	Use:   "participant",
	Short: "Manage directory participants",
}

var participantAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create or update a participant",
	Long: `Create or update a participant in the Postgres directory.

Examples:
  tokenctl participant add --id 7003 --phone +15550007003 --name "Ana Ruiz"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		svc := directory.NewService(directory.NewPostgresRepo(db))
		ident, err := svc.Provision(ctx, directory.Identity{ID: participantID, Name: participantName, Phone: participantPhone})
		if err != nil {
			return err
		}
		return printIdentity(cmd, ident)
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Database schema",
}

var schemaApplyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Create missing tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		db, err := openDB(ctx)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := schema.Apply(ctx, db); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "applied %d statements\n", len(schema.Statements()))
		return nil
	},
}

func printIdentity(cmd *cobra.Command, ident directory.Identity) error {
	out := cmd.OutOrStdout()
	if flagJSON {
		return json.NewEncoder(out).Encode(ident)
	}
	fmt.Fprintf(out, "%s\t%s\t%s\n", ident.ID, ident.Phone, ident.Name)
	return nil
}

func init() {
	participantAddCmd.Flags().StringVar(&participantID, "id", "", "identity id")
	participantAddCmd.Flags().StringVar(&participantName, "name", "", "display name")
	participantAddCmd.Flags().StringVar(&participantPhone, "phone", "", "phone number as reported by the telephony platform")
	_ = participantAddCmd.MarkFlagRequired("id")
	_ = participantAddCmd.MarkFlagRequired("phone")

	participantCmd.AddCommand(participantAddCmd)
	schemaCmd.AddCommand(schemaApplyCmd)
}
