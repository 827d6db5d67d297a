package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/frahmantamala/audit-management/internal/permission"
	"github.com/spf13/cobra"
)

var permissionCmd = &cobra.Command{
	Use:   "permission",
	Short: "Inspect permission resolution",
}

var checkPermissionCmd = &cobra.Command{
	Use:   "check [user-id] [module:action]",
	Short: "Explain how a capability resolves for a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var userID int64
		if _, err := fmt.Sscan(args[0], &userID); err != nil || userID <= 0 {
			return fmt.Errorf("invalid user id %q", args[0])
		}
		return explainPermission(cmd.Context(), userID, args[1])
	},
}

var recipientsCmd = &cobra.Command{
	Use:   "holders [tenant-id] [module:action]",
	Short: "List the members of a tenant holding a capability",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var tenantID int64
		if _, err := fmt.Sscan(args[0], &tenantID); err != nil || tenantID <= 0 {
			return fmt.Errorf("invalid tenant id %q", args[0])
		}
		return listHolders(cmd.Context(), tenantID, args[1])
	},
}

var holdersDepartment string

func explainPermission(ctx context.Context, userID int64, capability string) error {
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	principal, err := deps.Permissions.LoadPrincipal(ctx, userID)
	if err != nil {
		return err
	}
	decision, err := deps.Resolver.Resolve(ctx, *principal, capability)
	if err != nil {
		return err
	}
	return printJSON(decision)
}

func listHolders(ctx context.Context, tenantID int64, raw string) error {
	deps, err := initializeDependencies(ctx)
	if err != nil {
		return err
	}
	defer deps.Close()

	capability, err := permission.ParseCapability(raw)
	if err != nil {
		return err
	}
	recipients, err := deps.Finder.FindPrincipalsWithCapability(ctx, tenantID, capability.Module, capability.Action, holdersDepartment)
	if err != nil {
		return err
	}
	return printJSON(recipients)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	recipientsCmd.Flags().StringVar(&holdersDepartment, "department", "", "limit to one department")

	permissionCmd.AddCommand(checkPermissionCmd)
	permissionCmd.AddCommand(recipientsCmd)
	rootCmd.AddCommand(permissionCmd)
}
