package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/frahmantamala/audit-management/internal/core/events"
	"github.com/frahmantamala/audit-management/internal/workflow"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [trigger]",
	Short: "Publish a workflow transition event",
	Long:  `Publish a transition event to the bus and deliver the notifications it routes to`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTransition(cmd.Context(), args[0])
	},
}

var (
	eventTenantID  int64
	eventActorID   int64
	eventEntity    string
	eventEntityID  string
	eventDept      string
	eventReference string
	eventExtra     string
)

func publishTransition(ctx context.Context, trigger string) error {
	if _, ok := workflow.RuleFor(workflow.TriggerType(trigger)); !ok {
		return fmt.Errorf("unknown trigger %q, expected one of %v", trigger, workflow.Triggers())
	}

	var extra map[string]interface{}
	if eventExtra != "" {
		if err := json.Unmarshal([]byte(eventExtra), &extra); err != nil {
			return fmt.Errorf("invalid --extra json: %w", err)
		}
	}

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}
	defer deps.Close()

	event := events.NewTransitionEvent(trigger, eventTenantID, eventActorID,
		eventEntity, eventEntityID, eventDept, eventReference, extra)

	deps.Logger.Info("publishing transition", "event_type", trigger, "event_id", event.EventID())
	if err := deps.Bus.PublishSync(ctx, event); err != nil {
		return fmt.Errorf("publish %s: %w", trigger, err)
	}
	deps.Logger.Info("transition delivered", "event_id", event.EventID())
	return nil
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventTenantID, "tenant", 0, "tenant id")
	publishEventCmd.Flags().Int64Var(&eventActorID, "actor", 0, "acting user id")
	publishEventCmd.Flags().StringVar(&eventEntity, "entity-type", "audit", "entity type")
	publishEventCmd.Flags().StringVar(&eventEntityID, "entity-id", "", "entity id")
	publishEventCmd.Flags().StringVar(&eventDept, "department", "", "department name for department-scoped triggers")
	publishEventCmd.Flags().StringVar(&eventReference, "reference", "", "human readable reference")
	publishEventCmd.Flags().StringVar(&eventExtra, "extra", "", "extra context as a json object")
	_ = publishEventCmd.MarkFlagRequired("tenant")
	_ = publishEventCmd.MarkFlagRequired("actor")
	_ = publishEventCmd.MarkFlagRequired("entity-id")

	eventCmd.AddCommand(publishEventCmd)
	rootCmd.AddCommand(eventCmd)
}
