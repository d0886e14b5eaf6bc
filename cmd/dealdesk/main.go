package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dealdesk/internal/app"
	"dealdesk/internal/config"
	"dealdesk/internal/db"
	"dealdesk/internal/domain"
	"dealdesk/internal/engine"
	"dealdesk/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "dealdesk",
	Short: "Dealdesk CLI",
	Long: `Dealdesk orchestrates private-equity decision workflows.
- Workflows: one per business decision (investment, divestment, strategic, operational),
  instantiated from a per-type template of stages and approval levels.
- Stages: move strictly forward through the template; completing the last one
  parks the workflow in pending_approval.
- Approvals: role-keyed sign-offs; one rejection is terminal, approval requires
  every required level.
- Insights: read-only bottleneck/prediction/recommendation derivation.
- Event log: audit trail of changes, view with 'dealdesk log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("DEALDESK")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(workflowCmd())
	rootCmd.AddCommand(typesCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func workflowCmd() *cobra.Command {
	wf := &cobra.Command{Use: "workflow", Short: "Manage decision workflows"}
	wf.AddCommand(workflowCreateCmd())
	wf.AddCommand(workflowShowCmd())
	wf.AddCommand(workflowListCmd())
	wf.AddCommand(workflowStageCmd())
	wf.AddCommand(workflowApproveCmd())
	wf.AddCommand(workflowRejectCmd())
	wf.AddCommand(workflowInsightsCmd())
	return wf
}

func workflowCreateCmd() *cobra.Command {
	var title, decisionType, priority, entityType, entityID, target, summary, risk string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a decision workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				wf, err := e.CreateWorkflow(ctx, engine.WorkflowCreateOptions{
					Title:        title,
					DecisionType: decisionType,
					Priority:     priority,
					EntityType:   entityType,
					EntityID:     entityID,
					Context: domain.WorkflowContext{
						Summary:        summary,
						RiskAssessment: domain.RiskAssessment{OverallRisk: risk},
					},
					TargetDecisionAt: target,
					ActorID:          viper.GetString("actor-id"),
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(wf)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "workflow title")
	cmd.Flags().StringVar(&decisionType, "type", "", "decision type (investment, divestment, strategic, operational)")
	cmd.Flags().StringVar(&priority, "priority", "medium", "priority (low, medium, high, critical, urgent)")
	cmd.Flags().StringVar(&entityType, "entity-type", "", "referenced entity type")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "referenced entity id")
	cmd.Flags().StringVar(&target, "target", "", "target decision timestamp (RFC3339)")
	cmd.Flags().StringVar(&summary, "summary", "", "context summary")
	cmd.Flags().StringVar(&risk, "risk", "", "overall risk (low, medium, high)")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func workflowShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				wf, err := e.Store.GetWorkflow(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(wf)
			})
		},
	}
	return cmd
}

func workflowListCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows visible to a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if userID == "" {
					userID = viper.GetString("actor-id")
				}
				items, err := e.WorkflowsForUser(ctx, userID, role)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Type", "Priority", "Stage", "Status"})
				for _, wf := range items {
					tw.AppendRow(table.Row{wf.ID, wf.Title, wf.DecisionType, wf.Priority, wf.CurrentStage.Name, wf.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to --actor-id)")
	cmd.Flags().StringVar(&role, "role", "", "approval role")
	return cmd
}

func workflowStageCmd() *cobra.Command {
	var complete bool
	var started string
	var actions []string
	cmd := &cobra.Command{
		Use:   "stage <id> <stage-id>",
		Short: "Update the workflow's current stage",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				updates := engine.StageUpdate{}
				if started != "" {
					updates.StartedAt = &started
				}
				if actions != nil {
					updates.CompletedActions = actions
				}
				if complete {
					now := time.Now().UTC().Format(time.RFC3339)
					updates.CompletedAt = &now
				}
				wf, err := e.UpdateWorkflowStage(ctx, args[0], args[1], updates)
				if err != nil {
					return err
				}
				return printJSONOrTable(wf)
			})
		},
	}
	cmd.Flags().BoolVar(&complete, "complete", false, "mark the stage completed and advance")
	cmd.Flags().StringVar(&started, "started", "", "stage start timestamp (RFC3339)")
	cmd.Flags().StringArrayVar(&actions, "action", nil, "completed action (repeatable)")
	return cmd
}

func workflowApproveCmd() *cobra.Command {
	return approvalCmd("approve", "Approve as a given role", engine.DecisionApproved)
}

func workflowRejectCmd() *cobra.Command {
	return approvalCmd("reject", "Reject as a given role", engine.DecisionRejected)
}

func approvalCmd(use, short, decision string) *cobra.Command {
	var role, comments string
	cmd := &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				wf, err := e.ProcessApproval(ctx, engine.ApprovalOptions{
					WorkflowID: args[0],
					ApproverID: viper.GetString("actor-id"),
					Role:       role,
					Decision:   decision,
					Comments:   comments,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(wf)
			})
		},
	}
	cmd.Flags().StringVar(&role, "role", "", "approval role")
	cmd.Flags().StringVar(&comments, "comments", "", "approval comments")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}

func workflowInsightsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "insights <id>",
		Short: "Derive workflow insights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ins, err := e.WorkflowInsights(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(ins)
			})
		},
	}
	return cmd
}

func typesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "List supported decision types",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Templates.DecisionTypes())
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{Use: "log", Short: "Audit event log"}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var workflowID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.WorkflowEvents(ctx, workflowID, n)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Workflow", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.TS, evt.Type, evt.WorkflowID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&workflowID, "workflow", "", "workflow id filter")
	return cmd
}

func configCmd() *cobra.Command {
	root := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	root.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default dealdesk.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config %s already exists", path)
			}
			return os.WriteFile(path, []byte(config.GenerateDefault("dealdesk")), 0o644)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg)
		},
	})
	return root
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := log.New(os.Stderr, "dealdesk ", log.LstdFlags)
			env, err := app.Open(viper.GetString("workspace"), logger)
			if err != nil {
				return err
			}
			defer env.Close()
			if addr == "" {
				addr = env.Config.Server.Addr
			}
			if basePath == "" {
				basePath = env.Config.Server.BasePath
			}
			secret := os.Getenv("DEALDESK_JWT_SECRET")
			if secret == "" {
				secret = env.Config.Server.JWTSecret
			}
			handler, err := server.New(server.Config{
				Engine:   env.Engine,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret, Logger: logger},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Dealdesk API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	env, err := app.Open(viper.GetString("workspace"), log.Default())
	if err != nil {
		return err
	}
	defer env.Close()
	return fn(ctx, env.Engine)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
