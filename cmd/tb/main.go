package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/events"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
	"taskboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "tb",
	Short: "Taskboard CLI",
	Long: `Taskboard tracks shared tasks with per-field ownership rules.
- Workspace: your .taskboard directory holding the database.
- Tasks: work items with priority (high/medium/low) and status (pending/completed).
- Ownership: the assignee or creator can flip status; only the creator edits the rest or deletes.
- Event log: diary of changes, view with 'tb log tail'.`,
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
	viper.SetEnvPrefix("TASKBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "", "acting user id")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default taskboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage tasks"}
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskCreateCmd())
	task.AddCommand(taskUpdateCmd())
	task.AddCommand(taskDeleteCmd())
	return task
}

func taskListCmd() *cobra.Command {
	var opts engine.ListOptions
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.PrincipalID = viper.GetString("actor-id")
			if all {
				opts.Scope = engine.ScopeAll
			} else if opts.PrincipalID == "" {
				return fmt.Errorf("--actor-id required (or use --all)")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				page, err := e.ListTasks(ctx, opts)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(page)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Priority", "Status", "Due", "Assignee"})
				for _, t := range page.Tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Priority, t.Status, t.DueDate, t.AssignedTo.Name})
				}
				tw.Render()
				fmt.Printf("page %d of %d (%d total)\n", page.CurrentPage, page.TotalPages, page.Total)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "list every task, not just the actor's")
	cmd.Flags().StringVar(&opts.Status, "status", "", "status filter")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "priority filter")
	cmd.Flags().StringVar(&opts.AssignedTo, "assigned-to", "", "assignee filter (with --all)")
	cmd.Flags().StringVar(&opts.FromDate, "from", "", "due date lower bound (with --all)")
	cmd.Flags().StringVar(&opts.ToDate, "to", "", "due date upper bound (with --all)")
	cmd.Flags().StringVar(&opts.SortBy, "sort-by", "", "priority or dueDate (with --all)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			if opts.ActorID == "" {
				return fmt.Errorf("--actor-id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (YYYY-MM-DD or RFC3339)")
	cmd.Flags().StringVar(&opts.Priority, "priority", "", "high, medium or low")
	cmd.Flags().StringVar(&opts.AssignedTo, "assigned-to", "", "assignee id (defaults to actor)")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var title, description, due, priority, status, assignedTo string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID := viper.GetString("actor-id")
			if actorID == "" {
				return fmt.Errorf("--actor-id required")
			}
			patch := domain.TaskPatch{
				Title:       optionalString(title),
				Description: optionalString(description),
				DueDate:     optionalString(due),
				Priority:    optionalString(priority),
				Status:      optionalString(status),
				AssignedTo:  optionalString(assignedTo),
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.UpdateTask(ctx, args[0], actorID, patch)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&description, "description", "", "new description")
	cmd.Flags().StringVar(&due, "due", "", "new due date")
	cmd.Flags().StringVar(&priority, "priority", "", "new priority")
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().StringVar(&assignedTo, "assigned-to", "", "new assignee id")
	return cmd
}

func taskDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actorID := viper.GetString("actor-id")
			if actorID == "" {
				return fmt.Errorf("--actor-id required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.DeleteTask(ctx, args[0], actorID); err != nil {
					return err
				}
				fmt.Println("Task removed")
				return nil
			})
		},
	}
}

func userCmd() *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}
	user.AddCommand(userAddCmd())
	user.AddCommand(userListCmd())
	return user
}

func userAddCmd() *cobra.Command {
	var name, email, role string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				u, err := e.CreateUser(ctx, name, email, role)
				if err != nil {
					return err
				}
				return printJSONOrTable(u)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", "user", "admin or user")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func userListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListUsers(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Email", "Role"})
				for _, u := range items {
					tw.AppendRow(table.Row{u.ID, u.Name, u.Email, u.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func apikeyCmd() *cobra.Command {
	key := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	key.AddCommand(apikeyAddCmd())
	key.AddCommand(apikeyListCmd())
	key.AddCommand(apikeyRemoveCmd())
	return key
}

func apikeyAddCmd() *cobra.Command {
	var userID, name string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Issue an API key for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				if _, err := r.GetUser(ctx, userID); err != nil {
					return err
				}
				raw := uuid.NewString()
				key := repo.APIKey{
					ID:      uuid.NewString(),
					UserID:  userID,
					Name:    name,
					KeyHash: repo.HashAPIKey(raw),
				}
				if err := r.InsertAPIKey(ctx, key); err != nil {
					return err
				}
				// The raw key is only shown once.
				fmt.Println(raw)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "user id")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	_ = cmd.MarkFlagRequired("user-id")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				keys, err := r.ListAPIKeys(ctx, userID)
				if err != nil {
					return err
				}
				return printJSONOrTable(keys)
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "filter by user")
	return cmd
}

func apikeyRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Event log"}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := events.Latest(ctx, e.DB, n, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert demo users and tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				alice, err := e.CreateUser(ctx, "Alice", "alice@example.com", "admin")
				if err != nil {
					return err
				}
				bob, err := e.CreateUser(ctx, "Bob", "bob@example.com", "user")
				if err != nil {
					return err
				}
				due := time.Now().AddDate(0, 0, 7).UTC().Format("2006-01-02")
				seeds := []engine.TaskCreateOptions{
					{Title: "Write onboarding guide", Description: "Cover setup and first task", DueDate: due, Priority: domain.PriorityHigh, AssignedTo: bob.ID, ActorID: alice.ID},
					{Title: "Review backlog", Description: "Close stale items", DueDate: due, ActorID: alice.ID},
					{Title: "Fix login timeout", Description: "Session expires too fast", DueDate: due, Priority: domain.PriorityLow, AssignedTo: alice.ID, ActorID: bob.ID},
				}
				for _, s := range seeds {
					if _, err := e.CreateTask(ctx, s); err != nil {
						return err
					}
				}
				fmt.Println("seeded 2 users and 3 tasks")
				return nil
			})
		},
	}
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			schema, err := migrate.Version(conn)
			if err != nil {
				return err
			}
			cfg, err := config.LoadOptional(workspace)
			if err != nil {
				return err
			}
			if cfg == nil {
				cfg = config.Default()
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			secret := os.Getenv("TASKBOARD_JWT_SECRET")
			if secret == "" {
				secret = cfg.Auth.JWTSecret
			}
			if secret == "" {
				return fmt.Errorf("TASKBOARD_JWT_SECRET or auth.jwt_secret is required for bearer auth")
			}
			e := engine.New(conn)
			authCfg := server.AuthConfig{
				JWTSecret: secret,
				TokenTTL:  time.Duration(cfg.Auth.TokenTTLMin) * time.Minute,
				DevLogin:  cfg.Auth.DevLogin,
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Taskboard API on http://%s%s (schema v%d, OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, schema, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, engine.New(conn))
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	return fn(ctx, repo.Repo{DB: conn})
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

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
