package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"actionboard/internal/app"
	"actionboard/internal/board"
	"actionboard/internal/calendar"
	"actionboard/internal/config"
	"actionboard/internal/db"
	"actionboard/internal/domain"
	"actionboard/internal/engine"
	"actionboard/internal/intent"
	"actionboard/internal/repo"
	"actionboard/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ab",
	Short: "Actionboard CLI",
	Long: `Actionboard plans actions for partners on a calendar and a kanban board.
- Actions: dated work items with a category, a state, a priority, a partner and responsibles.
- States run idea -> do -> doing -> review -> done -> finished.
- Reference data (areas, categories, states, priorities) is seeded from actionboard.yml on first use.
- Views: month, week and day calendars, a kanban board, and overdue/today/tomorrow/urgent lists.
- Event log: every change is recorded, view it with 'ab log tail'.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if viper.GetString("database-driver") != "" && viper.GetString("database-driver") != "sqlite" {
			return nil
		}
		_, err := db.EnsureWorkspace(viper.GetString("workspace"))
		return err
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ACTIONBOARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor identifier recorded in the event log")
	flags.String("database-driver", "sqlite", "database driver (sqlite, postgres)")
	flags.String("database-dsn", "", "database dsn (required for postgres)")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	for _, name := range []string{"workspace", "json", "actor-id", "database-driver", "database-dsn", "log-level"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(actionCmd())
	rootCmd.AddCommand(boardCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(partnerCmd())
	rootCmd.AddCommand(personCmd())
	rootCmd.AddCommand(referenceCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default actionboard.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fmt.Printf("Wrote %s and seeded reference data\n", path)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func actionCmd() *cobra.Command {
	act := &cobra.Command{Use: "action", Short: "Manage actions"}
	act.AddCommand(actionCreateCmd())
	act.AddCommand(actionUpdateCmd())
	act.AddCommand(actionDeleteCmd())
	act.AddCommand(actionDuplicateCmd())
	act.AddCommand(actionListCmd())
	act.AddCommand(actionGetCmd())
	return act
}

// actionFields are the form keys shared by create and update.
var actionFields = []string{"title", "description", "category", "state", "priority", "date", "partner", "responsibles", "caption", "files"}

func addActionFlags(cmd *cobra.Command, values map[string]*string) {
	for _, name := range actionFields {
		v := new(string)
		values[name] = v
		usage := name
		switch name {
		case "date":
			usage = "date, RFC3339 or YYYY-MM-DD[THH:MM] in the configured timezone"
		case "responsibles", "files":
			usage = name + ", comma separated"
		}
		cmd.Flags().StringVar(v, name, "", usage)
	}
}

func applyMutation(cmd *cobra.Command, form map[string]string) error {
	return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
		m, err := intent.ParseInLocation(form, e.Config.Location())
		if err != nil {
			return err
		}
		a, err := e.Apply(ctx, m, viper.GetString("actor-id"))
		if err != nil {
			return err
		}
		return printAction(a)
	})
}

func actionCreateCmd() *cobra.Command {
	var id string
	values := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an action",
		RunE: func(cmd *cobra.Command, args []string) error {
			form := map[string]string{"intent": string(intent.KindCreate), "id": id}
			for name, v := range values {
				if *v != "" {
					form[name] = *v
				}
			}
			return applyMutation(cmd, form)
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "action id (generated when empty)")
	addActionFlags(cmd, values)
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func actionUpdateCmd() *cobra.Command {
	var archived bool
	values := map[string]*string{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update fields of an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			form := map[string]string{"intent": string(intent.KindUpdate), "id": args[0]}
			for name, v := range values {
				if cmd.Flags().Changed(name) {
					form[name] = *v
				}
			}
			if cmd.Flags().Changed("archived") {
				form["archived"] = fmt.Sprintf("%t", archived)
			}
			return applyMutation(cmd, form)
		},
	}
	addActionFlags(cmd, values)
	cmd.Flags().BoolVar(&archived, "archived", false, "archive or unarchive")
	return cmd
}

func actionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete an action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyMutation(cmd, map[string]string{"intent": string(intent.KindDelete), "id": args[0]})
		},
	}
}

func actionDuplicateCmd() *cobra.Command {
	var newID string
	cmd := &cobra.Command{
		Use:   "duplicate <source-id>",
		Short: "Copy an action under a new id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return applyMutation(cmd, map[string]string{"intent": string(intent.KindDuplicate), "source_id": args[0], "new_id": newID})
		},
	}
	cmd.Flags().StringVar(&newID, "new-id", "", "id of the copy (generated when empty)")
	return cmd
}

type filterFlags struct {
	from, to, responsible, partner, category, state string
	archived                                        bool
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.from, "from", "", "inclusive lower date bound")
	cmd.Flags().StringVar(&f.to, "to", "", "exclusive upper date bound")
	cmd.Flags().StringVar(&f.responsible, "responsible", "", "responsible person id")
	cmd.Flags().StringVar(&f.partner, "partner", "", "partner slug")
	cmd.Flags().StringVar(&f.category, "category", "", "category slug")
	cmd.Flags().StringVar(&f.state, "state", "", "state slug")
	cmd.Flags().BoolVar(&f.archived, "archived", false, "only archived (true) or only active (false)")
}

func (f *filterFlags) build(cmd *cobra.Command, loc *time.Location) (repo.ActionFilter, error) {
	out := repo.ActionFilter{Responsible: f.responsible, Partner: f.partner, Category: f.category, State: f.state}
	if f.from != "" {
		t, err := intent.ParseDate(f.from, loc)
		if err != nil {
			return out, fmt.Errorf("invalid --from: %w", err)
		}
		out.From = &t
	}
	if f.to != "" {
		t, err := intent.ParseDate(f.to, loc)
		if err != nil {
			return out, fmt.Errorf("invalid --to: %w", err)
		}
		out.To = &t
	}
	if cmd.Flags().Changed("archived") {
		out.Archived = &f.archived
	}
	return out, nil
}

func actionListCmd() *cobra.Command {
	var f filterFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored actions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				filter, err := f.build(cmd, e.Config.Location())
				if err != nil {
					return err
				}
				items, err := e.Repo.ListActions(ctx, filter)
				if err != nil {
					return err
				}
				return printActions(items, e.Config.Location())
			})
		},
	}
	f.register(cmd)
	return cmd
}

func actionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.Repo.GetAction(ctx, args[0])
				if err != nil {
					return err
				}
				return printAction(a)
			})
		},
	}
}

type viewFlags struct {
	filter filterFlags
	sort   string
	desc   bool
	person string
}

func (v *viewFlags) register(cmd *cobra.Command) {
	v.filter.register(cmd)
	cmd.Flags().StringVar(&v.sort, "sort", "", "sort key (state, priority, time)")
	cmd.Flags().BoolVar(&v.desc, "desc", false, "reverse the sort order")
	cmd.Flags().StringVar(&v.person, "as", "", "apply role gating and partner visibility for this person")
}

func buildView(cmd *cobra.Command, v *viewFlags, kind engine.ViewKind, anchor string, fn func(engine.View, *time.Location) error) error {
	return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
		loc := e.Config.Location()
		filter, err := v.filter.build(cmd, loc)
		if err != nil {
			return err
		}
		req := engine.ViewRequest{View: kind, Filter: filter, Desc: v.desc, PersonID: v.person}
		if req.Sort, err = board.ParseSortKey(v.sort); err != nil {
			return err
		}
		if anchor != "" {
			if req.Anchor, err = parseAnchor(kind, anchor, loc); err != nil {
				return err
			}
		}
		view, err := e.View(ctx, req)
		if err != nil {
			return err
		}
		if viper.GetBool("json") {
			return printJSON(view)
		}
		return fn(view, loc)
	})
}

func parseAnchor(kind engine.ViewKind, raw string, loc *time.Location) (time.Time, error) {
	if kind == engine.ViewMonth {
		if t, err := calendar.ParseMonth(raw, loc); err == nil {
			return t, nil
		}
	}
	t, err := intent.ParseDate(raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid anchor %q", raw)
	}
	return t, nil
}

func boardCmd() *cobra.Command {
	var v viewFlags
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Kanban board, one column per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return buildView(cmd, &v, engine.ViewKanban, "", func(view engine.View, loc *time.Location) error {
				for _, g := range view.Groups {
					fmt.Printf("%s (%d)\n", strings.ToUpper(g.Key), len(g.Actions))
					for _, a := range g.Actions {
						fmt.Printf("  %s  %-30s %s [%s]\n", a.Date.In(loc).Format("2006-01-02"), a.Title, a.Partner, a.Priority)
					}
				}
				return nil
			})
		},
	}
	v.register(cmd)
	return cmd
}

func calendarCmd() *cobra.Command {
	cal := &cobra.Command{Use: "calendar", Short: "Calendar views"}
	for _, sub := range []struct {
		kind  engine.ViewKind
		short string
		flag  string
	}{
		{engine.ViewMonth, "Month grid, whole weeks", "month to show, YYYY-MM"},
		{engine.ViewWeek, "One week", "any day inside the week"},
		{engine.ViewDay, "One day by hour", "day to show"},
	} {
		sub := sub
		var v viewFlags
		var anchor string
		cmd := &cobra.Command{
			Use:   string(sub.kind),
			Short: sub.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return buildView(cmd, &v, sub.kind, anchor, func(view engine.View, loc *time.Location) error {
					if sub.kind == engine.ViewDay {
						return printHours(view)
					}
					return printDays(view, loc)
				})
			},
		}
		v.register(cmd)
		cmd.Flags().StringVar(&anchor, "at", "", sub.flag)
		cal.AddCommand(cmd)
	}
	return cal
}

func listCmd() *cobra.Command {
	lst := &cobra.Command{Use: "list", Short: "Derived action lists"}
	for _, sub := range []struct {
		name  string
		short string
		pick  func(engine.View) []domain.Action
	}{
		{"overdue", "Delayed and unfinished", func(v engine.View) []domain.Action { return v.Sets.Overdue }},
		{"today", "Scheduled today", func(v engine.View) []domain.Action { return v.Sets.Today }},
		{"tomorrow", "Scheduled tomorrow", func(v engine.View) []domain.Action { return v.Sets.Tomorrow }},
		{"week", "Scheduled this week", func(v engine.View) []domain.Action { return v.Sets.ThisWeek }},
		{"upcoming", "From now on, unfinished", func(v engine.View) []domain.Action { return v.Sets.Upcoming }},
		{"urgent", "High priority, unfinished", func(v engine.View) []domain.Action { return v.Sets.Urgent }},
		{"feed", "Content categories", func(v engine.View) []domain.Action { return v.Sets.Feed }},
	} {
		sub := sub
		var v viewFlags
		cmd := &cobra.Command{
			Use:   sub.name,
			Short: sub.short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
					loc := e.Config.Location()
					filter, err := v.filter.build(cmd, loc)
					if err != nil {
						return err
					}
					req := engine.ViewRequest{View: engine.ViewDashboard, Filter: filter, PersonID: v.person}
					if sub.name == "feed" {
						req.View = engine.ViewFeed
					}
					view, err := e.View(ctx, req)
					if err != nil {
						return err
					}
					return printActions(sub.pick(view), loc)
				})
			},
		}
		v.register(cmd)
		lst.AddCommand(cmd)
	}
	return lst
}

func partnerCmd() *cobra.Command {
	var p domain.Partner
	var users string
	cmd := &cobra.Command{
		Use:   "partner <slug>",
		Short: "Create or replace a partner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.Slug = args[0]
			p.Users = splitList(users)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.UpsertPartner(ctx, p, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&p.Title, "title", "", "partner title")
	cmd.Flags().StringVar(&p.Short, "short", "", "short label")
	cmd.Flags().StringVar(&p.Background, "background", "", "background color")
	cmd.Flags().StringVar(&p.Foreground, "foreground", "", "foreground color")
	cmd.Flags().StringVar(&users, "users", "", "person ids allowed to see the partner, comma separated")
	cmd.Flags().BoolVar(&p.Archived, "archived", false, "archive the partner")
	cmd.Flags().IntVar(&p.SortOrder, "sort", 0, "sort order")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func personCmd() *cobra.Command {
	var p domain.Person
	cmd := &cobra.Command{
		Use:   "person <id>",
		Short: "Create or replace a person",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p.ID = args[0]
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				out, err := e.UpsertPerson(ctx, p, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&p.Name, "name", "", "display name")
	cmd.Flags().StringVar(&p.Short, "short", "", "short name")
	cmd.Flags().StringVar(&p.Initials, "initials", "", "initials")
	cmd.Flags().StringVar(&p.Image, "image", "", "avatar url")
	cmd.Flags().BoolVar(&p.Admin, "admin", false, "admins see every section and partner")
	cmd.Flags().IntVar(&p.Role, "role", 0, "numeric role compared against section minimums")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func referenceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reference",
		Short: "Show lookup tables, partners and people",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ref, err := e.Repo.LoadReference(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(ref)
				}
				tw := newTable(table.Row{"Table", "Slug", "Title", "Order"})
				for _, c := range ref.Categories {
					tw.AppendRow(table.Row{"category", c.Slug, c.Title, c.SortOrder})
				}
				for _, s := range ref.States {
					tw.AppendRow(table.Row{"state", s.Slug, s.Title, s.SortOrder})
				}
				for _, p := range ref.Priorities {
					tw.AppendRow(table.Row{"priority", p.Slug, p.Title, p.SortOrder})
				}
				for _, p := range ref.Partners {
					tw.AppendRow(table.Row{"partner", p.Slug, p.Title, p.SortOrder})
				}
				for _, p := range ref.People {
					tw.AppendRow(table.Row{"person", p.ID, p.Name, p.Role})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Count actions per state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				counts, err := e.Repo.CountActionsByState(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(counts)
				}
				tw := newTable(table.Row{"State", "Actions"})
				for _, s := range domain.StateOrder {
					tw.AppendRow(table.Row{s, counts[s]})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func logCmd() *cobra.Command {
	log := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "Every action, partner, person and reference change in order.",
	}
	log.AddCommand(logTailCmd())
	return log
}

func logTailCmd() *cobra.Command {
	var n int
	var f repo.EventFilter
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := newTable(table.Row{"ID", "TS", "Type", "Entity", "Actor"})
				for _, evt := range events {
					tw.AppendRow(table.Row{evt.ID, evt.TS, evt.Type, evt.EntityKind + "/" + evt.EntityID, evt.ActorID})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&f.Type, "type", "", "event type filter")
	cmd.Flags().StringVar(&f.EntityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&f.EntityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var allowHeader, anonymous bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				authCfg := server.AuthConfig{
					JWTSecret:         viper.GetString("jwt-secret"),
					AllowPersonHeader: allowHeader,
					Anonymous:         anonymous,
				}
				if authCfg.JWTSecret == "" && !allowHeader && !anonymous {
					return fmt.Errorf("ACTIONBOARD_JWT_SECRET is required unless --allow-person-header or --anonymous is set")
				}
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg, Logger: e.Logger})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				waitHooks := server.StartWebhooks(ctx, e, e.Logger)
				defer waitHooks()
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving Actionboard API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&allowHeader, "allow-person-header", false, "trust the X-Person-Id header (local use only)")
	cmd.Flags().BoolVar(&anonymous, "anonymous", false, "serve requests without identity, ungated")
	_ = viper.BindEnv("jwt-secret", "ACTIONBOARD_JWT_SECRET")
	return cmd
}

// --- helpers ---

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()
	workspace := viper.GetString("workspace")
	e, err := app.Open(ctx, app.Options{
		Workspace: workspace,
		DB: db.Config{
			Workspace: workspace,
			Driver:    viper.GetString("database-driver"),
			DSN:       viper.GetString("database-dsn"),
		},
		Logger: logger,
	}, viper.GetString("actor-id"))
	if err != nil {
		return err
	}
	defer e.DB.Close()
	return fn(ctx, e)
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(header)
	return tw
}

func printActions(items []domain.Action, loc *time.Location) error {
	if viper.GetBool("json") {
		return printJSON(items)
	}
	tw := newTable(table.Row{"ID", "Date", "Title", "State", "Priority", "Partner", "Category", "Responsibles"})
	for _, a := range items {
		tw.AppendRow(table.Row{a.ID, a.Date.In(loc).Format("2006-01-02 15:04"), a.Title, a.State, a.Priority, a.Partner, a.Category, strings.Join(a.Responsibles, ",")})
	}
	tw.Render()
	return nil
}

func printAction(a domain.Action) error {
	return printJSONOrTable(a)
}

func printDays(view engine.View, loc *time.Location) error {
	tw := newTable(table.Row{"Day", "", "Actions"})
	for _, d := range view.Days {
		marker := ""
		if !d.InMonth {
			marker = "-"
		}
		if calendar.SameDay(d.Date, view.Now) {
			marker = "*"
		}
		titles := make([]string, 0, len(d.Actions))
		for _, a := range d.Actions {
			titles = append(titles, fmt.Sprintf("%s %s", a.Date.In(loc).Format("15:04"), a.Title))
		}
		tw.AppendRow(table.Row{d.Date.Format("Mon 02 Jan"), marker, strings.Join(titles, "\n")})
	}
	tw.Render()
	return nil
}

func printHours(view engine.View) error {
	tw := newTable(table.Row{"Hour", "Actions"})
	for _, h := range view.Hours {
		if len(h.Actions) == 0 {
			continue
		}
		titles := make([]string, 0, len(h.Actions))
		for _, a := range h.Actions {
			titles = append(titles, fmt.Sprintf("%s [%s]", a.Title, a.State))
		}
		tw.AppendRow(table.Row{fmt.Sprintf("%02d:00", h.Hour), strings.Join(titles, "\n")})
	}
	tw.Render()
	return nil
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

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
