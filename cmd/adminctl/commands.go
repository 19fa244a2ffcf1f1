package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/healthdesk/admin-api/internal/app"
	"github.com/healthdesk/admin-api/internal/config"
	"github.com/healthdesk/admin-api/internal/model"
	"github.com/healthdesk/admin-api/internal/repository"
	activityService "github.com/healthdesk/admin-api/internal/service/activity"
	suspensionService "github.com/healthdesk/admin-api/internal/service/suspension"
	"github.com/healthdesk/admin-api/pkg/auth"
	"github.com/healthdesk/admin-api/pkg/logger"
	"github.com/healthdesk/admin-api/pkg/metrics"
)

// env is built lazily so that commands without storage, like token, work
// offline.
type env struct {
	cfg   *config.Config
	log   *logger.Logger
	store repository.Store
}

func (e *env) open(ctx context.Context) error {
	store, err := app.OpenStore(ctx, e.cfg, e.log)
	if err != nil {
		return err
	}
	e.store = store
	return nil
}

func (e *env) suspensions() (*suspensionService.Service, error) {
	policy, err := app.NewPolicy(e.cfg.Suspension)
	if err != nil {
		return nil, err
	}
	activitySvc := activityService.NewService(e.store.Activity())
	return suspensionService.NewService(e.store, policy, activitySvc, metrics.New("adminctl"), e.log), nil
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:           "adminctl",
		Short:         "Operator tooling for the admin API",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.log = app.NewLogger(cfg.Log)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.store != nil {
				return e.store.Close(cmd.Context())
			}
			return nil
		},
	}

	root.AddCommand(
		newMigrateCmd(e),
		newTokenCmd(e),
		newCountCmd(e),
		newExpireCmd(e),
	)
	return root
}

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the schema (postgres) or indexes (mongo)",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Opening the store applies migrations and indexes.
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "storage %s is up to date\n", e.cfg.Storage.Driver)
			return nil
		},
	}
}

func newTokenCmd(e *env) *cobra.Command {
	var (
		name string
		role string
		id   string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for an admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			actor := model.Actor{Name: name, Role: model.AdminRole(role)}
			if !actor.Role.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if id == "" {
				actor.ID = uuid.New()
			} else {
				parsed, err := uuid.Parse(id)
				if err != nil {
					return fmt.Errorf("invalid --id: %w", err)
				}
				actor.ID = parsed
			}
			if e.cfg.JWT.Secret == "" {
				return fmt.Errorf("jwt.secret is not configured")
			}

			svc := auth.NewJWTService(e.cfg.JWT.Secret, e.cfg.JWT.Issuer, time.Duration(e.cfg.JWT.ExpiryHours)*time.Hour)
			token, err := svc.GenerateAccessToken(actor)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "admin display name")
	cmd.Flags().StringVar(&role, "role", string(model.RoleAdmin), "super_admin, admin or moderator")
	cmd.Flags().StringVar(&id, "id", "", "admin id (random when empty)")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newCountCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "suspension-count DOCTOR_ID",
		Short: "Show a doctor's suspension count and threshold flags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid doctor id: %w", err)
			}
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			svc, err := e.suspensions()
			if err != nil {
				return err
			}
			summary, err := svc.GetSuspensionCount(cmd.Context(), doctorID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), summary)
		},
	}
}

func newExpireCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "expire",
		Short: "Close suspensions whose end date has passed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.open(cmd.Context()); err != nil {
				return err
			}
			svc, err := e.suspensions()
			if err != nil {
				return err
			}
			n, err := svc.ExpireDue(cmd.Context(), time.Now().UTC(), limit)
			fmt.Fprintf(cmd.OutOrStdout(), "expired %d suspensions\n", n)
			return err
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 500, "maximum records to close")
	return cmd
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
