package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/trustflow/service-core/internal/config"
	"github.com/trustflow/service-core/internal/dashboard"
	dashboardrepo "github.com/trustflow/service-core/internal/dashboard/repo"
	"github.com/trustflow/service-core/internal/email"
	"github.com/trustflow/service-core/internal/issue"
	issuerepo "github.com/trustflow/service-core/internal/issue/repo"
	"github.com/trustflow/service-core/internal/project"
	projectrepo "github.com/trustflow/service-core/internal/project/repo"
	"github.com/trustflow/service-core/internal/role"
	rolerepo "github.com/trustflow/service-core/internal/role/repo"
	"github.com/trustflow/service-core/internal/router"
	"github.com/trustflow/service-core/internal/session"
	sessionrepo "github.com/trustflow/service-core/internal/session/repo"
	"github.com/trustflow/service-core/internal/settings"
	settingsrepo "github.com/trustflow/service-core/internal/settings/repo"
	"github.com/trustflow/service-core/internal/user"
	userrepo "github.com/trustflow/service-core/internal/user/repo"
	"github.com/trustflow/service-core/pkg/database"
	"github.com/trustflow/service-core/pkg/utilities"
)

func main() {
	// load .env if present; best-effort
	_ = godotenv.Load()

	lg, err := utilities.InitLogger(utilities.LogConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()
	sugar := lg.Sugar()
	sugar.Info("starting trustflow api")

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("config: %v", err)
	}

	db, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// repos
	roleRepo := rolerepo.NewRoleRepo(db)
	userRepo := userrepo.NewUserRepo(db)
	sessionRepo := sessionrepo.NewSessionRepo(db)
	projectRepo := projectrepo.NewProjectRepo(db)
	issueRepo := issuerepo.NewIssueRepo(db)
	settingsRepo := settingsrepo.NewSettingsRepo(db)
	dashboardRepo := dashboardrepo.NewDashboardRepo(db)

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	for name, ensure := range map[string]func(context.Context) error{
		"roles":     roleRepo.EnsureTable,
		"users":     userRepo.EnsureTable,
		"sessions":  sessionRepo.EnsureTable,
		"projects":  projectRepo.EnsureTable,
		"issues":    issueRepo.EnsureTable,
		"settings":  settingsRepo.EnsureTable,
		"dashboard": dashboardRepo.EnsureTable,
	} {
		if err := ensure(initCtx); err != nil {
			sugar.Fatalf("ensure %s schema: %v", name, err)
		}
	}

	// services
	roleSvc := role.NewService(roleRepo)
	userSvc := user.NewService(userRepo, roleSvc, user.BcryptHasher{})
	sessionSvc := session.NewService(sessionRepo, userSvc, cfg.SessionSecret, cfg.SessionTTL, cfg.CookieName, cfg.CookieSecure)
	projectSvc := project.NewService(projectRepo)
	issueSvc := issue.NewService(issueRepo)
	settingsSvc := settings.NewService(settingsRepo)
	emailSvc := email.NewService(settingsSvc, nil)
	dashboardSvc := dashboard.NewService(dashboardRepo, sugar)

	if created, err := userSvc.EnsureSeedAdmin(ctx, roleSvc, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		sugar.Fatalf("seed admin: %v", err)
	} else if created {
		sugar.Infow("seeded bootstrap admin", "username", cfg.AdminUsername)
	}

	handlers := router.Handlers{
		Users:     user.NewHandler(userSvc, sessionSvc, sugar),
		Roles:     role.NewHandler(roleSvc, sugar),
		Projects:  project.NewHandler(projectSvc, dashboardSvc, sugar),
		Issues:    issue.NewHandler(issueSvc, dashboardSvc, sugar),
		Settings:  settings.NewHandler(settingsSvc, sugar),
		Email:     email.NewHandler(emailSvc, userSvc, cfg.ConsoleBaseURL, sugar),
		Dashboard: dashboard.NewHandler(dashboardSvc, sugar),
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddress(),
		Handler: router.RegisterRoutes(handlers, sessionSvc, cfg.CORSOrigins, sugar),
	}

	go func() {
		sugar.Infow("listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	// expired sessions pile up otherwise; sweep hourly
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := sessionRepo.DeleteExpired(ctx, time.Now().UTC()); err != nil {
					sugar.Warnw("session sweep failed", "err", err)
				} else if n > 0 {
					sugar.Debugw("session sweep", "removed", n)
				}
			}
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}
