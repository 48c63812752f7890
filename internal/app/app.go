// Package app provides application initialization and dependency wiring.
//
// App is the container that assembles the model provider, image search,
// exchange store, orchestrator, and HTTP server from configuration.
// Call Setup to build it and Close to release everything, including
// waiting for detached transcript writes still in flight.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/project-o/assist/internal/api"
	"github.com/project-o/assist/internal/config"
	"github.com/project-o/assist/internal/exchange"
	"github.com/project-o/assist/internal/log"
	"github.com/project-o/assist/internal/orchestrator"
	"github.com/project-o/assist/internal/provider"
	"github.com/project-o/assist/internal/unsplash"
)

// closeWait bounds how long Close waits for detached persistence
// writes before giving up.
const closeWait = 15 * time.Second

// App is the core application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Pool         *pgxpool.Pool
	Provider     *provider.Provider
	Unsplash     *unsplash.Client
	Store        *exchange.Store
	Orchestrator *orchestrator.Orchestrator
	Server       *api.Server

	// Lifecycle management
	wg          sync.WaitGroup     // Tracks detached persistence writes
	bgCancel    context.CancelFunc // Cancels the background write context
	otelCleanup func()
}

// Close gracefully shuts down all resources. Detached exchange writes
// get closeWait to finish before the background context is canceled.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	// 1. Wait for in-flight transcript writes, bounded
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(closeWait):
		if a.Logger != nil {
			a.Logger.Warn("timed out waiting for pending exchange writes")
		}
	}

	// 2. Cancel the background context so stragglers stop
	if a.bgCancel != nil {
		a.bgCancel()
	}

	// 3. Flush traces
	if a.otelCleanup != nil {
		a.otelCleanup()
	}

	// 4. Close database pool
	if a.Pool != nil {
		a.Pool.Close()
		if a.Logger != nil {
			a.Logger.Info("database pool closed")
		}
	}

	return nil
}
