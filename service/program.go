package service

import (
	"context"
	"sync"
	"time"

	"github.com/kardianos/service"
	"github.com/sameep-scrape/pipeline"
	"github.com/sameep-scrape/report"
	"github.com/sameep-scrape/server"
	"github.com/sameep-scrape/updater"
	"github.com/sirupsen/logrus"
)

// Program implements service.Interface: it runs Phase 2 on the latest
// checkpoint every Interval and serves gRPC health.
type Program struct {
	Runner   *pipeline.Runner
	Logger   *logrus.Logger
	Interval time.Duration
	GRPCPort string
	Version  string

	// Auto-update settings
	AutoUpdate     bool
	UpdateRepo     string
	UpdateInterval time.Duration

	svc        service.Service
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	grpcServer *server.GRPCServer
	updater    *updater.Updater
}

// Start is called when the service starts
func (p *Program) Start(s service.Service) error {
	p.svc = s
	if svcLogger, _ := s.Logger(nil); svcLogger != nil {
		svcLogger.Info("Service starting...")
	}
	p.Logger.Infof("Service Start() called, interval=%s, port=%s", p.Interval, p.GRPCPort)

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.grpcServer = server.NewGRPCServer(p.Logger)

	p.wg.Add(1)
	go p.run()
	return nil
}

// Stop is called when the service stops
func (p *Program) Stop(s service.Service) error {
	p.Logger.Info("Service stopping...")
	p.cancel()
	if p.grpcServer != nil {
		p.grpcServer.GracefulStop()
	}
	p.wg.Wait()
	p.Logger.Info("Service stopped")
	return nil
}

// run is the main service loop
func (p *Program) run() {
	defer p.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			p.Logger.Errorf("run() panic recovered: %v", r)
		}
	}()

	if p.AutoUpdate {
		p.startAutoUpdate()
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.grpcServer.ListenAndServe(p.ctx, p.GRPCPort); err != nil {
			p.Logger.Errorf("gRPC server stopped: %v", err)
		}
	}()

	p.schedule()
}

// schedule runs Phase 2 now and then every Interval until stopped
func (p *Program) schedule() {
	p.runOnce()

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.runOnce()
		case <-p.ctx.Done():
			return
		}
	}
}

// runOnce fetches the pending documents of the latest checkpoint and
// reports the outcome to the health server.
func (p *Program) runOnce() {
	started := time.Now()
	p.Logger.Info("Scheduled document fetch starting")

	_, rep, path, err := p.Runner.Fetch(p.ctx, "")
	if err != nil {
		p.Logger.Errorf("Scheduled fetch failed (checkpoint %q): %v", path, err)
	} else {
		report.Fetch(p.Logger.Out, rep)
		p.Logger.Infof("Scheduled fetch finished in %s", time.Since(started).Round(time.Second))
	}
	p.grpcServer.ReportRun(started, err)
}

// startAutoUpdate initializes and starts the auto-updater
func (p *Program) startAutoUpdate() {
	cfg, err := updater.NewConfig(p.UpdateRepo, p.Version, p.UpdateInterval)
	if err != nil {
		p.Logger.Errorf("Auto-update disabled: %v", err)
		return
	}
	p.updater = updater.New(cfg, p.Logger)

	// Check for updates at startup (non-blocking)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				p.Logger.Errorf("Auto-update startup check panic recovered: %v", r)
			}
		}()
		if updated, err := p.updater.CheckAndUpdate(p.ctx); err != nil {
			p.Logger.Warnf("Startup update check failed: %v", err)
		} else if updated {
			p.restart()
		}
	}()

	p.updater.StartPeriodicCheck(p.ctx, func() {
		defer func() {
			if r := recover(); r != nil {
				p.Logger.Errorf("Auto-update periodic check panic recovered: %v", r)
			}
		}()
		if _, err := p.updater.CheckAndUpdate(p.ctx); err != nil {
			p.Logger.Errorf("Failed to apply update: %v", err)
			return
		}
		p.restart()
	})
}

// restart asks the service manager to restart the service so the new
// binary is loaded.
func (p *Program) restart() {
	p.Logger.Info("Update applied, restarting service...")
	if p.svc == nil {
		return
	}
	go func() {
		time.Sleep(2 * time.Second)
		if err := p.svc.Restart(); err != nil {
			p.Logger.Errorf("Failed to restart service: %v", err)
		}
	}()
}
