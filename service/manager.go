package service

import (
	"fmt"
	"os"

	svc "github.com/kardianos/service"
	"github.com/sirupsen/logrus"
)

// Manager handles service management operations
type Manager struct {
	service svc.Service
	program *Program
}

// NewManager creates a new service manager
func NewManager(prg *Program) (*Manager, error) {
	// Get executable path for service registration
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	cfg := NewServiceConfig(exePath, buildServiceArgs())

	s, err := svc.New(prg, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	return &Manager{
		service: s,
		program: prg,
	}, nil
}

// buildServiceArgs builds the command line the service manager starts.
// Settings come from the environment and .env files next to the binary.
func buildServiceArgs() []string {
	return []string{"service", "run"}
}

// Install installs the service
func (m *Manager) Install() error {
	return m.service.Install()
}

// Uninstall uninstalls the service
func (m *Manager) Uninstall() error {
	return m.service.Uninstall()
}

// Start starts the service
func (m *Manager) Start() error {
	return m.service.Start()
}

// Stop stops the service
func (m *Manager) Stop() error {
	return m.service.Stop()
}

// Run runs the service (called by the service manager)
func (m *Manager) Run() error {
	return m.service.Run()
}

// Status returns the service status
func (m *Manager) Status() (svc.Status, error) {
	return m.service.Status()
}

// Commands lists the accepted service commands
var Commands = []string{"install", "uninstall", "start", "stop", "restart", "status", "run"}

// RunServiceCommand handles service management commands
func RunServiceCommand(cmd string, prg *Program, logger logrus.FieldLogger) error {
	mgr, err := NewManager(prg)
	if err != nil {
		return err
	}

	switch cmd {
	case "install":
		if err := mgr.Install(); err != nil {
			return fmt.Errorf("failed to install service: %w", err)
		}
		logger.Info("Service installed successfully")
		logger.Infof("Service name: %s", ServiceName)
		logger.Info("To start the service, run: sameep-scrape service start")

	case "uninstall":
		// Try to stop first
		_ = mgr.Stop()

		if err := mgr.Uninstall(); err != nil {
			return fmt.Errorf("failed to uninstall service: %w", err)
		}
		logger.Info("Service uninstalled successfully")

	case "start":
		if err := mgr.Start(); err != nil {
			return fmt.Errorf("failed to start service: %w", err)
		}
		logger.Info("Service started successfully")

	case "stop":
		if err := mgr.Stop(); err != nil {
			return fmt.Errorf("failed to stop service: %w", err)
		}
		logger.Info("Service stopped successfully")

	case "restart":
		_ = mgr.Stop()
		if err := mgr.Start(); err != nil {
			return fmt.Errorf("failed to restart service: %w", err)
		}
		logger.Info("Service restarted successfully")

	case "status":
		status, err := mgr.Status()
		if err != nil {
			return fmt.Errorf("failed to get service status: %w", err)
		}
		logger.Infof("Service status: %s", statusText(status))

	case "run":
		return mgr.Run()

	default:
		return fmt.Errorf("unknown service command: %s\nValid commands: install, uninstall, start, stop, restart, status, run", cmd)
	}

	return nil
}

func statusText(status svc.Status) string {
	switch status {
	case svc.StatusRunning:
		return "Running"
	case svc.StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
