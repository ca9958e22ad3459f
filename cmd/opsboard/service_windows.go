package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const (
	serviceName        = "Opsboard"
	serviceDisplayName = "Opsboard Dashboard Server"
	serviceDescription = "Opsboard - incidents, datasets and tickets dashboard"
)

func init() {
	platformCommands = append(platformCommands, newServiceCmd())
}

// opsboardService implements svc.Handler around runServer.
type opsboardService struct{}

// Execute is called by the Windows Service Control Manager
func (s *opsboardService) Execute(args []string, changeReq <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	const cmdsAccepted = svc.AcceptStop | svc.AcceptShutdown

	status <- svc.Status{State: svc.StartPending}

	// .env and the sqlite file live next to the executable
	if exePath, err := os.Executable(); err == nil {
		_ = os.Chdir(filepath.Dir(exePath))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runServer(ctx)
	}()

	status <- svc.Status{State: svc.Running, Accepts: cmdsAccepted}

	for {
		select {
		case err := <-done:
			// Server exited on its own
			if err != nil {
				return false, 1
			}
			return false, 0
		case c := <-changeReq:
			switch c.Cmd {
			case svc.Interrogate:
				status <- c.CurrentStatus
			case svc.Stop, svc.Shutdown:
				status <- svc.Status{State: svc.StopPending}
				cancel()
				select {
				case <-done:
				case <-time.After(shutdownTimeout + time.Second):
				}
				return false, 0
			}
		}
	}
}

func newServiceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage the Windows service",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:    "run",
			Short:  "Run under the Service Control Manager",
			Hidden: true,
			Args:   cobra.NoArgs,
			RunE: func(*cobra.Command, []string) error {
				return svc.Run(serviceName, &opsboardService{})
			},
		},
		&cobra.Command{
			Use:   "install",
			Short: "Register opsboard as a Windows service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return installService(cmd)
			},
		},
		&cobra.Command{
			Use:   "uninstall",
			Short: "Remove the Windows service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withService(func(s *mgr.Service) error {
					if err := s.Delete(); err != nil {
						return fmt.Errorf("uninstall service: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Service '%s' uninstalled successfully.\n", serviceName)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "start",
			Short: "Start the Windows service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withService(func(s *mgr.Service) error {
					if err := s.Start(); err != nil {
						return fmt.Errorf("start service: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Service '%s' started.\n", serviceName)
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "stop",
			Short: "Stop the Windows service",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withService(func(s *mgr.Service) error {
					if _, err := s.Control(svc.Stop); err != nil {
						return fmt.Errorf("stop service: %w", err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Service '%s' stopped.\n", serviceName)
					return nil
				})
			},
		},
	)
	return cmd
}

func installService(cmd *cobra.Command) error {
	exePath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("executable path: %w", err)
	}

	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to service manager (run as Administrator): %w", err)
	}
	defer m.Disconnect()

	if s, err := m.OpenService(serviceName); err == nil {
		s.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "Service '%s' is already installed.\n", serviceName)
		return nil
	}

	s, err := m.CreateService(serviceName, exePath, mgr.Config{
		DisplayName: serviceDisplayName,
		Description: serviceDescription,
		StartType:   mgr.StartAutomatic,
	}, "service", "run")
	if err != nil {
		return fmt.Errorf("install service: %w", err)
	}
	defer s.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Service '%s' installed successfully.\n", serviceName)
	fmt.Fprintln(cmd.OutOrStdout(), "Start with: opsboard service start")
	return nil
}

func withService(fn func(s *mgr.Service) error) error {
	m, err := mgr.Connect()
	if err != nil {
		return fmt.Errorf("connect to service manager (run as Administrator): %w", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(serviceName)
	if err != nil {
		return fmt.Errorf("service '%s' is not installed: %w", serviceName, err)
	}
	defer s.Close()

	return fn(s)
}
