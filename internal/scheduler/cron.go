// Package scheduler drives the recurring rule evaluation and maintenance
// runs on their configured cron expressions.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/controllers"
)

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron            *cron.Cron
	maintenanceCtrl *controllers.MaintenanceController
	cfg             *config.Config
	logger          *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(maintenanceCtrl *controllers.MaintenanceController, cfg *config.Config, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:            cron.New(),
		maintenanceCtrl: maintenanceCtrl,
		cfg:             cfg,
		logger:          logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	_, err := s.cron.AddFunc(s.cfg.RulesCron, func() {
		s.runRules()
	})
	if err != nil {
		return fmt.Errorf("failed to add rule evaluation job: %w", err)
	}

	_, err = s.cron.AddFunc(s.cfg.MaintenanceCron, func() {
		s.runMaintenance()
	})
	if err != nil {
		return fmt.Errorf("failed to add maintenance job: %w", err)
	}

	s.cron.Start()
	s.logger.WithFields(logrus.Fields{
		"rules":       s.cfg.RulesCron,
		"maintenance": s.cfg.MaintenanceCron,
	}).Info("Scheduler started")
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// TriggerRules runs the rule evaluation pass outside its schedule
func (s *Scheduler) TriggerRules() {
	go s.runRules()
}

// TriggerMaintenance runs the maintenance pass outside its schedule
func (s *Scheduler) TriggerMaintenance() {
	go s.runMaintenance()
}

// runRules executes the rule evaluation job
func (s *Scheduler) runRules() {
	s.logger.Info("Running scheduled rule evaluation")
	ctx := context.Background()

	if err := s.maintenanceCtrl.RunRules(ctx); err != nil {
		s.logger.WithError(err).Error("Rule evaluation job failed")
	} else {
		s.logger.Info("Rule evaluation job completed successfully")
	}
}

// runMaintenance executes the maintenance job
func (s *Scheduler) runMaintenance() {
	s.logger.Info("Running scheduled maintenance")
	ctx := context.Background()

	if err := s.maintenanceCtrl.RunMaintenance(ctx); err != nil {
		s.logger.WithError(err).Error("Maintenance job failed")
	} else {
		s.logger.Info("Maintenance job completed successfully")
	}
}
