package cron

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/nexar-gg/nexar-server/internal/jobs"
)

// StartMaintenanceCronJobs schedules the housekeeping sweeps and returns
// the running cron so the caller can stop it on shutdown.
func StartMaintenanceCronJobs(maintenance *jobs.Maintenance) *cron.Cron {
	c := cron.New()

	// Settle lapsed memberships hourly.
	c.AddFunc("@hourly", func() {
		if err := maintenance.RunSubscriptionSweep(context.Background()); err != nil {
			logrus.WithError(err).Error("Subscription sweep failed")
		}
	})

	// Drop notifications past retention once a day.
	c.AddFunc("0 3 * * *", func() {
		if err := maintenance.RunNotificationPurge(context.Background()); err != nil {
			logrus.WithError(err).Error("Notification purge failed")
		}
	})

	// Burn expired password reset tokens once a day.
	c.AddFunc("30 3 * * *", func() {
		if err := maintenance.RunResetTokenSweep(context.Background()); err != nil {
			logrus.WithError(err).Error("Reset token sweep failed")
		}
	})

	c.Start()
	return c
}
