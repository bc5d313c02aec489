package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	"mailblast/models"
)

// UsageWorker resets the relay accounts' daily counters at midnight.
type UsageWorker struct {
	db     *gorm.DB
	logger *log.Logger
}

func NewUsageWorker(db *gorm.DB, logger *log.Logger) *UsageWorker {
	return &UsageWorker{
		db:     db,
		logger: logger,
	}
}

func (uw *UsageWorker) Start(ctx context.Context) {
	uw.logger.Println("Starting usage worker...")

	for {
		now := time.Now()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())

		select {
		case <-time.After(time.Until(nextMidnight)):
			uw.resetDailyCounters()
		case <-ctx.Done():
			uw.logger.Println("Stopping usage worker...")
			return
		}
	}
}

func (uw *UsageWorker) resetDailyCounters() {
	if err := uw.db.Model(&models.RelayAccount{}).
		Where("sent_today > 0").
		Update("sent_today", 0).
		Error; err != nil {
		uw.logger.Printf("Failed to reset relay counters: %v", err)
	} else {
		uw.logger.Println("Successfully reset relay daily counters")
	}
}
