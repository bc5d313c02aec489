package routes

import (
	"fmt"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"mailblast/config"
)

func TestRouteRegistration(t *testing.T) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, config.MigrateDB(db))

	app := fiber.New()
	SetupRoutes(app, db)

	registered := make(map[string]bool)
	for _, route := range app.GetRoutes() {
		registered[route.Method+" "+route.Path] = true
	}

	for _, want := range []string{
		"POST /auth/register",
		"POST /auth/login",
		"POST /api/v1/campaigns/quick-send",
		"POST /api/v1/campaigns/:id/send",
		"GET /api/v1/campaigns/:id/stats",
		"GET /track/open/:campaignID",
		"GET /track/click",
		"GET /health",
	} {
		assert.True(t, registered[want], "missing route %s", want)
	}
}
