// handlers/sync_routes.go
package handlers

import (
	"context"
	"log"
	"strconv"

	"stacksave-sync/middleware"
	"stacksave-sync/workers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
)

// ListenerController is the supervisor surface exposed over HTTP.
type ListenerController interface {
	Status() workers.ListenerStatus
	StartListening(ctx context.Context) error
	StopListening(ctx context.Context) error
}

// GoalSyncer pulls authoritative goal state on demand.
type GoalSyncer interface {
	SyncGoal(ctx context.Context, goalID uint64) error
	SyncUserGoals(ctx context.Context, owner string) (int, error)
}

func SetupSyncRoutes(app *fiber.App, listener ListenerController, syncer GoalSyncer) {
	app.Get("/listener/status", func(c *fiber.Ctx) error {
		return c.JSON(listener.Status())
	})

	// 🔐 Admin routes, the gateway forwards /api/v1/sync/s/admin/... here
	admin := app.Group("/s/admin", middleware.AdminContextMiddleware())

	admin.Post("/listener/start", func(c *fiber.Ctx) error {
		if err := listener.StartListening(c.UserContext()); err != nil {
			// The supervisor is already retrying; report the failed attempt.
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":  "failed to start event listener",
				"cause":  err.Error(),
				"status": listener.Status(),
			})
		}
		return c.JSON(listener.Status())
	})

	admin.Post("/listener/stop", func(c *fiber.Ctx) error {
		if err := listener.StopListening(c.UserContext()); err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "failed to stop event listener",
				"cause": err.Error(),
			})
		}
		return c.JSON(listener.Status())
	})

	admin.Post("/sync/goals/:id", func(c *fiber.Ctx) error {
		goalID, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid goal id",
			})
		}

		if err := syncer.SyncGoal(c.UserContext(), goalID); err != nil {
			log.Printf("[SYNC] ❌ Manual sync of goal %d failed: %v", goalID, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": "failed to sync goal",
				"cause": err.Error(),
			})
		}
		return c.JSON(fiber.Map{"goal_id": goalID, "synced": true})
	})

	admin.Post("/sync/users/:address", func(c *fiber.Ctx) error {
		address := c.Params("address")
		if !common.IsHexAddress(address) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid wallet address",
			})
		}

		synced, err := syncer.SyncUserGoals(c.UserContext(), address)
		if err != nil {
			log.Printf("[SYNC] ❌ Manual sync for %s failed after %d goal(s): %v", address, synced, err)
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error":  "failed to sync user goals",
				"cause":  err.Error(),
				"synced": synced,
			})
		}
		return c.JSON(fiber.Map{"owner": address, "synced": synced})
	})
}
