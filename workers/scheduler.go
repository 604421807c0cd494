// workers/scheduler.go
package workers

import (
	"context"
	"fmt"
	"log"
	"time"

	"stacksave-sync/models"
	"stacksave-sync/store"

	"github.com/go-co-op/gocron/v2"
)

// GoalSyncer re-reads a single goal from the chain.
type GoalSyncer interface {
	SyncGoal(ctx context.Context, goalID uint64) error
}

// StreakUpdater recomputes the streaks of a single goal.
type StreakUpdater interface {
	Update(ctx context.Context, goalID uint64) error
}

// ResyncActiveGoals pulls fresh chain state for every active goal. Failures are
// logged and skipped; it returns how many goals were synced.
func ResyncActiveGoals(ctx context.Context, mirror store.MirrorStore, syncer GoalSyncer) (int, error) {
	goals, err := mirror.ListGoalsByStatus(ctx, models.GoalStatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to list active goals: %w", err)
	}

	synced := 0
	for _, g := range goals {
		if ctx.Err() != nil {
			return synced, ctx.Err()
		}
		if err := syncer.SyncGoal(ctx, g.ID); err != nil {
			log.Printf("[SCHEDULER] ⚠️ Resync of goal %d failed: %v", g.ID, err)
			continue
		}
		synced++
	}
	return synced, nil
}

// RefreshStreaks recomputes streaks for every active goal so that a day without
// a deposit breaks the streak even if no further event arrives.
func RefreshStreaks(ctx context.Context, mirror store.MirrorStore, streaks StreakUpdater) (int, error) {
	goals, err := mirror.ListGoalsByStatus(ctx, models.GoalStatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to list active goals: %w", err)
	}

	updated := 0
	for _, g := range goals {
		if err := streaks.Update(ctx, g.ID); err != nil {
			log.Printf("[SCHEDULER] ⚠️ Streak refresh of goal %d failed: %v", g.ID, err)
			continue
		}
		updated++
	}
	return updated, nil
}

type maintenanceJob struct {
	name       string
	definition gocron.JobDefinition
	task       func()
}

// StartMaintenanceJobs schedules the periodic resync (disabled when
// resyncInterval is 0) and the daily streak refresh right after UTC midnight.
// The scheduler shuts down when ctx is cancelled.
func StartMaintenanceJobs(ctx context.Context, mirror store.MirrorStore, syncer GoalSyncer, streaks StreakUpdater, resyncInterval time.Duration) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	var jobs []maintenanceJob
	if resyncInterval > 0 {
		jobs = append(jobs, maintenanceJob{
			name:       "resync-active-goals",
			definition: gocron.DurationJob(resyncInterval),
			task: func() {
				synced, err := ResyncActiveGoals(ctx, mirror, syncer)
				if err != nil {
					log.Printf("[SCHEDULER] ❌ Active goal resync failed: %v", err)
					return
				}
				log.Printf("[SCHEDULER] ✅ Resynced %d active goal(s)", synced)
			},
		})
	}
	jobs = append(jobs, maintenanceJob{
		name:       "refresh-streaks",
		definition: gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(0, 0, 30))),
		task: func() {
			updated, err := RefreshStreaks(ctx, mirror, streaks)
			if err != nil {
				log.Printf("[SCHEDULER] ❌ Streak refresh failed: %v", err)
				return
			}
			log.Printf("[SCHEDULER] ✅ Refreshed streaks for %d goal(s)", updated)
		},
	})

	if err := startJobs(ctx, sched, jobs); err != nil {
		return nil, err
	}
	return sched, nil
}

// startJobs registers jobs and starts sched. On failure sched is shut down.
func startJobs(ctx context.Context, sched gocron.Scheduler, jobs []maintenanceJob) error {
	for _, job := range jobs {
		_, err := sched.NewJob(
			job.definition,
			gocron.NewTask(job.task),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			shutdownScheduler(sched)
			return fmt.Errorf("failed to schedule %s job: %w", job.name, err)
		}
	}

	sched.Start()
	go func() {
		<-ctx.Done()
		shutdownScheduler(sched)
	}()
	return nil
}

func shutdownScheduler(sched gocron.Scheduler) {
	if err := sched.Shutdown(); err != nil {
		log.Printf("[SCHEDULER] ⚠️ Shutdown error: %v", err)
	}
}
