package main

import (
	"autofeedr/internal/http"
	"autofeedr/internal/scheduler"
	"context"
	"github.com/cockroachdb/errors"
	"github.com/pterm/pterm"
	log "github.com/sirupsen/logrus"
	nhttp "net/http"
	"strings"
	"sync"
	"time"
)

const serverShutdownTimeout = 30 * time.Second

type runOnceCommand struct {
	Day  string `long:"day" description:"Weekday whose job to run; defaults to the first job of the week"`
	Time string `long:"time" description:"HH:MM of the job on --day; defaults to the day's first job"`
}

func (c *runOnceCommand) Execute(args []string) error {
	if c.Time != "" && c.Day == "" {
		return errors.New("--time requires --day")
	}
	application, err := loadApp(options.Settings)
	if err != nil {
		return err
	}
	job, err := scheduler.PickJob(application.schedule, c.Day, c.Time)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(context.Background())
	defer cancel()
	if err = application.openStore(ctx); err != nil {
		return err
	}
	defer application.close()
	if err = application.buildScheduler(); err != nil {
		return err
	}
	return application.scheduler.RunOnce(ctx, job)
}

type runSchedulerCommand struct {
	StatusAddr string `long:"status-addr" description:"Serve the read-only status API on this address, e.g. localhost:8080"`
}

func (c *runSchedulerCommand) Execute(args []string) error {
	application, err := loadApp(options.Settings)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(context.Background())
	defer cancel()
	if err = application.openStore(ctx); err != nil {
		return err
	}
	defer application.close()
	if err = application.buildScheduler(); err != nil {
		return err
	}

	wg := sync.WaitGroup{}
	var server *nhttp.Server
	if c.StatusAddr != "" {
		server = http.NewStateServer(application.store, application.scheduler, c.StatusAddr)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.WithField("addr", c.StatusAddr).Info("Serving status API")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, nhttp.ErrServerClosed) {
				log.WithField("error", err).Error("Listen and serve error")
			}
		}()
	}

	loopErr := application.scheduler.Start(ctx)
	cancel()
	if server != nil {
		timeoutCtx, timeoutCancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer timeoutCancel()
		if err = server.Shutdown(timeoutCtx); err != nil {
			log.WithField("error", err).Error("Failed to shutdown server")
		}
	}
	wg.Wait()
	return loopErr
}

type nextCommand struct {
	Count int `short:"n" long:"count" description:"How many upcoming runs to list" default:"1"`
}

func (c *nextCommand) Execute(args []string) error {
	application, err := loadApp(options.Settings)
	if err != nil {
		return err
	}
	data := pterm.TableData{{"Weekday", "At", "Job", "In"}}
	now := time.Now()
	from := now
	for i := 0; i < c.Count; i++ {
		job, at, err := scheduler.NextOccurrence(application.schedule, from, application.location)
		if err != nil {
			return err
		}
		data = append(data, []string{
			strings.ToLower(at.Weekday().String()),
			at.Format("2006-01-02 15:04 MST"),
			job.String(),
			at.Sub(now).Round(time.Minute).String(),
		})
		from = at
	}
	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}

type historyCommand struct {
	Failed bool `long:"failed" description:"Show failed runs instead of completed ones"`
	Limit  int  `short:"l" long:"limit" description:"Show only the most recent entries, 0 for all" default:"20"`
}

func (c *historyCommand) Execute(args []string) error {
	application, err := loadApp(options.Settings)
	if err != nil {
		return err
	}
	if err = application.openStore(context.Background()); err != nil {
		return err
	}
	defer application.close()

	state := application.store.State()
	location := application.location
	var data pterm.TableData
	if c.Failed {
		data = pterm.TableData{{"When", "Job", "Error"}}
		for _, record := range tail(len(state.Failed), c.Limit) {
			failed := state.Failed[record]
			data = append(data, []string{failed.Timestamp.In(location).Format(time.DateTime), failed.Job.String(), failed.Error})
		}
	} else {
		data = pterm.TableData{{"When", "Problem", "Slug"}}
		for _, record := range tail(len(state.Completed), c.Limit) {
			completed := state.Completed[record]
			data = append(data, []string{completed.Timestamp.In(location).Format(time.DateTime), completed.ProblemID, completed.Slug})
		}
	}
	if len(data) == 1 {
		pterm.Info.Println("No runs recorded yet")
		return nil
	}
	if err = pterm.DefaultTable.WithHasHeader().WithData(data).Render(); err != nil {
		return err
	}
	pterm.Info.Printfln("%d completed, %d failed", len(state.Completed), len(state.Failed))
	return nil
}

// tail returns the indexes of the last limit entries out of count, oldest first.
func tail(count, limit int) []int {
	start := 0
	if limit > 0 && count > limit {
		start = count - limit
	}
	indexes := make([]int, 0, count-start)
	for i := start; i < count; i++ {
		indexes = append(indexes, i)
	}
	return indexes
}
