package app

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
)

// Schedule reruns the full-horizon plan at every tick of spec, a standard
// cron expression. It blocks until ctx is cancelled and waits for a running
// plan to finish before returning.
func (s *Service) Schedule(ctx context.Context, spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { s.tick(ctx) }); err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	s.log.Infof("planning scheduled at %q", spec)
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (s *Service) tick(ctx context.Context) {
	res, err := s.Run(ctx)
	if err != nil {
		s.log.Errorf("scheduled run: %v", err)
		return
	}
	if err := res.Err(); err != nil {
		s.log.Warnf("scheduled run %s: %v", res.RunID, err)
	}
}
