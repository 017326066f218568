package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/FrK06/web-rag-original/internal/config"
	"github.com/FrK06/web-rag-original/internal/jobs"
	"github.com/FrK06/web-rag-original/internal/store/rabbitmq"
	"github.com/sirupsen/logrus"
)

type App struct {
	httpServer *http.Server
	services   *Services
	publisher  *rabbitmq.Publisher
	log        logrus.FieldLogger

	stopPurger context.CancelFunc
	purgerDone chan struct{}
}

func New(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (*App, error) {
	services, err := NewServices(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	a := &App{services: services, log: log}

	// async chat jobs are optional; without a broker /api/chat/jobs answers 503
	var pub jobs.Publisher
	if cfg.RabbitURL != "" {
		p, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.WithError(err).Warn("rabbitmq unavailable, async chat jobs disabled")
		} else {
			a.publisher = p
			pub = p
			services.Prober.Add(p)
		}
	}
	jobSvc := jobs.NewService(services.ChatRepo, pub, log)

	a.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           setupHTTP(cfg, services, jobSvc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	purgeCtx, cancel := context.WithCancel(context.Background())
	a.stopPurger = cancel
	a.purgerDone = make(chan struct{})
	go func() {
		defer close(a.purgerDone)
		services.Threads.RunPurger(purgeCtx, cfg.ThreadPurgeInterval)
	}()

	return a, nil
}

func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run blocks until the server stops. A graceful Shutdown is not an error.
func (a *App) Run() error {
	a.log.WithField("addr", a.httpServer.Addr).Info("gateway listening")
	if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.httpServer.Shutdown(ctx)

	a.stopPurger()
	<-a.purgerDone

	if a.publisher != nil {
		if cerr := a.publisher.Close(); cerr != nil {
			a.log.WithError(cerr).Warn("rabbitmq publisher close")
		}
	}
	if cerr := a.services.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
