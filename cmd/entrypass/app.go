package main

import (
	"context"
	"fmt"
	"os"

	"entrypass/internal/config"
	"entrypass/internal/importer"
	"entrypass/internal/kafka"
	"entrypass/internal/logger"
	"entrypass/internal/tickets/db"
	"entrypass/internal/tickets/qr"
	tickets "entrypass/internal/tickets/service"
	"entrypass/internal/tickets/template"
)

// app holds everything a command needs, built from the environment.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	store    db.Store
	qr       *qr.QRGenerator
	pdf      *template.TicketPDFGenerator
	service  *tickets.TicketService
	producer *kafka.Producer
}

func newApp(ctx context.Context) (*app, error) {
	cfg := config.Load()

	log, err := logger.New(logger.Options{
		Dir:      cfg.Log.Dir,
		Name:     "entrypass",
		Terminal: os.Stderr,
		Color:    true,
	})
	if err != nil {
		return nil, err
	}

	if cfg.UsingDevSecret() {
		log.LogSecurity("DEV_SECRET", "QR_SECRET_KEY not set, passes are signed with the development secret")
	}

	store, err := db.Open(ctx, cfg.Store)
	if err != nil {
		log.Close()
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	log.LogStore("OPEN", cfg.Store.Backend, "ticket store ready")

	a := &app{
		cfg:   cfg,
		log:   log,
		store: store,
		qr:    qr.NewQRGenerator(cfg.QR.Secret, cfg.QR.ImageSize),
		pdf:   template.NewTicketPDFGenerator(),
	}
	a.service = tickets.NewTicketService(store, a.qr, a.pdf, tickets.EventInfo{
		Name:            cfg.Event.Name,
		Slot:            cfg.Event.Slot,
		DefaultTeamSize: cfg.Import.DefaultTeamSize,
	}, log)

	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topic}); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("could not ensure topic %s: %v", cfg.Kafka.Topic, err))
		}
		a.producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log)
	}

	return a, nil
}

func (a *app) pipeline(outputDir string) *importer.Pipeline {
	p := importer.NewPipeline(a.store, a.qr, a.pdf, importer.Config{
		OutputDir:             outputDir,
		TempDir:               a.cfg.Import.TempDir,
		EventName:             a.cfg.Event.Name,
		Slot:                  a.cfg.Event.Slot,
		DefaultTeamSize:       a.cfg.Import.DefaultTeamSize,
		MaxMembers:            a.cfg.Import.MaxTeamMembers,
		DisambiguateFilenames: a.cfg.Import.DisambiguateFilenames,
		RepairMissingPasses:   a.cfg.Import.RepairMissingPasses,
	}, a.log)
	if a.producer != nil {
		p.Publisher = a.producer
	}
	return p
}

func (a *app) Close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("KAFKA", fmt.Sprintf("failed to close producer: %v", err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("STORE", fmt.Sprintf("failed to close store: %v", err))
	}
	a.log.Close()
}
