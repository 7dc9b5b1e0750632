package app

import (
	"context"
	"fmt"
	"os"

	"github.com/specialistvlad/mcugraph/internal/ctxlog"
	"github.com/specialistvlad/mcugraph/internal/engine"
)

// Run loads the configuration, allocates it and writes the report.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "config", a.config.ConfigPath)

	loader, err := LoaderFor(a.config.ConfigPath)
	if err != nil {
		return err
	}
	doc, err := loader.Load(ctx, a.config.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	a.logger.Info("Configuration loaded.", "device_name", doc.Firmware.DeviceName, "groups", len(doc.Groups))

	report, err := a.engine.Run(ctx, doc)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if err := a.writeReport(report); err != nil {
		return err
	}
	a.logger.Info("Report written.", "out", a.destination(), "warnings", len(report.Warnings))
	return nil
}

func (a *App) writeReport(report *engine.Report) error {
	if a.config.OutPath == "" {
		return report.Write(a.outW)
	}
	f, err := os.Create(a.config.OutPath)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := report.Write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close report file: %w", err)
	}
	return nil
}

func (a *App) destination() string {
	if a.config.OutPath == "" {
		return "stdout"
	}
	return a.config.OutPath
}
