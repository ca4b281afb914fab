// tibiago analyzes captured Tibia login and game server traffic.
//
// Usage:
//
//	tibiago [-config path] [-summary] [-ports 7171,7172] [-v] capture.pcap
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/udisondev/tibiago/internal/capture"
	"github.com/udisondev/tibiago/internal/config"
	"github.com/udisondev/tibiago/internal/tibia"
)

const ConfigPath = "config/tibiago.yaml"

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("tibiago", flag.ContinueOnError)
	cfgFlag := fs.String("config", "", "config file (default "+ConfigPath+" or $TIBIAGO_CONFIG)")
	summary := fs.Bool("summary", false, "print one table row per message instead of all fields")
	portsFlag := fs.String("ports", "", "comma separated TCP ports, overrides the config")
	verbose := fs.Bool("v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: tibiago [flags] capture.pcap")
	}
	path := fs.Arg(0)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	cfgPath := ConfigPath
	if p := os.Getenv("TIBIAGO_CONFIG"); p != "" {
		cfgPath = p
	}
	if *cfgFlag != "" {
		cfgPath = *cfgFlag
	}
	cfg, err := config.LoadAnalyzer(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if *portsFlag != "" {
		ports, err := parsePorts(*portsFlag)
		if err != nil {
			return err
		}
		cfg.Ports = ports
	}

	keys := cfg.KeyStore()
	privKeys, xteaKeys := keys.Len()
	slog.Info("config loaded",
		"path", cfgPath,
		"ports", cfg.Ports,
		"rsa_keys", privKeys,
		"xtea_keys", xteaKeys)

	d := tibia.NewDissector(dissectorOptions(cfg.Dissector), keys, nil)
	p := newPrinter(out, *summary)

	// Reading and dissection run as two stages; the channel keeps capture order.
	msgs := make(chan capture.Message, 256)
	g, gctx := errgroup.WithContext(ctx)

	var stats capture.Stats
	g.Go(func() error {
		defer close(msgs)
		var err error
		stats, err = capture.ReadFile(gctx, path, cfg.Ports, func(m capture.Message) error {
			select {
			case msgs <- m:
				return nil
			case <-gctx.Done():
				return gctx.Err()
			}
		})
		return err
	})

	g.Go(func() error {
		for m := range msgs {
			res, err := d.Dissect(tibia.Message{
				Frame: m.Frame,
				Src:   m.Src,
				Dst:   m.Dst,
				Data:  m.Data,
			})
			if errors.Is(err, tibia.ErrFrameMismatch) {
				slog.Debug("not a Tibia message", "frame", m.Frame, "src", m.Src, "err", err)
				p.skipped++
				continue
			}
			if err != nil {
				return fmt.Errorf("frame %d: %w", m.Frame, err)
			}
			if err := p.add(res); err != nil {
				return err
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("analyzing %s: %w", path, err)
	}
	if err := p.flush(); err != nil {
		return err
	}

	slog.Info("capture analyzed",
		"packets", stats.Packets,
		"tcp_segments", stats.TCPSegments,
		"messages", stats.Messages,
		"skipped", p.skipped,
		"conversations", d.Tracker().Len(),
		"game_servers", d.Servers().Len())
	return nil
}

func dissectorOptions(c config.DissectorConfig) tibia.Options {
	return tibia.Options{
		TryDefaultKey:       c.TryOTServKey,
		ShowAccountInfo:     c.ShowAccInfo,
		ShowCharacterName:   c.ShowCharName,
		ShowXTEAKey:         c.ShowXTEAKey,
		DissectGameCommands: c.DissectGameCommands,
	}
}

func parsePorts(s string) ([]uint16, error) {
	var ports []uint16
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := strconv.ParseUint(part, 10, 16)
		if err != nil || p == 0 {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		ports = append(ports, uint16(p))
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports in %q", s)
	}
	return ports, nil
}
