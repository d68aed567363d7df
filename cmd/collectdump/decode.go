package main

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/collectdwire/internal/capture"
	"github.com/danmuck/collectdwire/internal/config"
	"github.com/danmuck/collectdwire/internal/observability"
	"github.com/danmuck/collectdwire/internal/protocol"
	"github.com/danmuck/collectdwire/internal/protocol/typesdb"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type decodedDatagram struct {
	capture.Datagram
	Records []protocol.Record
	Err     error
}

type fileResult struct {
	Path      string
	Format    string
	Skipped   capture.Skipped
	Datagrams []decodedDatagram
}

// decodeFiles decodes every file concurrently against the shared types DB.
// Results keep the order of paths. A rejected datagram is reported in its
// result and does not stop the run; a file that cannot be read does.
func decodeFiles(ctx context.Context, cfg config.DumpConfig, db *typesdb.DB, paths []string) ([]fileResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	results := make([]fileResult, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	opts := capture.Options{Port: cfg.Port, MaxDatagram: cfg.MaxDatagram}

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			res, err := decodeFile(ctx, path, opts, db)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func decodeFile(ctx context.Context, path string, opts capture.Options, db *typesdb.DB) (fileResult, error) {
	dgs, format, skipped, err := capture.ReadFile(path, opts)
	res := fileResult{Path: path, Format: format, Skipped: skipped}
	if errors.Is(err, capture.ErrTooLarge) {
		log.Warn().Err(err).Str("path", path).Msg("skipping oversized input")
		observability.RecordDatagram(format, observability.ResultTooLarge, 0, 0, 0)
		return res, nil
	}
	if err != nil {
		return fileResult{}, err
	}
	for i := 0; i < skipped.TooLarge; i++ {
		observability.RecordDatagram(format, observability.ResultTooLarge, 0, 0, 0)
	}

	res.Datagrams = make([]decodedDatagram, 0, len(dgs))
	for _, dg := range dgs {
		if err := ctx.Err(); err != nil {
			return fileResult{}, err
		}
		start := time.Now()
		records, err := protocol.Decode(dg.Payload, db)
		elapsed := time.Since(start)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Int("seq", dg.Seq).Msg("datagram rejected")
			observability.RecordDatagram(format, observability.ResultRejected, 0, 0, elapsed)
			res.Datagrams = append(res.Datagrams, decodedDatagram{Datagram: dg, Err: err})
			continue
		}
		unknown := 0
		for _, rec := range records {
			if !rec.Known() {
				unknown++
			}
		}
		observability.RecordDatagram(format, observability.ResultOK, len(records), unknown, elapsed)
		res.Datagrams = append(res.Datagrams, decodedDatagram{Datagram: dg, Records: records})
	}
	log.Debug().
		Str("path", path).
		Str("format", format).
		Int("datagrams", len(res.Datagrams)).
		Msg("decoded input")
	return res, nil
}
