// Package kafkaconsumer evicts cached renders when upstream imagery
// change events arrive on a Kafka topic.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/IBM/sarama"

	"github.com/timcash/earthengine-dem/internal/cache/metastore"
	obs "github.com/timcash/earthengine-dem/internal/core/observability"
	"github.com/timcash/earthengine-dem/internal/geo"
	"github.com/timcash/earthengine-dem/internal/invalidation"
)

// EntryStore is the slice of the metadata store the consumer needs:
// enumerating entries by region and removing the stale ones.
type EntryStore interface {
	Snapshot() map[string]metastore.Entry
	Delete(keys ...string) []metastore.Entry
}

// ArtifactDropper evicts served bytes for removed artifact files.
type ArtifactDropper interface {
	Invalidate(names ...string)
}

type HotnessResetter interface {
	Reset(cells ...string)
}

type Consumer struct {
	cfg      Config
	logger   *slog.Logger
	store    EntryStore
	dropper  ArtifactDropper
	hot      HotnessResetter
	cacheDir string
	h3Res    int
}

func New(cfg Config, logger *slog.Logger, store EntryStore, dropper ArtifactDropper, hot HotnessResetter, cacheDir string, h3Res int) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		dropper:  dropper,
		hot:      hot,
		cacheDir: cacheDir,
		h3Res:    h3Res,
	}
}

// Start joins the consumer group and processes events until ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	if c.store == nil {
		return errors.New("kafkaconsumer: missing entry store")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err,
					"brokers", c.cfg.Brokers, "topic", c.cfg.Topic)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single invalidation message. Both refresh and
// delete evict matching entries; a refresh simply means the next
// request re-renders against fresh upstream imagery.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.logger.Error("invalidation event decode failed",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		return fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		// Malformed events cannot succeed on retry; drop and advance.
		c.logger.Warn("skipping invalid invalidation event",
			"err", err, "topic", msg.Topic, "offset", msg.Offset)
		return nil
	}

	var stale []string
	for key, entry := range c.store.Snapshot() {
		if entry.Region != nil && entry.Region.Intersects(*ev.Region) {
			stale = append(stale, key)
		}
	}
	if len(stale) == 0 {
		c.logger.Debug("no cached entries intersect event region", "op", ev.Op)
		return nil
	}

	removed := c.store.Delete(stale...)
	var files []string
	for _, entry := range removed {
		for _, name := range []string{entry.ImageFilename, entry.CompositeImageFilename, entry.RoadsImageFilename} {
			if name == "" {
				continue
			}
			files = append(files, name)
			if err := os.Remove(filepath.Join(c.cacheDir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
				c.logger.Warn("could not remove cached artifact", "file", name, "err", err)
			}
		}
	}
	if c.dropper != nil {
		c.dropper.Invalidate(files...)
	}

	if c.hot != nil {
		cells, err := geo.CellsForRegion(*ev.Region, c.h3Res)
		if err != nil {
			c.logger.Warn("could not derive cells for hotness reset", "err", err)
		} else {
			c.hot.Reset(cells...)
		}
	}

	obs.AddInvalidatedEntries(len(removed))
	c.logger.Info("invalidated cached renders",
		"op", ev.Op, "entries", len(removed), "artifacts", len(files),
		"topic", msg.Topic, "offset", msg.Offset)
	return nil
}
