package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type TopicSpec struct {
	Name              string
	NumPartitions     int
	ReplicationFactor int
	MaxWait           time.Duration
}

func (s TopicSpec) withDefaults() TopicSpec {
	if s.NumPartitions <= 0 {
		s.NumPartitions = 1
	}
	if s.ReplicationFactor <= 0 {
		s.ReplicationFactor = 1
	}
	if s.MaxWait <= 0 {
		s.MaxWait = 5 * time.Second
	}
	return s
}

func EnsureTopic(ctx context.Context, brokers []string, spec TopicSpec, log *zap.Logger) error {
	return EnsureTopics(ctx, brokers, []TopicSpec{spec}, log)
}

// EnsureTopics creates missing topics through the controller, then waits until
// every partition of every topic has a leader.
func EnsureTopics(ctx context.Context, brokers []string, specs []TopicSpec, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial %s: %w", brokers[0], err)
	}
	defer conn.Close()

	ctrl, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find controller: %w", err)
	}
	cc, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(ctrl.Host, strconv.Itoa(ctrl.Port)))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cc.Close()

	cfgs := make([]kafka.TopicConfig, 0, len(specs))
	for i := range specs {
		specs[i] = specs[i].withDefaults()
		cfgs = append(cfgs, kafka.TopicConfig{
			Topic:             specs[i].Name,
			NumPartitions:     specs[i].NumPartitions,
			ReplicationFactor: specs[i].ReplicationFactor,
		})
	}
	if err := cc.CreateTopics(cfgs...); err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topics: %w", err)
	}

	for _, s := range specs {
		if err := waitReady(ctx, conn, s); err != nil {
			return err
		}
		log.Info("topic ready", zap.String("topic", s.Name))
	}
	return nil
}

func waitReady(ctx context.Context, conn *kafka.Conn, s TopicSpec) error {
	deadline := time.Now().Add(s.MaxWait)
	backoff := 200 * time.Millisecond
	for {
		ps, err := conn.ReadPartitions(s.Name)
		if err == nil && len(ps) > 0 && allHaveLeader(ps) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("topic %s not ready after %s", s.Name, s.MaxWait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

func allHaveLeader(ps []kafka.Partition) bool {
	for _, p := range ps {
		if p.Leader.ID == -1 {
			return false
		}
	}
	return true
}
