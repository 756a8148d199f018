// Package statesync mirrors the flow table into etcd so operators can watch
// installed paths, backups, and unroutable flags without querying the engine.
package statesync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/mpinel6/SDNController-CSC4501/flows"
)

// FlowRecord is the JSON document published per flow.
type FlowRecord struct {
	SrcMAC      string     `json:"src_mac"`
	DstMAC      string     `json:"dst_mac"`
	Paths       [][]string `json:"paths"`
	Weights     []float64  `json:"weights,omitempty"`
	Backups     [][]string `json:"backups,omitempty"`
	Priority    int        `json:"priority"`
	Critical    bool       `json:"critical"`
	Unroutable  bool       `json:"unroutable"`
	PublishedAt time.Time  `json:"published_at"`
}

type Config struct {
	Endpoints   []string
	DialTimeout time.Duration
	Prefix      string
}

type Publisher struct {
	client *clientv3.Client
	prefix string
}

func NewPublisher(cfg Config) (*Publisher, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "/sdn/flows/"
	}
	return &Publisher{client: client, prefix: prefix}, nil
}

// PublishFlows writes one record per flow under the prefix. Failures are
// logged per flow; the publish cycle never aborts the engine.
func (p *Publisher) PublishFlows(ctx context.Context, all []flows.Flow) {
	now := time.Now()
	for _, f := range all {
		record := FlowRecord{
			SrcMAC:      f.Key.SrcMAC,
			DstMAC:      f.Key.DstMAC,
			Priority:    f.Priority,
			Critical:    f.Critical,
			Unroutable:  f.Unroutable,
			Weights:     f.Weights,
			PublishedAt: now,
		}
		for _, path := range f.Paths {
			record.Paths = append(record.Paths, path.Nodes)
		}
		for _, path := range f.Backups {
			record.Backups = append(record.Backups, path.Nodes)
		}

		data, err := json.Marshal(record)
		if err != nil {
			log.Errorf("marshal flow record %s->%s: %v", f.Key.SrcMAC, f.Key.DstMAC, err)
			continue
		}

		key := fmt.Sprintf("%s%s->%s", p.prefix, f.Key.SrcMAC, f.Key.DstMAC)
		putCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		_, err = p.client.Put(putCtx, key, string(data))
		cancel()
		if err != nil {
			log.Warnf("publish flow %s->%s to etcd failed: %v", f.Key.SrcMAC, f.Key.DstMAC, err)
		}
	}
}

func (p *Publisher) Close() {
	if p.client != nil {
		p.client.Close()
	}
}
