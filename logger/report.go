package logger

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	gnet "github.com/shirou/gopsutil/v3/net"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

type streamStat struct {
	messages int64
	bytes    int64
}

var (
	errorsFeed   int64
	errorsState  int64
	warnsFeed    int64
	warnsState   int64
	eventsRead   int64
	emitsSent    int64
	emitsDropped int64
	reconnects   int64
	streams      sync.Map // map[string]*streamStat
)

func recordWarn(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&warnsFeed, 1)
	} else if strings.Contains(component, "state") || strings.Contains(component, "reconciler") {
		atomic.AddInt64(&warnsState, 1)
	}
}

func recordError(component string) {
	if strings.Contains(component, "feed") {
		atomic.AddInt64(&errorsFeed, 1)
	} else if strings.Contains(component, "state") || strings.Contains(component, "reconciler") {
		atomic.AddInt64(&errorsState, 1)
	}
}

// IncrementEventRead counts an inbound event of the given category.
func IncrementEventRead(event string, size int) {
	atomic.AddInt64(&eventsRead, 1)
	recordStream(event, size)
}

// IncrementEmitSent counts an outbound event handed to the transport.
func IncrementEmitSent(size int) {
	atomic.AddInt64(&emitsSent, 1)
	recordStream("emit", size)
}

// IncrementEmitDropped counts an outbound event dropped on a full buffer.
func IncrementEmitDropped() {
	atomic.AddInt64(&emitsDropped, 1)
}

// IncrementReconnect counts a transport redial.
func IncrementReconnect() {
	atomic.AddInt64(&reconnects, 1)
}

func recordStream(name string, size int) {
	v, _ := streams.LoadOrStore(name, &streamStat{})
	ss := v.(*streamStat)
	atomic.AddInt64(&ss.messages, 1)
	atomic.AddInt64(&ss.bytes, int64(size))
}

// StreamCounters reports per-event message and byte totals.
type StreamCounters struct {
	Messages int64 `json:"messages"`
	Bytes    int64 `json:"bytes"`
}

// Counters is a point-in-time copy of the flow counters.
type Counters struct {
	ErrorsFeed   int64                     `json:"errors_feed"`
	ErrorsState  int64                     `json:"errors_state"`
	WarnsFeed    int64                     `json:"warns_feed"`
	WarnsState   int64                     `json:"warns_state"`
	EventsRead   int64                     `json:"events_read"`
	EmitsSent    int64                     `json:"emits_sent"`
	EmitsDropped int64                     `json:"emits_dropped"`
	Reconnects   int64                     `json:"reconnects"`
	Streams      map[string]StreamCounters `json:"streams"`
}

// CountersSnapshot returns the current flow counters.
func CountersSnapshot() Counters {
	c := Counters{
		ErrorsFeed:   atomic.LoadInt64(&errorsFeed),
		ErrorsState:  atomic.LoadInt64(&errorsState),
		WarnsFeed:    atomic.LoadInt64(&warnsFeed),
		WarnsState:   atomic.LoadInt64(&warnsState),
		EventsRead:   atomic.LoadInt64(&eventsRead),
		EmitsSent:    atomic.LoadInt64(&emitsSent),
		EmitsDropped: atomic.LoadInt64(&emitsDropped),
		Reconnects:   atomic.LoadInt64(&reconnects),
		Streams:      map[string]StreamCounters{},
	}
	streams.Range(func(k, v any) bool {
		ss := v.(*streamStat)
		c.Streams[k.(string)] = StreamCounters{
			Messages: atomic.LoadInt64(&ss.messages),
			Bytes:    atomic.LoadInt64(&ss.bytes),
		}
		return true
	})
	return c
}

func startReport(ctx context.Context, log *Log, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for {
			select {
			case <-ctx.Done():
				ticker.Stop()
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

// StartReport begins periodic logging of system and stream statistics.
// It exposes the internal startReport function for use by other packages.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	startReport(ctx, log, interval)
}

func logReport(ctx context.Context, log *Log) {
	cpuPercent, _ := cpu.Percent(0, false)
	memStats, _ := mem.VirtualMemory()
	diskStats, _ := disk.Usage("/")
	netStats, _ := gnet.IOCounters(false)
	streamData := map[string]map[string]int64{}
	streams.Range(func(k, v any) bool {
		name := k.(string)
		ss := v.(*streamStat)
		streamData[name] = map[string]int64{
			"messages": atomic.LoadInt64(&ss.messages),
			"bytes":    atomic.LoadInt64(&ss.bytes),
		}
		return true
	})

	cpuPct := 0.0
	if len(cpuPercent) > 0 {
		cpuPct = cpuPercent[0]
	}

	bytesSent := uint64(0)
	bytesRecv := uint64(0)
	if len(netStats) > 0 {
		bytesSent = netStats[0].BytesSent
		bytesRecv = netStats[0].BytesRecv
	}

	fields := Fields{
		"errors_feed":   atomic.LoadInt64(&errorsFeed),
		"errors_state":  atomic.LoadInt64(&errorsState),
		"warns_feed":    atomic.LoadInt64(&warnsFeed),
		"warns_state":   atomic.LoadInt64(&warnsState),
		"events_read":   atomic.LoadInt64(&eventsRead),
		"emits_sent":    atomic.LoadInt64(&emitsSent),
		"emits_dropped": atomic.LoadInt64(&emitsDropped),
		"reconnects":    atomic.LoadInt64(&reconnects),
		"goroutines":    runtime.NumGoroutine(),
		"cpu_percent":   cpuPct,
		"memory_mb":     int64(memStats.Used) / 1024 / 1024,
		"disk_mb":       int64(diskStats.Used) / 1024 / 1024,
		"streams":       streamData,
		"net_bytes_sent": int64(bytesSent),
		"net_bytes_recv": int64(bytesRecv),
	}

	log.WithComponent("report").WithFields(fields).Info("runtime report")

	var data []cwtypes.MetricDatum
	data = append(data,
		cwtypes.MetricDatum{MetricName: aws.String("CPUPercent"), Unit: cwtypes.StandardUnitPercent, Value: aws.Float64(cpuPct)},
		cwtypes.MetricDatum{MetricName: aws.String("MemoryMB"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(memStats.Used) / 1024 / 1024)},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("ErrorsState"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["errors_state"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsFeed"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_feed"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("WarnsState"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["warns_state"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("EventsRead"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["events_read"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("EmitsSent"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["emits_sent"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("EmitsDropped"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["emits_dropped"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("Reconnects"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(fields["reconnects"].(int64)))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesSent"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesSent))},
		cwtypes.MetricDatum{MetricName: aws.String("NetBytesRecv"), Unit: cwtypes.StandardUnitBytes, Value: aws.Float64(float64(bytesRecv))},
	)

	for name, stats := range streamData {
		data = append(data,
			cwtypes.MetricDatum{
				MetricName: aws.String("StreamMessages"),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Stream"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["messages"])),
			},
			cwtypes.MetricDatum{
				MetricName: aws.String("StreamBytes"),
				Unit:       cwtypes.StandardUnitBytes,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("Stream"), Value: aws.String(name)}},
				Value:      aws.Float64(float64(stats["bytes"])),
			},
		)
	}

	publishMetrics(ctx, data)
}
