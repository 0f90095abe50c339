package trigger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/auto-dns/docker-image-watch/internal/component"
	"github.com/auto-dns/docker-image-watch/internal/domain"
	"github.com/auto-dns/docker-image-watch/internal/event"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTrigger struct {
	Base
	name  string
	calls *[]string
	err   error
}

func newRecordingTrigger(bus *event.Bus, name string, calls *[]string) *recordingTrigger {
	r := &recordingTrigger{name: name, calls: calls}
	r.Bind(bus, r)
	return r
}

func (r *recordingTrigger) Schema() component.Schema {
	return component.NewSchema[Config]()
}

func (r *recordingTrigger) Trigger(_ context.Context, c domain.Container) error {
	*r.calls = append(*r.calls, r.name+":"+c.ID)
	return r.err
}

func (r *recordingTrigger) TriggerBatch(ctx context.Context, cs []domain.Container) error {
	for _, c := range cs {
		_ = r.Trigger(ctx, c)
	}
	return nil
}

func register(t *testing.T, p component.Provider, name string, cfg map[string]any) {
	t.Helper()
	require.NoError(t, component.Register(context.Background(), p, component.Registration{
		Kind:          component.KindTrigger,
		Type:          "recording",
		Name:          name,
		Configuration: cfg,
	}, zerolog.Nop()))
}

func updateReport(id string, changed bool, kind domain.UpdateKind) domain.ContainerReport {
	return domain.ContainerReport{
		Container: domain.Container{ID: id, UpdateAvailable: true, UpdateKind: kind},
		Changed:   changed,
	}
}

var digestUpdate = domain.UpdateKind{Kind: domain.KindDigest}

func TestBaseFiresOnAvailableUpdate(t *testing.T) {
	bus := event.NewBus()
	var calls []string
	register(t, newRecordingTrigger(bus, "a", &calls), "a", nil)

	ctx := context.Background()
	require.NoError(t, bus.ContainerReport.Emit(ctx, updateReport("c1", true, digestUpdate)))
	require.NoError(t, bus.ContainerReport.Emit(ctx, domain.ContainerReport{Container: domain.Container{ID: "c2"}, Changed: true}))

	assert.Equal(t, []string{"a:c1"}, calls)
}

func TestBaseOnceSkipsUnchangedReports(t *testing.T) {
	bus := event.NewBus()
	var calls []string
	register(t, newRecordingTrigger(bus, "once", &calls), "once", nil)
	register(t, newRecordingTrigger(bus, "always", &calls), "always", map[string]any{"once": false})

	require.NoError(t, bus.ContainerReport.Emit(context.Background(), updateReport("c1", false, digestUpdate)))

	assert.Equal(t, []string{"always:c1"}, calls)
}

func TestBaseHonorsThreshold(t *testing.T) {
	bus := event.NewBus()
	var calls []string
	register(t, newRecordingTrigger(bus, "p", &calls), "p", map[string]any{"threshold": "patch"})

	ctx := context.Background()
	require.NoError(t, bus.ContainerReport.Emit(ctx, updateReport("major", true, domain.UpdateKind{Kind: domain.KindTag, SemverDiff: domain.SemverMajor})))
	require.NoError(t, bus.ContainerReport.Emit(ctx, updateReport("patch", true, domain.UpdateKind{Kind: domain.KindTag, SemverDiff: domain.SemverPatch})))

	assert.Equal(t, []string{"p:patch"}, calls)
}

func TestBaseRunsInConfiguredOrder(t *testing.T) {
	bus := event.NewBus()
	var calls []string
	register(t, newRecordingTrigger(bus, "late", &calls), "late", map[string]any{"order": 20})
	register(t, newRecordingTrigger(bus, "early", &calls), "early", map[string]any{"order": 10})

	require.NoError(t, bus.ContainerReport.Emit(context.Background(), updateReport("c1", true, digestUpdate)))

	assert.Equal(t, []string{"early:c1", "late:c1"}, calls)
}

func TestBaseTriggerErrorDoesNotStopOthers(t *testing.T) {
	bus := event.NewBus()
	var calls []string
	failing := newRecordingTrigger(bus, "failing", &calls)
	failing.err = errors.New("smtp down")
	register(t, failing, "failing", map[string]any{"order": 1})
	register(t, newRecordingTrigger(bus, "ok", &calls), "ok", map[string]any{"order": 2})

	require.NoError(t, bus.ContainerReport.Emit(context.Background(), updateReport("c1", true, digestUpdate)))
	assert.Equal(t, []string{"failing:c1", "ok:c1"}, calls)
}

func TestBaseDeinitDeregisters(t *testing.T) {
	bus := event.NewBus()
	var calls []string
	tr := newRecordingTrigger(bus, "a", &calls)
	register(t, tr, "a", nil)
	require.Equal(t, 1, bus.ContainerReport.Len())

	require.NoError(t, component.Deregister(context.Background(), tr))
	assert.Zero(t, bus.ContainerReport.Len())
	require.NoError(t, tr.Deinit(context.Background()))
}

func TestBaseRejectsInvalidThreshold(t *testing.T) {
	bus := event.NewBus()
	var calls []string
	err := component.Register(context.Background(), newRecordingTrigger(bus, "x", &calls), component.Registration{
		Kind:          component.KindTrigger,
		Type:          "recording",
		Name:          "x",
		Configuration: map[string]any{"threshold": "sometimes"},
	}, zerolog.Nop())

	var cfgErr *component.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, bus.ContainerReport.Len())
}

func TestLogTrigger(t *testing.T) {
	bus := event.NewBus()
	var buf bytes.Buffer
	l := NewLog(bus)
	require.NoError(t, component.Register(context.Background(), l, component.Registration{
		Kind:          component.KindTrigger,
		Type:          "log",
		Name:          "stdout",
		Configuration: map[string]any{"level": "warn"},
	}, zerolog.New(&buf).Level(zerolog.InfoLevel)))
	buf.Reset()

	c := domain.Container{
		ID:              "c1",
		Name:            "web",
		Image:           domain.Image{Name: "nginx", Tag: "1.25"},
		UpdateAvailable: true,
		UpdateKind:      domain.UpdateKind{Kind: domain.KindTag, SemverDiff: domain.SemverMinor, LocalValue: "1.25", RemoteValue: "1.26"},
	}
	require.NoError(t, bus.ContainerReport.Emit(context.Background(), domain.ContainerReport{Container: c, Changed: true}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "web", line["container"])
	assert.Equal(t, "nginx:1.25", line["image"])
	assert.Equal(t, "1.26", line["to"])
	assert.Equal(t, "log.stdout", line["id"])
}

func TestLogTriggerBatch(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(event.NewBus())
	require.NoError(t, component.Register(context.Background(), l, component.Registration{
		Kind: component.KindTrigger,
		Type: "log",
		Name: "stdout",
	}, zerolog.New(&buf).Level(zerolog.InfoLevel)))
	buf.Reset()

	require.NoError(t, l.TriggerBatch(context.Background(), []domain.Container{{ID: "a"}, {ID: "b"}}))
	assert.Equal(t, 2, bytes.Count(buf.Bytes(), []byte("\n")))
}
