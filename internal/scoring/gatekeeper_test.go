package scoring

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olvesh/airsportslivetracking/internal/geo"
	"github.com/olvesh/airsportslivetracking/internal/models"
	"github.com/olvesh/airsportslivetracking/pkg/utils"
)

// fakeSink собирает записи расчета в памяти
type fakeSink struct {
	entries     []*models.ScoreLogEntry
	annotations []*models.TrackAnnotation
	crossings   []*models.GateCrossing
	states      []*models.CompetitorState
	termination bool
	nextID      int
	// score накопленная сумма, как отдельное поле в живом хранилище
	score float64
}

func (s *fakeSink) SaveScoreEntry(_ context.Context, entry *models.ScoreLogEntry) error {
	s.nextID++
	entry.ID = fmt.Sprintf("entry-%d", s.nextID)
	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

func (s *fakeSink) UpdateScoreEntry(_ context.Context, entry *models.ScoreLogEntry, _ float64) error {
	for i, existing := range s.entries {
		if existing.ID == entry.ID {
			copied := *entry
			copied.TimesUpdated = existing.TimesUpdated + 1
			s.entries[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("entry %s not found", entry.ID)
}

func (s *fakeSink) SaveAnnotation(_ context.Context, annotation *models.TrackAnnotation) error {
	s.nextID++
	annotation.ID = fmt.Sprintf("annotation-%d", s.nextID)
	copied := *annotation
	s.annotations = append(s.annotations, &copied)
	return nil
}

func (s *fakeSink) UpdateAnnotation(_ context.Context, annotation *models.TrackAnnotation) error {
	for i, existing := range s.annotations {
		if existing.ID == annotation.ID {
			copied := *annotation
			s.annotations[i] = &copied
			return nil
		}
	}
	return fmt.Errorf("annotation %s not found", annotation.ID)
}

func (s *fakeSink) SaveGateCrossing(_ context.Context, crossing *models.GateCrossing) error {
	copied := *crossing
	s.crossings = append(s.crossings, &copied)
	return nil
}

func (s *fakeSink) SaveCompetitorState(_ context.Context, state *models.CompetitorState) error {
	copied := *state
	s.states = append(s.states, &copied)
	return nil
}

func (s *fakeSink) IncrementScore(_ context.Context, _ int, delta float64) (float64, error) {
	s.score += delta
	return s.score, nil
}

func (s *fakeSink) IsTerminationRequested(_ context.Context, _ int) (bool, error) {
	return s.termination, nil
}

func (s *fakeSink) entriesForGate(gate string) []*models.ScoreLogEntry {
	var result []*models.ScoreLogEntry
	for _, entry := range s.entries {
		if entry.Gate == gate {
			result = append(result, entry)
		}
	}
	return result
}

var takeoff = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

// прямой маршрут на север: SP 60.00, TP1 60.04, FP 60.08
func straightRoute(t *testing.T) *models.Route {
	t.Helper()
	route := &models.Route{
		ID:   1,
		Name: "straight north",
		Waypoints: []models.Waypoint{
			{Name: "SP", Type: models.WaypointTypeStartingPoint, Latitude: 60.00, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
			{Name: "TP1", Type: models.WaypointTypeTurningPoint, Latitude: 60.04, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
			{Name: "FP", Type: models.WaypointTypeFinishPoint, Latitude: 60.08, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
		},
	}
	require.NoError(t, geo.CalculateLegs(route, models.NewFAIPrecision2020()))
	return route
}

// участник летит 0.0005 градуса широты в секунду, примерно 108 узлов
func testCompetitor(minutesToStart float64) *models.Competitor {
	return &models.Competitor{
		ID:                     42,
		TaskID:                 7,
		Name:                   "Test Pilot",
		TrackerDeviceIDs:       []string{"tracker-1"},
		TrackerStartTime:       takeoff.Add(-time.Minute),
		TakeoffTime:            takeoff,
		FinishedByTime:         takeoff.Add(2 * time.Hour),
		MinutesToStartingPoint: minutesToStart,
		AirSpeed:               108.07,
	}
}

func newTestGatekeeper(t *testing.T, route *models.Route, competitor *models.Competitor, sink *fakeSink) *Gatekeeper {
	t.Helper()
	logger := utils.NewLogger("error", "text")
	gk, err := NewGatekeeper(competitor, route, models.NewFAIPrecision2020(), sink, nil, 0, logger)
	require.NoError(t, err)
	return gk
}

// northboundTrack генерирует позиции раз в секунду от startLat на север
func northboundTrack(startLat float64, seconds int) []*models.Position {
	track := make([]*models.Position, 0, seconds)
	for i := 0; i < seconds; i++ {
		track = append(track, &models.Position{
			DeviceID:  "tracker-1",
			Time:      takeoff.Add(time.Duration(i) * time.Second),
			Latitude:  startLat + 0.0005*float64(i),
			Longitude: 10.0,
			Course:    0,
		})
	}
	return track
}

func TestGatekeeperCleanRun(t *testing.T) {
	route := straightRoute(t)
	sink := &fakeSink{}
	// старт через 20 секунд после взлета, плановые времена совпадают
	// с фактическим полетом
	gk := newTestGatekeeper(t, route, testCompetitor(20.0/60.0), sink)

	ctx := context.Background()
	for _, position := range northboundTrack(59.99, 200) {
		gk.AddPosition(ctx, position)
	}

	t.Run("all gates passed in order", func(t *testing.T) {
		require.Len(t, sink.crossings, 3)
		assert.Equal(t, "SP", sink.crossings[0].Gate)
		assert.Equal(t, "TP1", sink.crossings[1].Gate)
		assert.Equal(t, "FP", sink.crossings[2].Gate)
		for _, crossing := range sink.crossings {
			assert.False(t, crossing.Missed, crossing.Gate)
			require.NotNil(t, crossing.Actual, crossing.Gate)
		}
	})

	t.Run("on time crossing scores zero", func(t *testing.T) {
		for _, gate := range []string{"SP", "TP1", "FP"} {
			entries := sink.entriesForGate(gate)
			require.Len(t, entries, 1, gate)
			assert.Equal(t, 0.0, entries[0].Points, gate)
			assert.NotEmpty(t, entries[0].Offset, gate)
		}
		assert.Equal(t, 0.0, gk.TotalScore())
	})

	t.Run("finished state pushed", func(t *testing.T) {
		assert.True(t, gk.Finished())
		require.NotEmpty(t, sink.states)
		last := sink.states[len(sink.states)-1]
		assert.Equal(t, models.TrackingStateFinished, last.TrackingState)
		assert.True(t, last.PastFinishGate)
		assert.Equal(t, "FP", last.LastGate)
	})
}

func TestGatekeeperLateCrossingPenalty(t *testing.T) {
	route := straightRoute(t)
	sink := &fakeSink{}
	// план на 30-й секунде, фактическое пересечение SP на 20-й:
	// отклонение 10 секунд, льготные 2, штраф 8*3 = 24 на каждом гейте
	gk := newTestGatekeeper(t, route, testCompetitor(30.0/60.0), sink)

	ctx := context.Background()
	for _, position := range northboundTrack(59.99, 200) {
		gk.AddPosition(ctx, position)
	}

	entries := sink.entriesForGate("SP")
	require.Len(t, entries, 1)
	assert.Equal(t, 24.0, entries[0].Points)
	assert.Equal(t, "-10 s", entries[0].Offset)
	assert.Equal(t, 72.0, gk.TotalScore())

	// запись журнала датируется временем трека, а не настенными часами
	assert.WithinDuration(t, takeoff.Add(21*time.Second), entries[0].Time, 5*time.Second)
}

func TestGatekeeperExternalScoreEdit(t *testing.T) {
	route := straightRoute(t)
	sink := &fakeSink{}
	// опоздание на 10 секунд дает 24 очка на каждом из трех гейтов
	gk := newTestGatekeeper(t, route, testCompetitor(30.0/60.0), sink)

	ctx := context.Background()
	track := northboundTrack(59.99, 200)
	for _, position := range track[:60] {
		gk.AddPosition(ctx, position)
	}
	require.NotEmpty(t, sink.entries)
	require.Equal(t, 24.0, sink.score)

	// правка суммы в хранилище мимо воркера, например судьей
	sink.score += 500

	for _, position := range track[60:] {
		gk.AddPosition(ctx, position)
	}

	// последующие начисления двигают правленую сумму, а не затирают ее
	assert.Equal(t, 572.0, sink.score)
	assert.Equal(t, 572.0, gk.TotalScore())
}

func TestGatekeeperCalculatorsWaitForSecondSample(t *testing.T) {
	route := straightRoute(t)
	route.Zones = []models.Zone{{
		Name: "forbidden",
		Type: models.ZoneTypeProhibited,
		Path: []models.GeoPoint{
			{Latitude: 59.98, Longitude: 9.9},
			{Latitude: 59.98, Longitude: 10.1},
			{Latitude: 60.0, Longitude: 10.1},
			{Latitude: 60.0, Longitude: 9.9},
		},
	}}
	sink := &fakeSink{}
	gk := newTestGatekeeper(t, route, testCompetitor(20.0/60.0), sink)

	ctx := context.Background()
	track := northboundTrack(59.99, 3)

	// первая позиция внутри зоны, но одной позиции мало для расчета
	gk.AddPosition(ctx, track[0])
	assert.Empty(t, sink.entries)

	gk.AddPosition(ctx, track[1])
	require.Len(t, sink.entries, 1)
	assert.Contains(t, sink.entries[0].Message, "prohibited zone")
}

func TestGatekeeperMissedGate(t *testing.T) {
	route := straightRoute(t)
	sink := &fakeSink{}
	gk := newTestGatekeeper(t, route, testCompetitor(20.0/60.0), sink)

	ctx := context.Background()
	// пересечение SP, обход TP1 восточнее расширенного створа,
	// возврат и пересечение FP с юга
	var track []*models.Position
	step := 0
	add := func(lat, lon float64) {
		track = append(track, &models.Position{
			DeviceID:  "tracker-1",
			Time:      takeoff.Add(time.Duration(step) * time.Second),
			Latitude:  lat,
			Longitude: lon,
		})
		step++
	}

	for lat := 59.99; lat < 60.011; lat += 0.0005 {
		add(lat, 10.0)
	}
	// уход на восток по диагонали, мимо TP1
	for i := 1; i <= 40; i++ {
		add(60.011+0.001*float64(i), 10.0+0.0075*float64(i))
	}
	// на запад на широте между TP1 и FP
	for i := 1; i <= 40; i++ {
		add(60.051, 10.3-0.0075*float64(i))
	}
	// на север через FP
	for lat := 60.051; lat < 60.1; lat += 0.0005 {
		add(lat, 10.0)
	}

	for _, position := range track {
		gk.AddPosition(ctx, position)
	}

	t.Run("missed gate scored once", func(t *testing.T) {
		var missed []*models.ScoreLogEntry
		for _, entry := range sink.entries {
			if entry.Gate == "TP1" && entry.Points == 100 {
				missed = append(missed, entry)
			}
		}
		require.Len(t, missed, 1)
		assert.Contains(t, missed[0].Message, "missed gate")
	})

	t.Run("later gates still scored", func(t *testing.T) {
		assert.True(t, gk.Finished())
		require.Len(t, sink.crossings, 3)
	})
}

func TestGatekeeperCloselySpacedGates(t *testing.T) {
	// два гейта в 111 метрах друг от друга разрешаются по порядку
	// маршрута, ни один не теряется
	route := &models.Route{
		ID: 2,
		Waypoints: []models.Waypoint{
			{Name: "SP", Type: models.WaypointTypeStartingPoint, Latitude: 60.00, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
			{Name: "TP1", Type: models.WaypointTypeTurningPoint, Latitude: 60.04, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
			{Name: "TP2", Type: models.WaypointTypeTurningPoint, Latitude: 60.041, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
			{Name: "FP", Type: models.WaypointTypeFinishPoint, Latitude: 60.08, Longitude: 10.0, Width: 1, GateCheck: true, TimeCheck: true},
		},
	}
	require.NoError(t, geo.CalculateLegs(route, models.NewFAIPrecision2020()))

	sink := &fakeSink{}
	gk := newTestGatekeeper(t, route, testCompetitor(20.0/60.0), sink)

	ctx := context.Background()
	for _, position := range northboundTrack(59.99, 200) {
		gk.AddPosition(ctx, position)
	}

	require.Len(t, sink.crossings, 4)
	assert.Equal(t, "TP1", sink.crossings[1].Gate)
	assert.Equal(t, "TP2", sink.crossings[2].Gate)
	for _, crossing := range sink.crossings {
		assert.False(t, crossing.Missed, crossing.Gate)
	}
}

func TestGatekeeperTermination(t *testing.T) {
	route := straightRoute(t)
	sink := &fakeSink{termination: true}
	logger := utils.NewLogger("error", "text")
	gk, err := NewGatekeeper(testCompetitor(20.0/60.0), route, models.NewFAIPrecision2020(),
		sink, nil, time.Millisecond, logger)
	require.NoError(t, err)

	ctx := context.Background()
	track := northboundTrack(59.99, 10)
	gk.AddPosition(ctx, track[0])

	t.Run("terminated with zero point entry", func(t *testing.T) {
		assert.True(t, gk.Terminated())
		require.Len(t, sink.entries, 1)
		assert.Equal(t, "manually terminated", sink.entries[0].Message)
		assert.Equal(t, 0.0, sink.entries[0].Points)
		assert.Equal(t, models.ScoreEntryTypeInformation, sink.entries[0].Type)
	})

	t.Run("annotation at last position", func(t *testing.T) {
		require.Len(t, sink.annotations, 1)
		assert.Equal(t, track[0].Latitude, sink.annotations[0].Latitude)
	})

	t.Run("positions after termination ignored", func(t *testing.T) {
		before := len(sink.entries)
		gk.AddPosition(ctx, track[1])
		assert.Equal(t, before, len(sink.entries))
	})

	t.Run("terminate is idempotent", func(t *testing.T) {
		gk.Terminate(ctx, "manually terminated")
		assert.Len(t, sink.entries, 1)
	})
}

func TestGatekeeperRejectsBrokenInput(t *testing.T) {
	route := straightRoute(t)
	logger := utils.NewLogger("error", "text")

	t.Run("competitor without trackers", func(t *testing.T) {
		competitor := testCompetitor(0.5)
		competitor.TrackerDeviceIDs = nil
		_, err := NewGatekeeper(competitor, route, models.NewFAIPrecision2020(), &fakeSink{}, nil, 0, logger)
		assert.Error(t, err)
	})

	t.Run("unknown calculator", func(t *testing.T) {
		scorecard := models.NewFAIPrecision2020()
		scorecard.Calculator = "bogus"
		_, err := NewGatekeeper(testCompetitor(0.5), route, scorecard, &fakeSink{}, nil, 0, logger)
		assert.Error(t, err)
	})
}
